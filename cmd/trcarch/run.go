package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/vm"
)

func runScript() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	fn := runCmd.String("fn", "main", "Function to call")
	gas := runCmd.Int64("gas", 0, "Maximum loop iterations plus calls, 0 for no limit")

	path := scriptArg("run")
	runCmd.Parse(os.Args[3:])

	var args []value.Value
	for _, a := range runCmd.Args() {
		x, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			fmt.Printf("Invalid argument %q: %v\n", a, err)
			os.Exit(1)
		}
		args = append(args, value.Int(x))
	}

	prog, host, err := compile(readFile(path), nil)
	if err != nil {
		fmt.Printf("Compilation Error: %v\n", err)
		os.Exit(1)
	}
	m, err := vm.New(prog, host)
	if err != nil {
		fmt.Printf("Runtime Error: %v\n", err)
		os.Exit(1)
	}
	m.Gas = *gas

	res, err := m.Call(*fn, args...)
	if err != nil {
		fmt.Printf("Runtime Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(res)
}

func checkScript() {
	path := scriptArg("check")
	_, _, err := compile(readFile(path), nil)
	var derr *diag.Error
	if errors.As(err, &derr) {
		fmt.Println(derr.Error())
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: ok\n", path)
}
