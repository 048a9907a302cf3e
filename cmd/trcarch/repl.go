package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/agenthands/trcarch/pkg/vm"
)

const (
	historyFile = ".trcarch_history"
	replFunc    = "__repl"
)

// evalLine compiles src with line wrapped as the body of a fresh function
// and calls it. A trailing expression without a semicolon is returned.
func evalLine(src []byte, line string) (string, error) {
	body := strings.TrimSpace(line)
	i := strings.LastIndexAny(body, ";}")
	if tail := strings.TrimSpace(body[i+1:]); tail != "" {
		body = body[:i+1] + " return (" + tail + ");"
	}
	full := fmt.Sprintf("%s\nlong %s() {\n%s\n}\n", src, replFunc, body)
	prog, host, err := compile([]byte(full), nil)
	if err != nil {
		return "", err
	}
	m, err := vm.New(prog, host)
	if err != nil {
		return "", err
	}
	m.Gas = 1_000_000
	v, err := m.Call(replFunc)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func runRepl() {
	path := scriptArg("repl")
	src := readFile(path)
	if _, _, err := compile(src, nil); err != nil {
		fmt.Printf("Compilation Error: %v\n", err)
		os.Exit(1)
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("%s loaded. Type an expression, :reload or :quit.\n", path)
	for {
		line, err := ln.Prompt("> ")
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ":quit", ":q":
			return
		case ":reload":
			src = readFile(path)
			if _, _, err := compile(src, nil); err != nil {
				fmt.Println(err)
			}
			continue
		}
		ln.AppendHistory(line)
		out, err := evalLine(src, line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(out)
	}
}
