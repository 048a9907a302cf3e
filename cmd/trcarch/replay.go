package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agenthands/trcarch/pkg/config"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/trace"
)

func replayTrace() {
	cmd := flag.NewFlagSet("replay", flag.ExitOnError)
	cfgPath := cmd.String("config", "", "YAML configuration file")
	script := cmd.String("script", "", "Analyzer script")
	tracePath := cmd.String("trace", "", "Generic trace file")
	workers := cmd.Int("workers", 0, "Number of analyzers")
	gas := cmd.Int64("gas", 0, "Gas per script call, 0 for no limit")
	query := cmd.String("query", "", "jq filter applied to the emitted events")
	level := cmd.String("log-level", "", "debug, info, warn or error")
	cmd.Parse(os.Args[2:])

	cfg := config.Defaults()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}
	// flags given on the command line win over the file
	cmd.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "script":
			cfg.Script = *script
		case "trace":
			cfg.Trace = *tracePath
		case "workers":
			cfg.Workers = *workers
		case "gas":
			cfg.Gas = *gas
		case "query":
			cfg.Query = *query
		case "log-level":
			cfg.LogLevel = *level
		}
	})
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if cfg.Script == "" || cfg.Trace == "" {
		fmt.Println("Usage: trcarch replay -script <script> -trace <trace> [-workers n] [-query q]")
		os.Exit(1)
	}

	f, err := trace.Open(cfg.Trace)
	if err != nil {
		fmt.Printf("Error opening trace: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := trace.Replay(ctx, f.Reader, trace.Config{
		Script:    readFile(cfg.Script),
		Workers:   cfg.Workers,
		Gas:       cfg.Gas,
		Constants: cfg.Constants,
		Logger:    newLogger(lvl),
		Stdout:    os.Stderr,
	})
	if err != nil {
		fmt.Printf("Replay Error: %v\n", err)
		if res == nil {
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if cfg.Query == "" {
		for _, e := range res.Events {
			enc.Encode(event.Map(e))
		}
	} else {
		out, err := trace.Query(ctx, cfg.Query, res.Events)
		if err != nil {
			fmt.Printf("Query Error: %v\n", err)
			os.Exit(1)
		}
		for _, v := range out {
			enc.Encode(v)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
