package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agenthands/trcarch/pkg/arch"
	"github.com/agenthands/trcarch/pkg/config"
)

func watchScript() {
	cmd := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := cmd.Duration("debounce", 200*time.Millisecond, "Quiet period before recompiling")
	cfgPath := cmd.String("config", "", "YAML configuration file")
	path := scriptArg("watch")
	cmd.Parse(os.Args[3:])

	cfg := config.Defaults()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}
	cmd.Visit(func(f *flag.Flag) {
		if f.Name == "debounce" {
			cfg.Watch.Debounce = *debounce
		}
	})

	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Printf("Error creating watcher: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()
	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		fmt.Printf("Error watching %s: %v\n", path, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Level())
	reload := func() {
		src, err := os.ReadFile(abs)
		if err != nil {
			log.Error("read failed", "path", path, "error", err)
			return
		}
		a, err := arch.Load(src,
			arch.WithConstants(cfg.Constants),
			arch.WithGas(cfg.Gas),
			arch.WithLogger(log),
			arch.WithStdout(os.Stderr))
		if err != nil {
			fmt.Printf("%s:\n%v\n", path, err)
			return
		}
		fmt.Printf("%s: %s (id %#04x) %s\n", path, a.Name, uint16(a.ID), a.Description)
	}
	reload()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cfg.Watch.Debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error("watch failed", "error", err)
		case <-sig:
			return
		}
	}
}
