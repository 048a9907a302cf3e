package trace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v2"

	"github.com/agenthands/trcarch/pkg/arch"
	"github.com/agenthands/trcarch/pkg/event"
)

// Replay statistics keys besides the event kinds.
const (
	StatFaults  = "faults"
	StatEmitted = "emitted"
)

// Stats counts replayed events by kind. It is safe for concurrent use.
type Stats struct {
	m *xsync.MapOf[string, *xsync.Counter]
}

func NewStats() *Stats {
	return &Stats{m: xsync.NewMapOf[*xsync.Counter]()}
}

func (s *Stats) Add(key string, n int64) {
	c, _ := s.m.LoadOrCompute(key, xsync.NewCounter)
	c.Add(n)
}

func (s *Stats) Get(key string) int64 {
	c, ok := s.m.Load(key)
	if !ok {
		return 0
	}
	return c.Value()
}

func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	s.m.Range(func(k string, c *xsync.Counter) bool {
		out[k] = c.Value()
		return true
	})
	return out
}

// Config configures a replay session.
type Config struct {
	Script    []byte
	Workers   int
	Gas       int64
	Constants map[string]int64
	Logger    *slog.Logger
	Stdout    io.Writer
}

// Result is the outcome of a replay session.
type Result struct {
	Session ulid.ULID
	// Events holds what the analyzers emitted, grouped by worker and in
	// trace order within a worker.
	Events []event.Event
	Stats  *Stats
}

// item is an event with its history sequence number.
type item struct {
	evt event.Event
	seq uint64
}

type worker struct {
	id   int
	an   *arch.Analyzer
	view *View
	in   chan item
	log  *slog.Logger
}

// Replay streams every event of r through the script in cfg. Events are
// partitioned by thread id over cfg.Workers analyzers, each with its own
// compiled copy of the script, so one thread's events are always handled
// in order by the same analyzer. An event the script faults on is logged
// and skipped. Cancelling ctx stops the session between events.
//
// Memory reads made while handling an event see the trace up to and
// including that event, whatever the scheduling of the workers.
func Replay(ctx context.Context, r *Reader, cfg Config) (*Result, error) {
	desc, err := r.Header()
	if err != nil {
		return nil, err
	}
	n := max(cfg.Workers, 1)
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	res := &Result{Session: ulid.Make(), Stats: NewStats()}
	log = log.With("session", res.Session.String())
	hist := NewHistory(desc.BigEndian)

	workers := make([]*worker, n)
	for i := range workers {
		an, err := arch.NewAnalyzer(cfg.Script,
			arch.WithConstants(cfg.Constants),
			arch.WithGas(cfg.Gas),
			arch.WithLogger(log),
			arch.WithStdout(stdout))
		if err != nil {
			return nil, err
		}
		w := &worker{id: i, an: an, view: hist.View(0), in: make(chan item, 64), log: log.With("worker", i)}
		an.SetMemory(w.view)
		workers[i] = w
	}
	log.Info("replay started", "workers", n, "arch", workers[0].an.Arch.Name)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, res.Stats)
		}()
	}

	err = dispatch(ctx, r, hist, workers)
	for _, w := range workers {
		close(w.in)
	}
	wg.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for _, w := range workers {
		res.Events = append(res.Events, w.an.Events()...)
	}
	res.Stats.Add(StatEmitted, int64(len(res.Events)))
	log.Info("replay finished", "events", len(res.Events), "faults", res.Stats.Get(StatFaults), "error", err)
	return res, err
}

func dispatch(ctx context.Context, r *Reader, hist *History, workers []*worker) error {
	for ctx.Err() == nil {
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		seq := hist.Record(evt)
		w := workers[int(uint32(evt.Tid()))%len(workers)]
		select {
		case w.in <- item{evt: evt, seq: seq}:
		case <-ctx.Done():
		}
	}
	return nil
}

func (w *worker) run(ctx context.Context, stats *Stats) {
	if err := w.an.Start(); err != nil {
		w.log.Warn("start failed", "error", err)
	}
	for it := range w.in {
		if ctx.Err() != nil {
			continue
		}
		evt := it.evt
		w.view.Seq = it.seq
		if err := w.an.Process(evt); err != nil {
			stats.Add(StatFaults, 1)
			w.log.Warn("event skipped", "kind", evt.Kind(), "tid", evt.Tid(), "error", err)
			continue
		}
		stats.Add(evt.Kind().String(), 1)
	}
	if err := w.an.Finish(); err != nil {
		w.log.Warn("finish failed", "error", err)
	}
}
