// Package collector queries hosts through a bounded worker pool.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/logging"
	"github.com/nmasdoufi/printaudit/pkg/query"
)

// StageQuerying names the stage reported in HostError.
const StageQuerying = "querying"

// Options tune a collection run.
type Options struct {
	Workers  int
	Timeout  time.Duration
	OnError  string
	Progress func(done, total int)
}

// OptionsFromConfig maps query settings onto Options.
func OptionsFromConfig(cfg config.QueryConfig) Options {
	return Options{
		Workers: cfg.MaxWorkers,
		Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		OnError: cfg.OnError,
	}
}

// Outcome is the raw query result for one host.
type Outcome struct {
	Host     string
	Response query.Response
	Err      error
	Elapsed  time.Duration
}

// HostError aborts a run on the first failed host.
type HostError struct {
	Host  string
	Stage string
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Host, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// Collector fans host queries out to a Source.
type Collector struct {
	source query.Source
	opts   Options
	log    *logging.Logger
}

// New constructs a collector. Zero workers means one.
func New(source query.Source, opts Options, log *logging.Logger) *Collector {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.OnError == "" {
		opts.OnError = config.OnErrorAbort
	}
	return &Collector{source: source, opts: opts, log: log}
}

// Collect queries every host and returns outcomes in input order. Under the
// abort policy the first failure cancels outstanding work and is returned as
// a *HostError alongside the partial outcomes.
func (c *Collector) Collect(parent context.Context, hosts []string) ([]Outcome, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	outcomes := make([]Outcome, len(hosts))
	for i, h := range hosts {
		outcomes[i].Host = h
	}
	workerCount := c.opts.Workers
	if workerCount > len(hosts) {
		workerCount = len(hosts)
	}
	jobs := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	done := 0

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			out := c.queryHost(ctx, hosts[i])
			outcomes[i] = out

			mu.Lock()
			done++
			if out.Err != nil {
				if c.opts.OnError == config.OnErrorAbort {
					if firstErr == nil {
						firstErr = &HostError{Host: out.Host, Stage: StageQuerying, Err: out.Err}
						cancel()
					}
				} else {
					c.log.With("host", out.Host).Warnf("query failed, recording NONE: %v", out.Err)
				}
			}
			if c.opts.Progress != nil {
				c.opts.Progress(done, len(hosts))
			}
			mu.Unlock()
		}
	}

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go worker()
	}
	go func() {
		defer close(jobs)
		for i := range hosts {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	if firstErr != nil {
		return outcomes, firstErr
	}
	if err := parent.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (c *Collector) queryHost(ctx context.Context, host string) Outcome {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	c.log.Debugf("querying %s via %s", host, c.source.Name())
	resp, err := c.source.Query(ctx, host)
	return Outcome{Host: host, Response: resp, Err: err, Elapsed: time.Since(start)}
}
