// Package audit runs one printer audit end to end: load hosts, query them,
// parse the answers, build the rows and save the report.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/aggregate"
	"github.com/nmasdoufi/printaudit/pkg/collector"
	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/history"
	"github.com/nmasdoufi/printaudit/pkg/hostlist"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
	"github.com/nmasdoufi/printaudit/pkg/parser"
	"github.com/nmasdoufi/printaudit/pkg/query"
	"github.com/nmasdoufi/printaudit/pkg/report"
)

// Stage names a step of the run.
type Stage string

const (
	StageLoading  Stage = "loading"
	StageQuerying Stage = "querying"
	StageWriting  Stage = "writing"
)

// StageError reports the stage, and host when known, that stopped a run.
type StageError struct {
	Stage Stage
	Host  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Host, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// HistorySink records finished runs.
type HistorySink interface {
	SaveRun(ctx context.Context, run *history.Run, rows []inventory.ReportRow) error
}

// PrinterSink receives printer rows after the report is written.
type PrinterSink interface {
	PushRows(ctx context.Context, rows []inventory.ReportRow) (int, error)
}

// Deps are the optional collaborators of a Runner.
type Deps struct {
	Prompter report.Prompter
	History  HistorySink
	GLPI     PrinterSink
	Progress func(done, total int)
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Input      string
	Output     string
	Hosts      int
	Rows       int
	Printers   int
	Empty      int
	Failed     int
	Mismatched int
	Malformed  int
	Started    time.Time
	Finished   time.Time
}

// Runner executes audits with a fixed configuration.
type Runner struct {
	cfg    *config.Config
	source query.Source
	parser *parser.Parser
	deps   Deps
	log    *logging.Logger
}

// New builds a Runner. The prompter is only used when cfg.Interactive is set.
func New(cfg *config.Config, source query.Source, deps Deps, log *logging.Logger) (*Runner, error) {
	p, err := parser.New(cfg.Denylist, cfg.Query.HeaderLines)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, source: source, parser: p, deps: deps, log: log}, nil
}

// Run performs one audit; it satisfies scheduler.TaskRunner.
func (r *Runner) Run(ctx context.Context) error {
	_, err := r.RunOnce(ctx)
	return err
}

// RunOnce performs one audit and returns its summary.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	sum := Summary{Input: r.cfg.Input, Started: time.Now()}

	hosts, err := hostlist.Load(r.cfg.Input)
	if err != nil {
		return sum, &StageError{Stage: StageLoading, Err: err}
	}
	sum.Hosts = len(hosts)
	r.log.Infof("collecting printer information for %d hosts via %s", len(hosts), r.source.Name())

	opts := collector.OptionsFromConfig(r.cfg.Query)
	opts.Progress = r.deps.Progress
	outcomes, err := collector.New(r.source, opts, r.log).Collect(ctx, hosts)
	if err != nil {
		var herr *collector.HostError
		if errors.As(err, &herr) {
			return sum, &StageError{Stage: StageQuerying, Host: herr.Host, Err: herr.Err}
		}
		return sum, &StageError{Stage: StageQuerying, Err: err}
	}

	results := make([]aggregate.HostResult, 0, len(outcomes))
	for _, o := range outcomes {
		res := r.parseOutcome(o)
		switch res.Status {
		case parser.StatusEmpty:
			sum.Empty++
		case parser.StatusFailed:
			sum.Failed++
		case parser.StatusMismatch:
			sum.Mismatched++
		case parser.StatusMalformed:
			sum.Malformed++
		}
		results = append(results, aggregate.HostResult{Host: o.Host, Result: res})
	}

	r.log.Infof("converting data")
	rows := aggregate.Build(results)
	sum.Rows = len(rows)
	sum.Printers = aggregate.Printers(rows)

	var prompter report.Prompter
	if r.cfg.Interactive {
		prompter = r.deps.Prompter
	}
	written, err := report.Save(rows, r.cfg.OutputPath(), prompter)
	if err != nil {
		return sum, &StageError{Stage: StageWriting, Err: err}
	}
	sum.Output = written
	sum.Finished = time.Now()
	r.log.Infof("wrote %d rows (%d printers) for %d hosts to %s", sum.Rows, sum.Printers, sum.Hosts, written)

	r.runSinks(ctx, &sum, rows)
	return sum, nil
}

func (r *Runner) parseOutcome(o collector.Outcome) parser.Result {
	hlog := r.log.With("host", o.Host)
	if o.Err != nil {
		return parser.Failed(o.Err)
	}
	res := r.parser.Parse(o.Response)
	switch res.Status {
	case parser.StatusMismatch:
		hlog.Warnf("name/port count mismatch, %d entries dropped: %v", res.Dropped, res.Err)
	case parser.StatusMalformed:
		hlog.Warnf("unreadable printer output: %v", res.Err)
	case parser.StatusEmpty:
		hlog.Debugf("no printers after filtering")
	default:
		if res.Dropped > 0 {
			hlog.Warnf("%d incomplete printer rows dropped", res.Dropped)
		}
		hlog.Debugf("%d printers in %s", len(res.Records), o.Elapsed)
	}
	return res
}

func (r *Runner) runSinks(ctx context.Context, sum *Summary, rows []inventory.ReportRow) {
	if r.deps.History != nil {
		run := &history.Run{
			StartedAt:  sum.Started,
			FinishedAt: sum.Finished,
			Input:      sum.Input,
			Output:     sum.Output,
			Backend:    r.source.Name(),
			Hosts:      sum.Hosts,
			Printers:   sum.Printers,
			Failed:     sum.Failed,
		}
		if err := r.deps.History.SaveRun(ctx, run, rows); err != nil {
			r.log.Errorf("history save failed: %v", err)
		} else {
			sum.RunID = run.ID
			r.log.Debugf("history run %s saved", run.ID)
		}
	}
	if r.deps.GLPI != nil {
		n, err := r.deps.GLPI.PushRows(ctx, rows)
		if err != nil {
			r.log.Errorf("glpi push incomplete (%d accepted): %v", n, err)
		} else {
			r.log.Infof("pushed %d printers to GLPI", n)
		}
	}
}
