package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/audit"
	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/glpi"
	"github.com/nmasdoufi/printaudit/pkg/history"
	"github.com/nmasdoufi/printaudit/pkg/hostlist"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
	"github.com/nmasdoufi/printaudit/pkg/prompt"
	"github.com/nmasdoufi/printaudit/pkg/query"
	"github.com/nmasdoufi/printaudit/pkg/scheduler"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("printaudit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, command, output, backend, runID string
	var nonInteractive bool
	var limit int
	fs.StringVar(&configPath, "config", "", "path to config file (.yaml, .json or .ini)")
	fs.StringVar(&command, "command", "run", "command to run (run|history|denylist)")
	fs.StringVar(&output, "output", "", "report path (default "+config.DefaultOutput+")")
	fs.StringVar(&backend, "backend", "", "query backend (powershell|ssh|snmp|mock)")
	fs.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; fail instead")
	fs.IntVar(&limit, "limit", 10, "number of runs listed by -command history")
	fs.StringVar(&runID, "run", "", "with -command history, show the rows of one run")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: printaudit [flags] [hosts.csv]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	cfg.ApplyEnv()
	if output != "" {
		cfg.Output = output
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if nonInteractive {
		cfg.Interactive = false
	}
	if fs.NArg() > 0 {
		cfg.Input = fs.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "invalid configuration:", err)
		return exitUsage
	}
	logger, err := logging.New(cfg.Logging.Path, cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "denylist":
		printDenylist(stdout, cfg)
		return exitOK
	case "history":
		return showHistory(ctx, stdout, stderr, cfg, limit, runID)
	case "run":
		return runAudit(ctx, cfg, prompt.NewConsole(stdin, stdout), stdout, stderr, logger)
	default:
		fmt.Fprintln(stderr, "unknown command", command)
		return exitUsage
	}
}

func runAudit(ctx context.Context, cfg *config.Config, console *prompt.Console, stdout, stderr io.Writer, logger *logging.Logger) int {
	input, err := resolveInput(cfg, console)
	if errors.Is(err, prompt.ErrExit) {
		fmt.Fprintln(stdout, "Goodbye.")
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	cfg.Input = input

	source, err := query.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	deps := audit.Deps{Prompter: console, Progress: progressPrinter(stdout)}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Errorf("history disabled: %v", err)
		} else {
			defer store.Close()
			deps.History = store
		}
	}
	if cfg.GLPI.BaseURL != "" {
		if err := maybePromptGLPIPassword(cfg, console); err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		deps.GLPI = glpi.NewClient(cfg.GLPI)
	} else {
		logger.Debugf("GLPI integration disabled; rows kept in the report only")
	}
	runner, err := audit.New(cfg, source, deps, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if cfg.Scheduler.Enabled {
		if err := scheduler.New(cfg.Scheduler, cfg.Input, runner, logger).Start(ctx); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
		return exitOK
	}

	fmt.Fprintln(stdout, "Collecting printer information.")
	sum, err := runner.RunOnce(ctx)
	if err != nil {
		logger.Errorf("audit failed: %v", err)
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "Saved %d rows for %d hosts to %s", sum.Rows, sum.Hosts, sum.Output)
	if sum.Failed+sum.Mismatched+sum.Malformed > 0 {
		fmt.Fprintf(stdout, " (%d failed, %d mismatched, %d unreadable)", sum.Failed, sum.Mismatched, sum.Malformed)
	}
	fmt.Fprintln(stdout)
	return exitOK
}

// resolveInput returns the configured host list, asking for one when it is
// missing or does not look like a CSV file.
func resolveInput(cfg *config.Config, console *prompt.Console) (string, error) {
	if cfg.Input != "" && hostlist.MatchesPattern(cfg.Input) {
		return cfg.Input, nil
	}
	if !cfg.Interactive {
		return "", fmt.Errorf("input %q does not match %s", cfg.Input, hostlist.Pattern)
	}
	return console.AskInputPath(hostlist.Pattern)
}

func progressPrinter(w io.Writer) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(w, "\r%d/%d hosts", done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func printDenylist(w io.Writer, cfg *config.Config) {
	section := func(title string, exact, patterns []string) {
		fmt.Fprintf(w, "%s:\n", title)
		for _, v := range exact {
			fmt.Fprintf(w, "  %q\n", v)
		}
		for _, p := range patterns {
			fmt.Fprintf(w, "  %q (pattern)\n", p)
		}
	}
	section("Printer names", cfg.Denylist.Names, cfg.Denylist.NamePatterns)
	section("Ports", cfg.Denylist.Ports, cfg.Denylist.PortPatterns)
}

func showHistory(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, limit int, runID string) int {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer store.Close()
	if runID != "" {
		return showRun(ctx, stdout, stderr, store, runID)
	}
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs recorded")
		return exitOK
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tBACKEND\tHOSTS\tPRINTERS\tFAILED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime),
			r.Backend, r.Hosts, r.Printers, r.Failed, r.Output)
	}
	tw.Flush()
	return exitOK
}

// showRun prints the rows recorded for one run and a count per printer type.
func showRun(ctx context.Context, stdout, stderr io.Writer, store *history.Store, runID string) int {
	rows, err := store.Rows(ctx, runID)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if len(rows) == 0 {
		fmt.Fprintf(stderr, "no rows for run %s\n", runID)
		return exitFailure
	}
	counts, err := store.TypeCounts(ctx, runID)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOSTNAME\tPRINTER\tPORT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Hostname, r.PrinterName, r.PrinterIP)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, string(typ))
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(tw, "%s\t%d\n", typ, counts[inventory.PrinterType(typ)])
	}
	tw.Flush()
	return exitOK
}

func maybePromptGLPIPassword(cfg *config.Config, console *prompt.Console) error {
	if cfg == nil || cfg.GLPI.OAuth == nil {
		return nil
	}
	if cfg.GLPI.OAuth.Password != "" || cfg.GLPI.OAuth.Username == "" {
		return nil
	}
	if !cfg.Interactive {
		return fmt.Errorf("GLPI password for %s missing and prompting is disabled", cfg.GLPI.OAuth.Username)
	}
	pw, err := console.Ask(fmt.Sprintf("Enter GLPI password for %s: ", cfg.GLPI.OAuth.Username))
	if err != nil {
		return fmt.Errorf("read GLPI password: %w", err)
	}
	cfg.GLPI.OAuth.Password = strings.TrimSpace(pw)
	return nil
}
