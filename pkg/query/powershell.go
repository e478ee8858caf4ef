package query

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nmasdoufi/printaudit/pkg/config"
)

// CommandRunner executes a local program and captures its output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes name with args, honouring ctx cancellation.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// PowerShell queries Windows hosts with Get-Printer.
type PowerShell struct {
	executable string
	mode       string
	runner     CommandRunner
}

// NewPowerShell creates the Get-Printer backend. mode is config.ModePaired
// or config.ModeTable.
func NewPowerShell(executable, mode string, runner CommandRunner) *PowerShell {
	if executable == "" {
		executable = "powershell"
	}
	if mode == "" {
		mode = config.ModePaired
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PowerShell{executable: executable, mode: mode, runner: runner}
}

// Name identifies the backend.
func (p *PowerShell) Name() string { return config.BackendPowerShell }

// Query runs Get-Printer against host.
func (p *PowerShell) Query(ctx context.Context, host string) (Response, error) {
	if p.mode == config.ModeTable {
		out, err := p.run(ctx, host, "table", TableCommand(host))
		if err != nil {
			return Response{}, err
		}
		return Response{Format: FormatTable, Table: out}, nil
	}

	var names, ports string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.run(gctx, host, "name", SelectCommand(host, "Name"))
		names = out
		return err
	})
	g.Go(func() error {
		out, err := p.run(gctx, host, "portname", SelectCommand(host, "PortName"))
		ports = out
		return err
	})
	if err := g.Wait(); err != nil {
		return Response{}, err
	}
	return Response{Format: FormatPaired, Names: names, Ports: ports}, nil
}

func (p *PowerShell) run(ctx context.Context, host, attribute, command string) (string, error) {
	stdout, stderr, err := p.runner.Run(ctx, p.executable, "-NoProfile", "-NonInteractive", "-Command", command)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return "", &Error{Host: host, Attribute: attribute, Stderr: strings.TrimSpace(string(stderr)), Err: err}
	}
	return string(stdout), nil
}

// SelectCommand lists one Get-Printer property for host.
func SelectCommand(host, property string) string {
	return fmt.Sprintf("Get-Printer -ComputerName %s | Select-Object %s", quotePS(host), property)
}

// TableCommand lists name and port together as CSV.
func TableCommand(host string) string {
	return fmt.Sprintf("Get-Printer -ComputerName %s | Select-Object Name,PortName | ConvertTo-Csv -NoTypeInformation", quotePS(host))
}

// quotePS wraps s in a PowerShell single-quoted literal.
func quotePS(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
