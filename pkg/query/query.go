// Package query enumerates the printers configured on a host.
//
// A Source returns the raw material for the parser: two text streams for the
// paired PowerShell mode, a CSV table, lpstat output, or records that a
// backend already decoded.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
)

// Format tells the parser how to read a Response.
type Format string

const (
	FormatPaired  Format = "paired"
	FormatTable   Format = "table"
	FormatLpstat  Format = "lpstat"
	FormatRecords Format = "records"
)

// Response is the raw output of one host query.
type Response struct {
	Format  Format
	Names   string
	Ports   string
	Table   string
	Records []inventory.PrinterRecord
}

// Source enumerates printers for a host.
type Source interface {
	Name() string
	Query(ctx context.Context, host string) (Response, error)
}

// Error carries the host and attribute of a failed query.
type Error struct {
	Host      string
	Attribute string
	Stderr    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("query %s", e.Host)
	if e.Attribute != "" {
		msg += " (" + e.Attribute + ")"
	}
	msg += ": " + e.Err.Error()
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds the Source selected by cfg.Backend.
func New(cfg *config.Config, log *logging.Logger) (Source, error) {
	timeout := time.Duration(cfg.Query.TimeoutMS) * time.Millisecond
	switch cfg.Backend {
	case config.BackendPowerShell:
		return NewPowerShell(cfg.PowerShell.Executable, cfg.Query.Mode, ExecRunner{}), nil
	case config.BackendSSH:
		return NewSSH(cfg.SSH, timeout, log)
	case config.BackendSNMP:
		return NewSNMP(cfg.SNMP, timeout, log)
	case config.BackendMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
