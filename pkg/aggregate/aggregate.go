// Package aggregate flattens per-host parse results into report rows.
package aggregate

import (
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/parser"
)

// HostResult pairs a hostname with its parse outcome.
type HostResult struct {
	Host   string
	Result parser.Result
}

// Build emits rows in host order and, within a host, in record order. Every
// host yields at least one row; failed hosts and records missing a field
// become NONE rows.
func Build(results []HostResult) []inventory.ReportRow {
	rows := make([]inventory.ReportRow, 0, len(results))
	for _, hr := range results {
		if hr.Result.Status == parser.StatusFailed || len(hr.Result.Records) == 0 {
			rows = append(rows, inventory.SentinelRow(hr.Host))
			continue
		}
		for _, rec := range hr.Result.Records {
			if !rec.Valid() {
				rows = append(rows, inventory.SentinelRow(hr.Host))
				continue
			}
			rows = append(rows, inventory.ReportRow{Hostname: hr.Host, PrinterName: rec.Name, PrinterIP: rec.Port})
		}
	}
	return rows
}

// Printers counts rows that name a real printer.
func Printers(rows []inventory.ReportRow) int {
	n := 0
	for _, r := range rows {
		if !r.IsSentinel() {
			n++
		}
	}
	return n
}
