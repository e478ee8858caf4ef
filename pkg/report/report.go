// Package report writes and reads the printer audit CSV.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
)

// Prompter supplies an alternate file name after a failed write.
type Prompter interface {
	Ask(question string) (string, error)
}

// Write creates path and writes the header followed by rows.
func Write(path string, rows []inventory.ReportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(inventory.Header); err != nil {
		f.Close()
		return fmt.Errorf("write report header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.Fields()); err != nil {
			f.Close()
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// Save writes rows to path, falling back to the default name when path is
// empty. If the write fails and p is non-nil, the user is asked once for
// another name. It returns the path actually written.
func Save(rows []inventory.ReportRow, path string, p Prompter) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = config.DefaultOutput
	}
	err := Write(path, rows)
	if err == nil {
		return path, nil
	}
	if p == nil {
		return "", err
	}
	answer, perr := p.Ask(fmt.Sprintf("Unable to save %s (%v)\nPlease enter a name for export file: ", path, err))
	if perr != nil {
		return "", errors.Join(err, perr)
	}
	alt := AlternateName(answer)
	if alt == "" {
		return "", fmt.Errorf("no alternate report name given: %w", err)
	}
	if err := Write(alt, rows); err != nil {
		return "", fmt.Errorf("retry with %s: %w", alt, err)
	}
	return alt, nil
}

// AlternateName turns a prompt answer into a report path, appending .csv
// when the answer has no such extension.
func AlternateName(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	if !strings.EqualFold(filepath.Ext(answer), ".csv") {
		answer += ".csv"
	}
	return answer
}

// Read loads a report written by Write.
func Read(path string) ([]inventory.ReportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report %s is empty", path)
	}
	if strings.Join(records[0], ",") != strings.Join(inventory.Header, ",") {
		return nil, fmt.Errorf("report %s has unexpected header %v", path, records[0])
	}
	rows := make([]inventory.ReportRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, inventory.ReportRow{Hostname: rec[0], PrinterName: rec[1], PrinterIP: rec[2]})
	}
	return rows, nil
}
