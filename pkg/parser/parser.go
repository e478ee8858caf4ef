// Package parser turns raw printer enumeration output into printer records.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/query"
)

// Status classifies a parse outcome.
type Status string

const (
	// StatusOK means every record was paired cleanly.
	StatusOK Status = "ok"
	// StatusEmpty means the host reported no usable printers.
	StatusEmpty Status = "empty"
	// StatusMismatch means the name and port streams had different lengths
	// after filtering; the surplus was dropped.
	StatusMismatch Status = "mismatch"
	// StatusMalformed means the output could not be read at all.
	StatusMalformed Status = "malformed"
	// StatusFailed means the host query itself failed.
	StatusFailed Status = "failed"
)

// Result is the typed outcome for one host. Records is never empty: hosts
// without printers carry the single sentinel record.
type Result struct {
	Records []inventory.PrinterRecord
	Status  Status
	Dropped int
	Err     error
}

// Failed builds the result for a host whose query failed.
func Failed(err error) Result {
	return Result{Records: []inventory.PrinterRecord{inventory.Sentinel}, Status: StatusFailed, Err: err}
}

// Parser applies header stripping and denylists.
type Parser struct {
	names       *Denylist
	ports       *Denylist
	headerLines int
}

// New builds a Parser from denylist configuration.
func New(cfg config.DenylistConfig, headerLines int) (*Parser, error) {
	names, err := NewDenylist(cfg.Names, cfg.NamePatterns)
	if err != nil {
		return nil, err
	}
	ports, err := NewDenylist(cfg.Ports, cfg.PortPatterns)
	if err != nil {
		return nil, err
	}
	if headerLines < 0 {
		headerLines = 0
	}
	return &Parser{names: names, ports: ports, headerLines: headerLines}, nil
}

// Names returns the printer name denylist.
func (p *Parser) Names() *Denylist { return p.names }

// Ports returns the port denylist.
func (p *Parser) Ports() *Denylist { return p.ports }

// Parse dispatches on the response format.
func (p *Parser) Parse(resp query.Response) Result {
	switch resp.Format {
	case query.FormatPaired:
		return p.ParsePaired(resp.Names, resp.Ports)
	case query.FormatTable:
		return p.ParseTable(resp.Table)
	case query.FormatLpstat:
		return p.ParseLpstat(resp.Table)
	case query.FormatRecords:
		return p.ParseRecords(resp.Records)
	default:
		return Result{
			Records: []inventory.PrinterRecord{inventory.Sentinel},
			Status:  StatusMalformed,
			Err:     fmt.Errorf("unknown response format %q", resp.Format),
		}
	}
}

// SplitLines splits on \n, \r\n and \r. A trailing line break does not
// produce an empty final line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// StripHeader drops the first n lines of text and trims trailing whitespace
// from the rest. Output shorter than the header yields an empty slice.
func StripHeader(text string, n int) []string {
	lines := SplitLines(text)
	if len(lines) <= n {
		return []string{}
	}
	out := make([]string, 0, len(lines)-n)
	for _, l := range lines[n:] {
		out = append(out, strings.TrimRightFunc(l, unicode.IsSpace))
	}
	return out
}

// ParsePaired filters the name and port streams independently and pairs
// them by position. Length differences truncate to the shorter list and are
// reported as StatusMismatch.
func (p *Parser) ParsePaired(names, ports string) Result {
	n := p.names.Filter(StripHeader(names, p.headerLines))
	pt := p.ports.Filter(StripHeader(ports, p.headerLines))

	count := len(n)
	if len(pt) < count {
		count = len(pt)
	}
	records := make([]inventory.PrinterRecord, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, inventory.PrinterRecord{Name: n[i], Port: pt[i]})
	}

	res := finish(records)
	if len(n) != len(pt) {
		res.Status = StatusMismatch
		res.Dropped = len(n) + len(pt) - 2*count
		res.Err = fmt.Errorf("%d printer names but %d ports after filtering", len(n), len(pt))
	}
	return res
}

// ParseTable reads ConvertTo-Csv output with Name and PortName columns. Rows
// are filtered as a unit so names and ports can never drift apart.
func (p *Parser) ParseTable(table string) Result {
	if strings.TrimSpace(table) == "" {
		return finish(nil)
	}
	reader := csv.NewReader(strings.NewReader(table))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	nameCol, portCol := -1, -1
	var records []inventory.PrinterRecord
	dropped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return malformed(fmt.Errorf("read printer table: %w", err))
		}
		if nameCol < 0 {
			nameCol, portCol = headerColumns(row)
			continue
		}
		if nameCol >= len(row) || portCol >= len(row) {
			dropped++
			continue
		}
		rec := inventory.NormalizeRecord(inventory.PrinterRecord{Name: row[nameCol], Port: row[portCol]})
		if p.names.Match(rec.Name) || p.ports.Match(rec.Port) {
			continue
		}
		records = append(records, rec)
	}
	if nameCol < 0 {
		return malformed(errors.New("printer table has no Name/PortName header"))
	}
	res := finish(records)
	res.Dropped = dropped
	return res
}

// headerColumns returns the Name and PortName column indexes, or -1s when
// row is not the header (e.g. a #TYPE preamble).
func headerColumns(row []string) (int, int) {
	nameCol, portCol := -1, -1
	for i, h := range row {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameCol = i
		case "portname":
			portCol = i
		}
	}
	if nameCol < 0 || portCol < 0 {
		return -1, -1
	}
	return nameCol, portCol
}

var lpstatDevice = regexp.MustCompile(`^device\s+for\s+(\S+):\s+(.*)$`)

// ParseLpstat reads `lpstat -v` output.
func (p *Parser) ParseLpstat(out string) Result {
	var records []inventory.PrinterRecord
	for _, line := range SplitLines(out) {
		m := lpstatDevice.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		rec := inventory.NormalizeRecord(inventory.PrinterRecord{Name: m[1], Port: m[2]})
		if p.names.Match(rec.Name) || p.ports.Match(rec.Port) {
			continue
		}
		records = append(records, rec)
	}
	return finish(records)
}

// ParseRecords applies normalization and denylists to decoded records.
func (p *Parser) ParseRecords(in []inventory.PrinterRecord) Result {
	records := make([]inventory.PrinterRecord, 0, len(in))
	for _, r := range in {
		r = inventory.NormalizeRecord(r)
		if p.names.Match(r.Name) || p.ports.Match(r.Port) {
			continue
		}
		records = append(records, r)
	}
	return finish(records)
}

func finish(records []inventory.PrinterRecord) Result {
	if len(records) == 0 {
		return Result{Records: []inventory.PrinterRecord{inventory.Sentinel}, Status: StatusEmpty}
	}
	return Result{Records: records, Status: StatusOK}
}

func malformed(err error) Result {
	return Result{Records: []inventory.PrinterRecord{inventory.Sentinel}, Status: StatusMalformed, Err: err}
}
