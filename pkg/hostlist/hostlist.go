// Package hostlist reads the audit target list.
package hostlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pattern is the shape the CLI expects for an input path.
const Pattern = "*.csv"

// Load returns the first column of every record in the delimited file at
// path, in file order. No header is assumed and hostnames are not validated.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open host list: %w", err)
	}
	defer f.Close()

	hosts, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read host list %s: %w", path, err)
	}
	return hosts, nil
}

// Read parses host records from r.
func Read(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var hosts []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		host := strings.TrimPrefix(record[0], "\ufeff")
		if strings.TrimSpace(host) == "" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// MatchesPattern reports whether path looks like a CSV host list. The
// comparison ignores case, as Windows file names do.
func MatchesPattern(path string) bool {
	return MatchFold(Pattern, path)
}

// MatchFold matches the base name of path against pattern, ignoring case.
func MatchFold(pattern, path string) bool {
	ok, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(filepath.Base(path)))
	return err == nil && ok
}
