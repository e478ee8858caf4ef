package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmasdoufi/printaudit/pkg/inventory"
)

type scriptedPrompter struct {
	answer    string
	err       error
	questions []string
}

func (s *scriptedPrompter) Ask(q string) (string, error) {
	s.questions = append(s.questions, q)
	return s.answer, s.err
}

var sampleRows = []inventory.ReportRow{
	{Hostname: "HOST1", PrinterName: "Printer1", PrinterIP: `\\srv\p1`},
	{Hostname: "HOST2", PrinterName: "NONE", PrinterIP: "NONE"},
	{Hostname: "HOST3", PrinterName: "Floor 2, \"Color\"", PrinterIP: "IP_10.0.0.5"},
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Write(path, sampleRows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hostname,printer_name,printer_ip\nHOST1,Printer1,\\\\srv\\p1\nHOST2,NONE,NONE\nHOST3,\"Floor 2, \"\"Color\"\"\",IP_10.0.0.5\n", string(data))

	rows, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
}

func TestWriteHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, Write(path, nil))
	rows, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSavePromptsOnceOnLockedPath(t *testing.T) {
	dir := t.TempDir()
	locked := filepath.Join(dir, "network-printers-checked.csv")
	require.NoError(t, os.Mkdir(locked, 0o755))
	p := &scriptedPrompter{answer: filepath.Join(dir, "retry")}

	written, err := Save(sampleRows, locked, p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "retry.csv"), written)
	assert.Len(t, p.questions, 1)

	rows, err := Read(written)
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
}

func TestSaveNonInteractiveFails(t *testing.T) {
	locked := t.TempDir()

	_, err := Save(sampleRows, locked, nil)
	assert.Error(t, err)
}

func TestSaveSecondFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "again.csv"), 0o755))
	p := &scriptedPrompter{answer: filepath.Join(dir, "again.csv")}

	_, err := Save(sampleRows, dir, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry with")
	assert.Len(t, p.questions, 1)
}

func TestSavePromptErrors(t *testing.T) {
	dir := t.TempDir()
	stop := errors.New("stop")

	_, err := Save(sampleRows, dir, &scriptedPrompter{err: stop})
	assert.ErrorIs(t, err, stop)

	_, err = Save(sampleRows, dir, &scriptedPrompter{answer: "  "})
	assert.Error(t, err)
}

func TestAlternateName(t *testing.T) {
	cases := map[string]string{
		"report":     "report.csv",
		"report.csv": "report.csv",
		"REPORT.CSV": "REPORT.CSV",
		" out.txt ":  "out.txt.csv",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, AlternateName(in), in)
	}
}

func TestReadRejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,b,c\n1,2,3\n"), 0o644))
	_, err := Read(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Read(empty)
	assert.Error(t, err)

	_, err = Read(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
