package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/history"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
	"github.com/nmasdoufi/printaudit/pkg/query"
	"github.com/nmasdoufi/printaudit/pkg/report"
)

const (
	nameHeader = "\r\nName\r\n----\r\n"
	portHeader = "\r\nPortName\r\n--------\r\n"
)

type answer string

func (a answer) Ask(string) (string, error) { return string(a), nil }

type failingGLPI struct{ calls int }

func (f *failingGLPI) PushRows(context.Context, []inventory.ReportRow) (int, error) {
	f.calls++
	return 0, errors.New("glpi down")
}

func setup(t *testing.T, hosts ...string) (*config.Config, *query.Mock) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "hosts.csv")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(hosts, "\n")+"\n"), 0o644))

	cfg := config.Default()
	cfg.Backend = config.BackendMock
	cfg.Input = input
	cfg.Output = filepath.Join(dir, config.DefaultOutput)
	cfg.Interactive = false

	m := query.NewMock()
	m.SetPaired("HOST1", nameHeader+"\r\nPrinter1\r\n", portHeader+"nul:\r\n\\\\srv\\p1\r\n")
	m.SetPaired("HOST2", nameHeader+"Microsoft Print to PDF\r\nFax\r\n", portHeader+"PORTPROMPT:\r\nSHRFAX:\r\n")
	return cfg, m
}

func TestRunOnceWritesReport(t *testing.T) {
	cfg, m := setup(t, "HOST1", "HOST2")
	r, err := New(cfg, m, Deps{}, logging.Nop())
	require.NoError(t, err)

	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Hosts)
	assert.Equal(t, 2, sum.Rows)
	assert.Equal(t, 1, sum.Printers)
	assert.Equal(t, 1, sum.Empty)
	assert.Equal(t, cfg.Output, sum.Output)

	rows, err := report.Read(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, []inventory.ReportRow{
		{Hostname: "HOST1", PrinterName: "Printer1", PrinterIP: `\\srv\p1`},
		{Hostname: "HOST2", PrinterName: "NONE", PrinterIP: "NONE"},
	}, rows)
}

func TestRunOnceMismatchAndFailuresUnderSentinelPolicy(t *testing.T) {
	cfg, m := setup(t, "HOST3", "HOST4", "HOST1")
	cfg.Query.OnError = config.OnErrorSentinel
	m.SetPaired("HOST3", nameHeader+"P1\r\nP2\r\n", portHeader+"IP_1\r\n")
	m.Set("HOST4", query.MockResult{Err: errors.New("rpc server unavailable")})
	r, err := New(cfg, m, Deps{}, logging.Nop())
	require.NoError(t, err)

	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Mismatched)
	assert.Equal(t, 1, sum.Failed)

	rows, err := report.Read(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, []inventory.ReportRow{
		{Hostname: "HOST3", PrinterName: "P1", PrinterIP: "IP_1"},
		{Hostname: "HOST4", PrinterName: "NONE", PrinterIP: "NONE"},
		{Hostname: "HOST1", PrinterName: "Printer1", PrinterIP: `\\srv\p1`},
	}, rows)
}

func TestRunOnceAbortPolicy(t *testing.T) {
	cfg, m := setup(t, "HOST1", "HOST4", "HOST2")
	boom := errors.New("access denied")
	m.Set("HOST4", query.MockResult{Err: boom})
	r, err := New(cfg, m, Deps{}, logging.Nop())
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageQuerying, serr.Stage)
	assert.Equal(t, "HOST4", serr.Host)
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, cfg.Output)
}

func TestRunOnceMissingInput(t *testing.T) {
	cfg, m := setup(t, "HOST1")
	cfg.Input = filepath.Join(t.TempDir(), "missing.csv")
	r, err := New(cfg, m, Deps{}, logging.Nop())
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageLoading, serr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, m.Calls())
}

func TestRunOnceLockedOutput(t *testing.T) {
	cfg, m := setup(t, "HOST1")
	require.NoError(t, os.Mkdir(cfg.Output, 0o755))
	alt := filepath.Join(filepath.Dir(cfg.Output), "fallback")

	t.Run("non-interactive fails", func(t *testing.T) {
		r, err := New(cfg, m, Deps{Prompter: answer(alt)}, logging.Nop())
		require.NoError(t, err)
		_, err = r.RunOnce(context.Background())
		var serr *StageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StageWriting, serr.Stage)
	})

	t.Run("interactive retries", func(t *testing.T) {
		cfg.Interactive = true
		r, err := New(cfg, m, Deps{Prompter: answer(alt)}, logging.Nop())
		require.NoError(t, err)
		sum, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, alt+".csv", sum.Output)
		assert.FileExists(t, alt+".csv")
	})
}

func TestRunOnceSinks(t *testing.T) {
	cfg, m := setup(t, "HOST1", "HOST2")
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	glpi := &failingGLPI{}
	var progress []int
	r, err := New(cfg, m, Deps{History: store, GLPI: glpi, Progress: func(done, _ int) {
		progress = append(progress, done)
	}}, logging.Nop())
	require.NoError(t, err)

	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err, "sink failures must not fail the run")
	assert.Equal(t, 1, glpi.calls)
	assert.Equal(t, []int{1, 2}, progress)
	require.NotEmpty(t, sum.RunID)

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, config.BackendMock, runs[0].Backend)
	assert.Equal(t, 1, runs[0].Printers)

	rows, err := store.Rows(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNewRejectsBadPatterns(t *testing.T) {
	cfg := config.Default()
	cfg.Denylist.NamePatterns = []string{"["}
	_, err := New(cfg, query.NewMock(), Deps{}, logging.Nop())
	assert.Error(t, err)
}

func TestRunSatisfiesTaskRunner(t *testing.T) {
	cfg, m := setup(t, "HOST1")
	r, err := New(cfg, m, Deps{}, logging.Nop())
	require.NoError(t, err)
	var runner interface{ Run(context.Context) error } = r
	assert.NoError(t, runner.Run(context.Background()))
}
