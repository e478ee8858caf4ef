package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmasdoufi/printaudit/pkg/inventory"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var auditRows = []inventory.ReportRow{
	{Hostname: "HOST1", PrinterName: "Printer1", PrinterIP: `\\srv\p1`},
	{Hostname: "HOST1", PrinterName: "Label", PrinterIP: "USB001"},
	{Hostname: "HOST2", PrinterName: "NONE", PrinterIP: "NONE"},
}

func TestSaveRunAndReadBack(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	run := &Run{StartedAt: start, FinishedAt: start.Add(42 * time.Second), Input: "hosts.csv",
		Output: "network-printers-checked.csv", Backend: "powershell", Hosts: 2, Printers: 2}

	require.NoError(t, s.SaveRun(ctx, run, auditRows))
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, *run, runs[0])

	rows, err := s.Rows(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, auditRows, rows)

	counts, err := s.TypeCounts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[inventory.PrinterType]int{
		inventory.TypeNetwork: 1,
		inventory.TypeUSB:     1,
		inventory.TypeUnknown: 1,
	}, counts)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		run := &Run{StartedAt: base.Add(time.Duration(i) * time.Hour), FinishedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.SaveRun(ctx, run, nil))
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	rows, err := s.Rows(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSaveRunDuplicateIDRollsBack(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	run := &Run{ID: "fixed"}
	require.NoError(t, s.SaveRun(ctx, run, auditRows[:1]))

	err := s.SaveRun(ctx, &Run{ID: "fixed"}, auditRows)
	assert.Error(t, err)

	rows, err := s.Rows(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printaudit.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), &Run{}, auditRows))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
