package query

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gssh "golang.org/x/crypto/ssh"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
)

func TestMockScripts(t *testing.T) {
	m := NewMock()
	m.SetPaired("HOST1", "n", "p")
	m.Set("HOST2", MockResult{Err: errors.New("unreachable")})
	m.Set("HOST3", MockResult{Delay: time.Second})

	resp, err := m.Query(context.Background(), "HOST1")
	require.NoError(t, err)
	assert.Equal(t, Response{Format: FormatPaired, Names: "n", Ports: "p"}, resp)

	_, err = m.Query(context.Background(), "HOST2")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "HOST2", qerr.Host)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Query(ctx, "HOST3")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	resp, err = m.Query(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, FormatPaired, resp.Format)

	assert.Equal(t, []string{"HOST1", "HOST2", "HOST3", "unknown"}, m.Calls())
}

func TestPrinterRecordsFromDeviceTable(t *testing.T) {
	types := map[int]string{
		3: oidHrDevicePrinter,
		1: ".1.3.6.1.2.1.25.3.1.3", // processor
		2: "1.3.6.1.2.1.25.3.1.5",
	}
	descr := map[int]string{1: "Intel CPU", 2: "HP LaserJet 400", 3: "Brother HL-L2350"}

	got := printerRecords(types, descr, "10.0.0.9")
	assert.Equal(t, []inventory.PrinterRecord{
		{Name: "HP LaserJet 400", Port: "10.0.0.9"},
		{Name: "Brother HL-L2350", Port: "10.0.0.9"},
	}, got)
}

func TestTableIndex(t *testing.T) {
	idx, ok := tableIndex(".1.3.6.1.2.1.25.3.2.1.3.768", oidHrDeviceDescr)
	require.True(t, ok)
	assert.Equal(t, 768, idx)

	idx, ok = tableIndex("1.3.6.1.2.1.25.3.2.1.3.1", oidHrDeviceDescr)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = tableIndex(".1.3.6.1.2.1.25.3.2.1.2.1", oidHrDeviceDescr)
	assert.False(t, ok)
	_, ok = tableIndex(".1.3.6.1.2.1.25.3.2.1.3.1.2", oidHrDeviceDescr)
	assert.False(t, ok)
}

func TestNewSSHRequiresCredentials(t *testing.T) {
	_, err := NewSSH(config.SSHConfig{User: "audit"}, 0, logging.Nop())
	assert.Error(t, err)

	_, err = NewSSH(config.SSHConfig{Password: "x"}, 0, logging.Nop())
	assert.Error(t, err)

	_, err = NewSSH(config.SSHConfig{User: "audit", KeyFile: filepath.Join(t.TempDir(), "missing")}, 0, logging.Nop())
	assert.Error(t, err)
}

func TestNewSSHWithKeyFile(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := gssh.MarshalPrivateKey(priv, "audit")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	s, err := NewSSH(config.SSHConfig{User: "audit", KeyFile: keyPath}, 5*time.Second, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.BackendSSH, s.Name())
	assert.Equal(t, 22, s.port)
	assert.Len(t, s.client.Auth, 1)
	assert.Equal(t, 5*time.Second, s.client.Timeout)
}

func TestNoPrinters(t *testing.T) {
	assert.True(t, noPrinters(1, ""))
	assert.True(t, noPrinters(1, "\n"))
	assert.False(t, noPrinters(1, "device for p: ipp://x\n"))
	assert.False(t, noPrinters(2, ""))
}

func TestNewSelectsBackend(t *testing.T) {
	cases := map[string]string{
		config.BackendPowerShell: config.BackendPowerShell,
		config.BackendSNMP:       config.BackendSNMP,
		config.BackendMock:       config.BackendMock,
	}
	for backend, want := range cases {
		cfg := config.Default()
		cfg.Backend = backend
		src, err := New(cfg, logging.Nop())
		require.NoError(t, err)
		assert.Equal(t, want, src.Name())
	}

	cfg := config.Default()
	cfg.Backend = "wmi"
	_, err := New(cfg, logging.Nop())
	assert.Error(t, err)
}

func TestNewSNMPRejectsPortOverflow(t *testing.T) {
	_, err := NewSNMP(config.SNMPConfig{Port: 65536}, 0, logging.Nop())
	assert.Error(t, err)

	s, err := NewSNMP(config.SNMPConfig{}, 0, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, uint16(161), s.port)
}
