package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gssh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/logging"
)

// LpstatCommand lists CUPS queues with their device URIs.
const LpstatCommand = "LC_ALL=C lpstat -v"

// SSH queries CUPS hosts by running lpstat over SSH.
type SSH struct {
	port    int
	client  *gssh.ClientConfig
	timeout time.Duration
	log     *logging.Logger
}

// NewSSH builds the SSH backend from credentials in cfg.
func NewSSH(cfg config.SSHConfig, timeout time.Duration, log *logging.Logger) (*SSH, error) {
	if cfg.User == "" {
		return nil, errors.New("ssh user missing")
	}
	auth, err := sshAuth(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := sshHostKeyCallback(cfg.KnownHostsFile, log)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	return &SSH{
		port: port,
		client: &gssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         timeout,
		},
		timeout: timeout,
		log:     log,
	}, nil
}

func sshAuth(cfg config.SSHConfig) ([]gssh.AuthMethod, error) {
	var methods []gssh.AuthMethod
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(expandHome(cfg.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := gssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, gssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, gssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("ssh backend needs key_file or password")
	}
	return methods, nil
}

func sshHostKeyCallback(file string, log *logging.Logger) (gssh.HostKeyCallback, error) {
	if file == "" {
		log.Warnf("ssh known_hosts_file not set; host keys are not verified")
		return gssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(expandHome(file))
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return cb, nil
}

// Name identifies the backend.
func (s *SSH) Name() string { return config.BackendSSH }

// Query runs lpstat -v on host.
func (s *SSH) Query(ctx context.Context, host string) (Response, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(s.port))
	}

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, &Error{Host: host, Attribute: "lpstat", Err: err}
	}
	c, chans, reqs, err := gssh.NewClientConn(conn, addr, s.client)
	if err != nil {
		conn.Close()
		return Response{}, &Error{Host: host, Attribute: "lpstat", Err: err}
	}
	client := gssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Response{}, &Error{Host: host, Attribute: "lpstat", Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(LpstatCommand) }()

	select {
	case <-ctx.Done():
		_ = client.Close()
		return Response{}, &Error{Host: host, Attribute: "lpstat", Err: ctx.Err()}
	case err = <-done:
	}

	if err != nil {
		var exitErr *gssh.ExitError
		if errors.As(err, &exitErr) && noPrinters(exitErr.ExitStatus(), stdout.String()) {
			s.log.Debugf("%s: lpstat reports no destinations", host)
			return Response{Format: FormatLpstat}, nil
		}
		return Response{}, &Error{Host: host, Attribute: "lpstat", Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return Response{Format: FormatLpstat, Table: stdout.String()}, nil
}

// noPrinters matches lpstat's exit status 1 on a host with no queues.
func noPrinters(status int, stdout string) bool {
	return status == 1 && strings.TrimSpace(stdout) == ""
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
