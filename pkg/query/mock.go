package query

import (
	"context"
	"sync"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/config"
)

// MockResult scripts the answer for one host.
type MockResult struct {
	Response Response
	Err      error
	Delay    time.Duration
}

// Mock is a scripted Source for tests and dry runs. Unknown hosts answer with
// an empty paired response.
type Mock struct {
	mu      sync.Mutex
	scripts map[string]MockResult
	calls   []string
}

// NewMock creates an empty Mock.
func NewMock() *Mock { return &Mock{scripts: map[string]MockResult{}} }

// Set scripts the result for host.
func (m *Mock) Set(host string, res MockResult) {
	m.mu.Lock()
	m.scripts[host] = res
	m.mu.Unlock()
}

// SetPaired scripts raw name/port streams for host.
func (m *Mock) SetPaired(host, names, ports string) {
	m.Set(host, MockResult{Response: Response{Format: FormatPaired, Names: names, Ports: ports}})
}

// Calls returns the hosts queried so far, in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Name identifies the backend.
func (m *Mock) Name() string { return config.BackendMock }

// Query returns the scripted result for host.
func (m *Mock) Query(ctx context.Context, host string) (Response, error) {
	m.mu.Lock()
	r, ok := m.scripts[host]
	m.calls = append(m.calls, host)
	m.mu.Unlock()
	if !ok {
		return Response{Format: FormatPaired}, nil
	}
	if r.Delay > 0 {
		select {
		case <-ctx.Done():
			return Response{}, &Error{Host: host, Err: ctx.Err()}
		case <-time.After(r.Delay):
		}
	}
	if r.Err != nil {
		return Response{}, &Error{Host: host, Err: r.Err}
	}
	return r.Response, nil
}
