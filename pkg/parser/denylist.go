package parser

import (
	"fmt"
	"path"
)

// Denylist matches values considered noise: virtual printers and
// placeholder ports. Exact entries compare whole strings; patterns use
// path.Match glob syntax.
type Denylist struct {
	exact    map[string]struct{}
	patterns []string
}

// NewDenylist validates patterns and builds a Denylist.
func NewDenylist(exact, patterns []string) (*Denylist, error) {
	d := &Denylist{exact: make(map[string]struct{}, len(exact))}
	for _, v := range exact {
		d.exact[v] = struct{}{}
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad denylist pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, p)
	}
	return d, nil
}

// Match reports whether v is noise.
func (d *Denylist) Match(v string) bool {
	if d == nil {
		return false
	}
	if _, ok := d.exact[v]; ok {
		return true
	}
	for _, p := range d.patterns {
		if ok, _ := path.Match(p, v); ok {
			return true
		}
	}
	return false
}

// Filter returns the values that are not denylisted, preserving order.
func (d *Denylist) Filter(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !d.Match(v) {
			out = append(out, v)
		}
	}
	return out
}
