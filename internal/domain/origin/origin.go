// Package origin decides which browser origins may call the API.
package origin

import (
	"fmt"
	"regexp"
)

// Decision is the per-request origin outcome.
// Origin is the exact value to echo back; it is empty when Allowed is false.
type Decision struct {
	Allowed bool
	Origin  string
}

// Policy is a static allow-list of exact origins plus regex pattern families.
type Policy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewPolicy compiles an allow-list. Each pattern must match the full Origin
// header value; unanchored expressions are anchored at both ends.
func NewPolicy(exact, patterns []string) (*Policy, error) {
	p := &Policy{exact: make(map[string]struct{}, len(exact))}
	for _, o := range exact {
		if o == "" || o == "*" {
			return nil, fmt.Errorf("invalid allowed origin %q", o)
		}
		p.exact[o] = struct{}{}
	}
	for _, expr := range patterns {
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compile origin pattern %q: %w", expr, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Decide matches the Origin header value. A missing origin is not allowed.
func (p *Policy) Decide(headerOrigin string) Decision {
	if headerOrigin == "" {
		return Decision{}
	}
	if _, ok := p.exact[headerOrigin]; ok {
		return Decision{Allowed: true, Origin: headerOrigin}
	}
	for _, re := range p.patterns {
		if re.MatchString(headerOrigin) {
			return Decision{Allowed: true, Origin: headerOrigin}
		}
	}
	return Decision{}
}
