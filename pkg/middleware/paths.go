package middleware

import "strings"

// PathPolicy decides which request paths skip authentication. Paths are
// protected unless they match an exact entry or start with a prefix entry.
type PathPolicy struct {
	exact    map[string]struct{}
	prefixes []string
}

func NewPathPolicy(exact, prefixes []string) PathPolicy {
	p := PathPolicy{exact: make(map[string]struct{}, len(exact))}
	for _, e := range exact {
		if e = strings.TrimSpace(e); e != "" {
			p.exact[e] = struct{}{}
		}
	}
	for _, pre := range prefixes {
		if pre = strings.TrimSpace(pre); pre != "" {
			p.prefixes = append(p.prefixes, pre)
		}
	}
	return p
}

func (p PathPolicy) IsPublic(path string) bool {
	if _, ok := p.exact[path]; ok {
		return true
	}
	// "/logout/" and "/logout" are the same route to the router.
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		if _, ok := p.exact[strings.TrimSuffix(path, "/")]; ok {
			return true
		}
	}
	for _, pre := range p.prefixes {
		if path == pre || strings.HasPrefix(path, strings.TrimSuffix(pre, "/")+"/") {
			return true
		}
	}
	return false
}
