package unifs

import (
	"sync"

	"github.com/gobwas/glob"
)

// NamePattern matches entry names against a glob pattern such as "*.txt",
// "data-??.csv" or "[ab]*". An empty pattern matches every name.
type NamePattern struct {
	raw string
	g   glob.Glob
}

var (
	patternCache   = make(map[string]*NamePattern)
	patternCacheMu sync.RWMutex
)

// CompilePattern compiles a name pattern. Compiled patterns are cached.
func CompilePattern(pattern string) (*NamePattern, error) {
	if pattern == "" || pattern == "*" || pattern == "*.*" {
		return &NamePattern{raw: pattern}, nil
	}

	patternCacheMu.RLock()
	p, ok := patternCache[pattern]
	patternCacheMu.RUnlock()
	if ok {
		return p, nil
	}

	// No separators: names never contain one, so '*' may match anything.
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, NewPathError("pattern", pattern, err)
	}
	p = &NamePattern{raw: pattern, g: g}

	patternCacheMu.Lock()
	patternCache[pattern] = p
	patternCacheMu.Unlock()

	return p, nil
}

// Match reports whether name matches.
func (p *NamePattern) Match(name string) bool {
	if p == nil || p.g == nil {
		return true
	}
	return p.g.Match(name)
}

// String returns the source pattern.
func (p *NamePattern) String() string {
	if p == nil {
		return ""
	}
	return p.raw
}

// MatchName compiles pattern and matches name. Invalid patterns match nothing.
func MatchName(pattern, name string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(name)
}
