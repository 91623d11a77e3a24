// Package registry maps opaque tokens to template source paths.
//
// Generated programs refer to templates whose paths a compiler cannot carry
// (URLs, UNC shares) through a token instead. Diagnostics that come back from
// the backend name the token, and the registry turns it into the original
// path again. Entries are never evicted: a diagnostic may be translated long
// after the token was minted, by a different transformer.
package registry

import (
	"sync"

	"golang.org/x/text/cases"
)

// Registry is a token <-> path table safe for concurrent use. Path lookups
// are case-insensitive.
type Registry struct {
	mutex   sync.Mutex
	byToken map[Token]string
	byPath  map[string]Token
	fold    cases.Caser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[Token]string),
		byPath:  make(map[string]Token),
		fold:    cases.Fold(),
	}
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry used when none is injected.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// key must be called with the mutex held; a Caser is not safe for
// concurrent use.
func (r *Registry) key(path string) string {
	return r.fold.String(path)
}

// Register returns the token for path, minting one on first use.
func (r *Registry) Register(path string) (Token, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	k := r.key(path)
	if tok, ok := r.byPath[k]; ok {
		return tok, nil
	}

	tok, err := NewToken()
	if err != nil {
		return Token{}, err
	}
	r.byPath[k] = tok
	r.byToken[tok] = path
	return tok, nil
}

// Lookup returns the token already registered for path.
func (r *Registry) Lookup(path string) (Token, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tok, ok := r.byPath[r.key(path)]
	return tok, ok
}

// Resolve returns the path a token was minted for.
func (r *Registry) Resolve(tok Token) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	path, ok := r.byToken[tok]
	return path, ok
}

// ResolveString parses s as a token and resolves it.
func (r *Registry) ResolveString(s string) (string, bool) {
	tok, ok := ParseToken(s)
	if !ok {
		return "", false
	}
	return r.Resolve(tok)
}

// Count returns the number of registered paths.
func (r *Registry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.byToken)
}

// Entry is one token/path pair.
type Entry struct {
	Token Token
	Path  string
}

// Entries returns a copy of the table.
func (r *Registry) Entries() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entries := make([]Entry, 0, len(r.byToken))
	for tok, path := range r.byToken {
		entries = append(entries, Entry{Token: tok, Path: path})
	}
	return entries
}

// add inserts a known pair; existing entries win. Mutex must be held.
func (r *Registry) add(tok Token, path string) {
	if _, ok := r.byToken[tok]; ok {
		return
	}
	k := r.key(path)
	if _, ok := r.byPath[k]; ok {
		return
	}
	r.byToken[tok] = path
	r.byPath[k] = tok
}
