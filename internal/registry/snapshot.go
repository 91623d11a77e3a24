package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Version 2 stores tokens as 16 raw bytes.
const snapshotVersion = 2

type snapshot struct {
	Version int             `msgpack:"version"`
	Entries []snapshotEntry `msgpack:"entries"`
}

type snapshotEntry struct {
	Token Token  `msgpack:"token"`
	Path  string `msgpack:"path"`
}

// Save writes every entry to w in msgpack form.
func (r *Registry) Save(w io.Writer) error {
	entries := r.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	snap := snapshot{Version: snapshotVersion, Entries: make([]snapshotEntry, len(entries))}
	for i, e := range entries {
		snap.Entries[i] = snapshotEntry(e)
	}

	return msgpack.NewEncoder(w).Encode(&snap)
}

// Load merges a snapshot written by Save. Entries already present win.
func (r *Registry) Load(rd io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(rd).Decode(&snap); err != nil {
		return fmt.Errorf("decoding registry snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported registry snapshot version %d", snap.Version)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, e := range snap.Entries {
		if e.Token.IsZero() {
			return fmt.Errorf("empty token for %q in registry snapshot", e.Path)
		}
		r.add(e.Token, e.Path)
	}
	return nil
}

// SaveFile writes the snapshot atomically through a temp file and rename.
func (r *Registry) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "registry-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := r.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadFile merges the snapshot at path. A missing file is not an error.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	return r.Load(f)
}
