package storage

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no runs match the query.
	ErrNoMatches = errors.New("no runs found")
	// ErrManyMatches is returned when multiple runs match the query.
	ErrManyMatches = errors.New("multiple runs matched the input")
)

const (
	indexFileName      = "index.jsonl"
	compactMinOps      = 256
	compactScaleFactor = 4
)

type runEvent struct {
	Op  string `json:"op"`
	ID  string `json:"id,omitempty"`
	Run *Run   `json:"run,omitempty"`
}

// Run is the metadata of one agent run.
type Run struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	UpdatedAt  time.Time `json:"updated_at"`
	API        string    `json:"api,omitempty"`
	Model      string    `json:"model,omitempty"`
	State      string    `json:"state,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Tokens     int64     `json:"tokens,omitempty"`
}

// DB is an append-only JSONL index of run metadata, shared between
// processes through a file lock.
type DB struct {
	mu             sync.RWMutex
	indexPath      string
	lock           *flock.Flock
	runs           map[string]Run
	ops            int
	cleanupTempDir string
}

// Open loads the run index from the given datasource.
//
// The datasource is usually a directory path. The special value ":memory:"
// creates a temporary store (primarily used for tests).
func Open(ds string) (*DB, error) {
	dir, cleanupDir, err := resolveStoreDir(ds)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}

	db := &DB{
		indexPath:      filepath.Join(dir, indexFileName),
		lock:           flock.New(filepath.Join(dir, "index.lock")),
		runs:           make(map[string]Run),
		cleanupTempDir: cleanupDir,
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases temporary resources (used for :memory: stores).
func (db *DB) Close() error {
	if db.cleanupTempDir == "" {
		return nil
	}
	if err := os.RemoveAll(db.cleanupTempDir); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Save upserts a run record, stamping UpdatedAt.
func (db *DB) Save(run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("save: %w", errors.New("empty id"))
	}
	if strings.TrimSpace(run.Title) == "" {
		return fmt.Errorf("save: %w", errors.New("empty title"))
	}
	run.UpdatedAt = time.Now().UTC()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.runs[run.ID] = run
	if err := db.appendEventLocked(runEvent{Op: "upsert", Run: &run}); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Delete removes a run record by ID.
func (db *DB) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: %w", errors.New("empty id"))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.runs[id]; !ok {
		return nil
	}
	delete(db.runs, id)

	if err := db.appendEventLocked(runEvent{Op: "delete", ID: id}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// ListOlderThan returns runs last updated before now minus d.
func (db *DB) ListOlderThan(d time.Duration) []Run {
	cutoff := time.Now().Add(-d)
	return db.filter(func(r Run) bool { return r.UpdatedAt.Before(cutoff) })
}

// List returns runs sorted by most recently updated.
func (db *DB) List() []Run {
	return db.filter(func(Run) bool { return true })
}

// Head returns the most recently updated run.
func (db *DB) Head() (Run, error) {
	list := db.List()
	if len(list) == 0 {
		return Run{}, fmt.Errorf("head: %w", ErrNoMatches)
	}
	return list[0], nil
}

// Find resolves a run by ID prefix or exact title.
func (db *DB) Find(in string) (Run, error) {
	matches := db.filter(func(r Run) bool {
		if r.Title == in {
			return true
		}
		return len(in) >= IDMinLen && strings.HasPrefix(r.ID, in)
	})
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNoMatches, in)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrManyMatches, in)
	}
}

// Completions returns shell completion candidates for IDs and titles.
func (db *DB) Completions(in string) []string {
	set := map[string]struct{}{}
	for _, r := range db.List() {
		if strings.HasPrefix(r.ID, in) {
			id := r.ID
			if len(in) < IDShort {
				id = ShortID(r.ID)
			}
			set[id+"\t"+r.Title] = struct{}{}
		}
		if strings.HasPrefix(r.Title, in) {
			set[r.Title+"\t"+ShortID(r.ID)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (db *DB) filter(keep func(Run) bool) []Run {
	db.mu.RLock()
	out := make([]Run, 0, len(db.runs))
	for _, r := range db.runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	db.mu.RUnlock()

	slices.SortFunc(out, func(a, b Run) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func resolveStoreDir(ds string) (dir string, cleanupDir string, err error) {
	if ds == ":memory:" {
		tempDir, err := os.MkdirTemp("", "unai-runs-*")
		if err != nil {
			return "", "", fmt.Errorf("could not create temp runs directory: %w", err)
		}
		return tempDir, tempDir, nil
	}
	return ds, "", nil
}

func (db *DB) load() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	file, err := os.Open(db.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt runEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := db.applyEvent(evt); err != nil {
			return err
		}
		db.ops++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (db *DB) applyEvent(evt runEvent) error {
	switch evt.Op {
	case "upsert":
		if evt.Run == nil || strings.TrimSpace(evt.Run.ID) == "" {
			return fmt.Errorf("invalid upsert event: missing run")
		}
		db.runs[evt.Run.ID] = *evt.Run
	case "delete":
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(db.runs, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (db *DB) appendEventLocked(evt runEvent) error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	file, err := os.OpenFile(db.indexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	if _, err := file.Write(append(bts, '\n')); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	db.ops++
	return nil
}

func (db *DB) compactIfNeededLocked() error {
	if db.ops < compactMinOps {
		return nil
	}
	if len(db.runs) > 0 && db.ops < len(db.runs)*compactScaleFactor {
		return nil
	}
	return db.compactLocked()
}

// compactLocked rewrites the index with one upsert per live run.
func (db *DB) compactLocked() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	items := make([]Run, 0, len(db.runs))
	for _, r := range db.runs {
		items = append(items, r)
	}
	slices.SortFunc(items, func(a, b Run) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	tmpPath := db.indexPath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}
	enc := json.NewEncoder(file)
	for _, r := range items {
		if err := enc.Encode(runEvent{Op: "upsert", Run: &r}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, db.indexPath); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	_ = syncDir(filepath.Dir(db.indexPath))

	db.ops = len(db.runs)
	return nil
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}
