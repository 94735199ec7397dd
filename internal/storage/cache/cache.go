// Package cache stores run transcripts as sharded JSON files.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dotcommander/unai/internal/proto"
)

const (
	dirName        = "conversations"
	cacheExt       = ".json"
	shardPrefixLen = 2
)

var errInvalidID = errors.New("invalid id")

// Transcripts persists the final Context of each run under its run ID.
type Transcripts struct {
	dir string
}

// New creates the transcript store under baseDir.
func New(baseDir string) (*Transcripts, error) {
	dir := filepath.Join(baseDir, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Transcripts{dir: dir}, nil
}

func (c *Transcripts) filePath(id string) string {
	if len(id) < shardPrefixLen {
		return filepath.Join(c.dir, id+cacheExt)
	}
	return filepath.Join(c.dir, id[:shardPrefixLen], id+cacheExt)
}

// Save writes conv for id, replacing any previous transcript atomically.
func (c *Transcripts) Save(id string, conv proto.Context) error {
	return c.write(id, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(conv)
	})
}

// Load reads the transcript saved for id.
func (c *Transcripts) Load(id string) (proto.Context, error) {
	var conv proto.Context
	err := c.read(id, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&conv)
	})
	return conv, err
}

// Exists reports whether a transcript is stored for id.
func (c *Transcripts) Exists(id string) bool {
	if id == "" {
		return false
	}
	_, err := os.Stat(c.filePath(id))
	return err == nil
}

// Delete removes the transcript saved for id.
func (c *Transcripts) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(c.filePath(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (c *Transcripts) read(id string, readFn func(io.Reader) error) error {
	if id == "" {
		return fmt.Errorf("read: %w", errInvalidID)
	}
	file, err := os.Open(c.filePath(id))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if err := readFn(file); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

func (c *Transcripts) write(id string, writeFn func(io.Writer) error) error {
	if id == "" {
		return fmt.Errorf("write: %w", errInvalidID)
	}

	path := c.filePath(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeFn(tmp); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
