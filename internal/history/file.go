package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// FileStore persists recordings as JSON lines in a local file. It suits a
// single instance with a modest history; use [PostgresStore] otherwise.
//
// The whole file is held in memory. Save appends a line; Delete rewrites the
// file through a temporary file and a rename.
type FileStore struct {
	mu     sync.Mutex
	path   string
	recs   []Recording
	nextID int64
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads the records at path. A missing file is created on the
// first Save.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, nextID: 1}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: read %s: %w", s.path, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r Recording
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("history: %s:%d: %w", s.path, line, err)
		}
		s.recs = append(s.recs, r)
		s.nextID = max(s.nextID, r.ID+1)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("history: scan %s: %w", s.path, err)
	}
	return nil
}

// Save implements [Store].
func (s *FileStore) Save(ctx context.Context, rec *Recording) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec
	r.ID = s.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}

	s.recs = append(s.recs, r)
	s.nextID++
	*rec = r
	return nil
}

// List implements [Store].
func (s *FileStore) List(ctx context.Context, userID string, page, limit int) ([]Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Recording
	for _, r := range s.recs {
		if r.UserID == userID && r.Page == page {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Recording) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Delete implements [Store].
func (s *FileStore) Delete(ctx context.Context, id int64, userID string) (*Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.recs, func(r Recording) bool { return r.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if s.recs[i].UserID != userID {
		return nil, fmt.Errorf("%w: %d", ErrForbidden, id)
	}

	removed := s.recs[i]
	kept := slices.Delete(slices.Clone(s.recs), i, i+1)
	if err := s.rewrite(kept); err != nil {
		return nil, err
	}
	s.recs = kept
	return &removed, nil
}

func (s *FileStore) rewrite(recs []Recording) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("history: marshal: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("history: replace %s: %w", s.path, err)
	}
	return nil
}

// Ping reports whether the store file's directory is reachable.
func (s *FileStore) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}
