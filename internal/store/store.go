// Package store is the file-backed persistence service behind /api/excel.
// Each spreadsheet lives in its own JSON file under the data directory; an
// in-memory index of file metadata answers list queries without reading rows.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shared-spreadsheet-editor/internal/sheet"
)

var ErrNotFound = errors.New("file not found")

// Summary is the list view of a file: a server-computed row count instead of
// the row payload.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner,omitempty"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File is a stored spreadsheet.
type File struct {
	Summary
	Headers []string    `json:"headers"`
	Rows    []sheet.Row `json:"rows"`
}

// Document normalizes the stored rows.
func (f *File) Document() (*sheet.Document, error) {
	return sheet.NewDocument(f.Headers, f.Rows)
}

// FileStore keeps one JSON file per spreadsheet in dir.
type FileStore struct {
	dir string
	log *logrus.Entry
	now func() time.Time

	mu    sync.RWMutex
	index map[string]Summary
}

// Open loads the index of every file in dir, creating dir if needed.
func Open(dir string, log *logrus.Entry) (*FileStore, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &FileStore{
		dir:   dir,
		log:   log.WithField("component", "store"),
		now:   time.Now,
		index: make(map[string]Summary),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) load() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("store: list: %w", err)
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			s.log.WithError(err).WithField("path", p).Warn("store: open failed")
			continue
		}
		var meta Summary
		err = json.NewDecoder(f).Decode(&meta)
		f.Close()
		if err != nil || meta.ID == "" {
			s.log.WithError(err).WithField("path", p).Warn("store: skipping unreadable file")
			continue
		}
		s.index[meta.ID] = meta
	}
	s.log.WithField("files", len(s.index)).Info("store: loaded index")
	return nil
}

// validID rejects ids that could escape the data directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}

// List returns every file's summary, most recently updated first.
func (s *FileStore) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.index))
	for _, m := range s.index {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Create stores a new file. Headers and rows are normalized first.
func (s *FileStore) Create(name, owner string, headers []string, rows []sheet.Row) (*File, error) {
	doc, err := sheet.NewDocument(headers, rows)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	f := &File{
		Summary: Summary{
			ID:        uuid.NewString(),
			Name:      name,
			Owner:     owner,
			RowCount:  doc.RowCount(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Headers: doc.Headers,
		Rows:    doc.Rows,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(f); err != nil {
		return nil, err
	}
	s.index[f.ID] = f.Summary
	s.log.WithFields(logrus.Fields{"id": f.ID, "owner": owner}).Info("store: created")
	return f, nil
}

// Get reads a file from disk.
func (s *FileStore) Get(id string) (*File, error) {
	s.mu.RLock()
	_, ok := s.index[id]
	s.mu.RUnlock()
	if !ok || !validID(id) {
		return nil, ErrNotFound
	}
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", id, err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return &f, nil
}

// Update replaces the name, headers and rows of file id. An empty name keeps
// the current one.
func (s *FileStore) Update(id, name string, headers []string, rows []sheet.Row) (Summary, error) {
	doc, err := sheet.NewDocument(headers, rows)
	if err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.index[id]
	if !ok {
		return Summary{}, ErrNotFound
	}
	if name != "" {
		meta.Name = name
	}
	meta.RowCount = doc.RowCount()
	meta.UpdatedAt = s.now().UTC()
	f := &File{Summary: meta, Headers: doc.Headers, Rows: doc.Rows}
	if err := s.write(f); err != nil {
		return Summary{}, err
	}
	s.index[id] = meta
	s.log.WithFields(logrus.Fields{"id": id, "rows": meta.RowCount}).Debug("store: saved")
	return meta, nil
}

// Delete removes file id.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return ErrNotFound
	}
	lock := flock.New(s.path(id) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("store: lock %s: %w", id, err)
	}
	err := os.Remove(s.path(id))
	_ = lock.Unlock()
	_ = os.Remove(s.path(id) + ".lock")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	delete(s.index, id)
	s.log.WithField("id", id).Info("store: deleted")
	return nil
}

// write persists f under a file lock. The caller holds s.mu.
func (s *FileStore) write(f *File) error {
	lock := flock.New(s.path(f.ID) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("store: lock %s: %w", f.ID, err)
	}
	defer lock.Unlock()

	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", f.ID, err)
	}
	tmp := s.path(f.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", f.ID, err)
	}
	if err := os.Rename(tmp, s.path(f.ID)); err != nil {
		return fmt.Errorf("store: write %s: %w", f.ID, err)
	}
	return nil
}
