// Package store persists datasets on disk. Each dataset is a directory named
// by its id holding content.csv and dataset.json.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/table"
	"github.com/yassinexng/datawise/internal/utils"
)

const (
	metaFileName    = "dataset.json"
	contentFileName = "content.csv"
)

// ErrNotFound is returned when no dataset matches an id or name.
var ErrNotFound = errors.New("dataset not found")

// Dataset is the metadata kept next to a dataset's content.
type Dataset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourceFile string    `json:"source_file"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store is a directory of datasets.
type Store struct {
	root   string
	logger *zap.Logger
	now    func() time.Time
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: dir, logger: logger.Named("store"), now: time.Now}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Create persists t as a new dataset.
func (s *Store) Create(name, sourceFile string, t *table.Table) (*Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("dataset name is required")
	}
	now := s.now().UTC()
	d := &Dataset{
		ID:         uuid.NewString(),
		Name:       name,
		SourceFile: sourceFile,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.write(d, t); err != nil {
		return nil, err
	}
	s.logger.Info("dataset created", zap.String("id", d.ID), zap.String("name", d.Name), zap.Int("rows", d.Rows))
	return d, nil
}

// Get resolves a dataset by id, id prefix or exact name.
func (s *Store) Get(ref string) (*Dataset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	if d, err := s.readMeta(ref); err == nil {
		return d, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var matches []*Dataset
	for _, d := range all {
		if d.Name == ref || strings.HasPrefix(d.ID, ref) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("dataset reference %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// List returns every dataset, newest first. Unreadable entries are skipped.
func (s *Store) List() ([]*Dataset, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read datasets dir: %w", err)
	}
	var out []*Dataset
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := s.readMeta(e.Name())
		if err != nil {
			s.logger.Warn("skipping dataset", zap.String("dir", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Content returns the raw delimited text of a dataset.
func (s *Store) Content(id string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.root, id, contentFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read content: %w", err)
	}
	return b, nil
}

// Table loads a dataset's content as a raw table.
func (s *Store) Table(id string, missingTokens []string) (*table.Table, error) {
	b, err := s.Content(id)
	if err != nil {
		return nil, err
	}
	return table.ReadCSV(bytes.NewReader(b), table.ReadOptions{MissingTokens: missingTokens})
}

// UpdateContent replaces a dataset's content with t.
func (s *Store) UpdateContent(id string, t *table.Table) (*Dataset, error) {
	d, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.write(d, t); err != nil {
		return nil, err
	}
	s.logger.Info("dataset updated", zap.String("id", d.ID), zap.Int("rows", d.Rows))
	return d, nil
}

// Delete removes a dataset directory.
func (s *Store) Delete(id string) error {
	if _, err := s.readMeta(id); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("remove dataset: %w", err)
	}
	s.logger.Info("dataset deleted", zap.String("id", id))
	return nil
}

func (s *Store) write(d *Dataset, t *table.Table) error {
	content, err := t.Bytes()
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	d.Rows = t.NumRows()
	d.Columns = t.Names()
	dir := filepath.Join(s.root, d.ID)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if err := utils.SafeWriteFile(filepath.Join(dir, contentFileName), content); err != nil {
		return err
	}
	meta, err := utils.PrettyJSON(d)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(dir, metaFileName), meta)
}

func (s *Store) readMeta(id string) (*Dataset, error) {
	if id != filepath.Base(id) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	b, err := os.ReadFile(filepath.Join(s.root, id, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var d Dataset
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &d, nil
}
