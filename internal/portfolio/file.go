package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"DCAScanner/internal/model"
)

// FileStore keeps one JSON document per portfolio under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create portfolio dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, filepath.Base(id)+".json")
}

func (s *FileStore) Load(_ context.Context, id string) (*model.Portfolio, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
		}
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	var p model.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode portfolio %s: %w", id, err)
	}
	return &p, nil
}

// Save writes through a temp file and rename so readers never see a torn file.
func (s *FileStore) Save(_ context.Context, p *model.Portfolio) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	tmp := s.path(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write portfolio: %w", err)
	}
	return os.Rename(tmp, s.path(p.ID))
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
		}
		return fmt.Errorf("delete portfolio: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]model.Portfolio, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	var out []model.Portfolio
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p, err := s.Load(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		p.Transactions = nil
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) Close() error { return nil }
