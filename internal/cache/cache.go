package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github-faces/internal/domain"
)

// Store persists the enriched user collection as an indented JSON file so
// that diffs between runs stay readable. The rendering step consumes the
// same file.
type Store struct {
	path   string
	logger *logrus.Logger
}

func NewStore(path string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string { return s.path }

// Save writes the full collection, creating parent directories as needed.
// An earlier cache file stays untouched if marshalling fails.
func (s *Store) Save(users []domain.User) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	s.logger.Infof("cache saved (%d users)", len(users))
	return nil
}

func (s *Store) Load() ([]domain.User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return users, nil
}
