package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ScoreStore persists the best final score between runs.
type ScoreStore interface {
	Load() (int, error)
	Save(score int) error
}

// FileScoreStore keeps the high score in a small JSON document. Writes go
// to a temporary file that is renamed into place, so a crash mid-write
// leaves the previous record intact.
type FileScoreStore struct {
	path string
	mu   sync.Mutex
}

type highScoreRecord struct {
	HighScore int       `json:"highScore"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewFileScoreStore(path string) *FileScoreStore {
	return &FileScoreStore{path: path}
}

// Load returns 0 when no record exists yet.
func (s *FileScoreStore) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read high score: %w", err)
	}

	var rec highScoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("decode high score %s: %w", s.path, err)
	}
	if rec.HighScore < 0 {
		return 0, nil
	}
	return rec.HighScore, nil
}

func (s *FileScoreStore) Save(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(highScoreRecord{HighScore: score, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode high score: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create high score dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write high score: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace high score: %w", err)
	}
	return nil
}

// MemoryScoreStore is an in-process store for tests and ephemeral servers.
type MemoryScoreStore struct {
	mu    sync.Mutex
	score int
	saves int
}

func NewMemoryScoreStore(initial int) *MemoryScoreStore {
	return &MemoryScoreStore{score: initial}
}

func (s *MemoryScoreStore) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, nil
}

func (s *MemoryScoreStore) Save(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = score
	s.saves++
	return nil
}

// Saves counts Save calls.
func (s *MemoryScoreStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
