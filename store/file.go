package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

// File keeps one JSON document per session in a directory.
type File struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

type fileDocument struct {
	SessionID string                     `json:"sessionID"`
	UpdatedAt time.Time                  `json:"updatedAt"`
	Messages  []plan.ConversationMessage `json:"messages"`
}

func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &File{dir: dir, logger: logger}, nil
}

func (f *File) path(sessionID string) string {
	return filepath.Join(f.dir, sessionID+".json")
}

func (f *File) Load(_ context.Context, sessionID string) ([]plan.ConversationMessage, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(sessionID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []plan.ConversationMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corrupted file: keep a copy and start fresh.
		backup := path + ".backup"
		f.logger.Warn("corrupted history file, starting fresh", "path", path, "backup", backup, "error", err)
		if err := os.Rename(path, backup); err != nil {
			return nil, fmt.Errorf("failed to back up corrupted history: %w", err)
		}
		return []plan.ConversationMessage{}, nil
	}
	if doc.Messages == nil {
		doc.Messages = []plan.ConversationMessage{}
	}
	return doc.Messages, nil
}

func (f *File) Save(_ context.Context, sessionID string, msgs []plan.ConversationMessage) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(fileDocument{
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
		Messages:  msgs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, sessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(sessionID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, sessionID string) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(sessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
