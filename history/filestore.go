package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const archiveExt = ".json"

type fileStore struct {
	root string
}

// NewFileStore creates a Store backed by the filesystem. Each archive is one
// JSON file named <session_id>.json directly under root.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

func (s *fileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, archiveExt))
	}

	sort.Strings(ids)
	return ids, nil
}

func (s *fileStore) Load(_ context.Context, sessionID string) (Archive, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return Archive{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return Archive{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}

	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return Archive{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}
	return a, nil
}

func (s *fileStore) Save(_ context.Context, a Archive) error {
	if a.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrSaveFailed)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}

	// Write through a temp file and rename so readers never see a partial
	// archive.
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}

	if err := os.Rename(tmpName, s.path(a.SessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, a.SessionID, err)
	}

	return nil
}

func (s *fileStore) Delete(_ context.Context, sessionID string) error {
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete failed: %s: %w", sessionID, err)
	}
	return nil
}

func (s *fileStore) path(sessionID string) string {
	return filepath.Join(s.root, filepath.Base(sessionID)+archiveExt)
}
