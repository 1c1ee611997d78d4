package leaderboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coder/quartz"
	"github.com/playtime-tracker/internal/domain"
)

// snapshotTimeLayout keeps snapshot names filesystem-safe and sortable.
const snapshotTimeLayout = "2006-01-02_15-04-05"

// SnapshotStore writes and reads immutable leaderboard snapshot files.
// A snapshot is never rewritten once created; lookups are by exact file
// name.
type SnapshotStore struct {
	dir    string
	clock  quartz.Clock
	logger *slog.Logger
}

// NewSnapshotStore creates a snapshot store rooted at dir.
func NewSnapshotStore(dir string, clock quartz.Clock, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{
		dir:    dir,
		clock:  clock,
		logger: logger,
	}
}

// Save writes a snapshot of a category's standings and returns its
// identity. The file is created exclusively so an existing snapshot can
// never be overwritten.
func (s *SnapshotStore) Save(category domain.Category, positions []domain.Position) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	now := s.clock.Now()
	name := fmt.Sprintf("%s_%s.json", category, now.Format(snapshotTimeLayout))

	snapshot := domain.Snapshot{
		FormatVersion: domain.SnapshotFormatVersion,
		Category:      category,
		CreatedAt:     now,
		Positions:     positions,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("writing snapshot file: %w", err)
	}
	return name, nil
}

// List enumerates the available snapshot identities, sorted.
func (s *SnapshotStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a snapshot by its exact identity.
func (s *SnapshotStore) Load(name string) (domain.Snapshot, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parsing snapshot: %w", err)
	}
	return snapshot, nil
}

// Dir returns the snapshot directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}
