package mapstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"projmap/internal/config"
	"projmap/internal/errors"
	"projmap/internal/logging"
	"projmap/internal/project"
)

// CurrentStore holds the live map set for a project.
type CurrentStore struct{ *Store }

func NewCurrentStore(info *project.Info, cfg *config.Config, logger *logging.Logger) *CurrentStore {
	return &CurrentStore{newStore(info.MapsDir, info, cfg, logger)}
}

func (c *CurrentStore) Save(maps map[string]json.RawMessage, metadata map[string]string) (*Snapshot, error) {
	return c.Store.Save(CurrentID, maps, metadata)
}

func (c *CurrentStore) Load() (*Snapshot, error) { return c.Store.Load(CurrentID) }

func (c *CurrentStore) Exists() bool { return c.Store.Exists(CurrentID) }

// SnapshotStore keeps named ad-hoc snapshots, typically before/after
// pairs taken around a risky operation.
type SnapshotStore struct{ *Store }

func NewSnapshotStore(info *project.Info, cfg *config.Config, logger *logging.Logger) *SnapshotStore {
	return &SnapshotStore{newStore(info.SnapshotsDir, info, cfg, logger)}
}

// Cleanup removes every stored snapshot file, including ones too
// corrupt to list, and returns how many were removed.
func (s *SnapshotStore) Cleanup() (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.New(errors.IOFailure, "cannot clean snapshots", err)
	}
	removed := 0
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return removed, errors.New(errors.IOFailure, "cannot remove snapshot "+name, err)
		}
		removed++
	}
	return removed, nil
}

// HistoryStore keeps timestamped entries for long-term trend tracking.
type HistoryStore struct{ *Store }

func NewHistoryStore(info *project.Info, cfg *config.Config, logger *logging.Logger) *HistoryStore {
	return &HistoryStore{newStore(info.HistoryDir, info, cfg, logger)}
}

// Save stores the map set under a timestamp id, appending -1, -2 and
// so on when several saves land within the same second.
func (h *HistoryStore) Save(maps map[string]json.RawMessage, metadata map[string]string) (*Snapshot, error) {
	return h.Store.Save(h.nextID(time.Now()), maps, metadata)
}

func (h *HistoryStore) nextID(now time.Time) string {
	base := now.Format("20060102-150405")
	id := base
	for n := 1; h.Exists(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// Latest returns the newest history entry, or NotFound when the
// history is empty.
func (h *HistoryStore) Latest() (*Snapshot, error) {
	entries, err := h.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New(errors.NotFound, "no history entries recorded yet", nil)
	}
	return h.Load(entries[0].ID)
}

// Prune deletes the oldest entries beyond keep and returns how many
// were removed. A failing deletion is logged and skipped so one stuck
// file cannot block retention of the rest.
func (h *HistoryStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	entries, err := h.List()
	if err != nil {
		return 0, err
	}
	if len(entries) <= keep {
		return 0, nil
	}
	removed := 0
	for _, e := range entries[keep:] {
		if err := h.Delete(e.ID); err != nil {
			h.logger.Warn("could not prune history entry", map[string]interface{}{
				"id":    e.ID,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

// HistoryStats summarizes the stored history.
type HistoryStats struct {
	Entries    int       `json:"entries"`
	TotalBytes int64     `json:"totalBytes"`
	Oldest     time.Time `json:"oldest"`
	Newest     time.Time `json:"newest"`
}

func (h *HistoryStore) Stats() (*HistoryStats, error) {
	entries, err := h.List()
	if err != nil {
		return nil, err
	}
	stats := &HistoryStats{Entries: len(entries)}
	for i, e := range entries {
		stats.TotalBytes += e.SizeBytes
		if i == 0 {
			stats.Newest = e.CreatedAt
		}
		stats.Oldest = e.CreatedAt
	}
	return stats, nil
}
