package mapstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"projmap/internal/config"
	"projmap/internal/errors"
	"projmap/internal/logging"
	"projmap/internal/project"
)

// SnapshotVersion is the current payload format version.
const SnapshotVersion = 1

// CurrentID is the fixed id under which the live map set is stored.
const CurrentID = "current"

// Snapshot is a versioned map set with provenance. Maps are kept as
// raw JSON so the store never needs to know individual map shapes.
type Snapshot struct {
	Version     int                        `json:"version"`
	ID          string                     `json:"id"`
	ProjectRoot string                     `json:"projectRoot"`
	ProjectHash string                     `json:"projectHash"`
	CreatedAt   time.Time                  `json:"createdAt"`
	Metadata    map[string]string          `json:"metadata,omitempty"`
	Maps        map[string]json.RawMessage `json:"maps"`
}

// envelope is the on-disk wrapper. Data holds the snapshot JSON
// directly when uncompressed, or a base64 zstd string when compressed.
type envelope struct {
	Version    int             `json:"version"`
	Compressed bool            `json:"compressed"`
	Data       json.RawMessage `json:"data"`
}

// Entry summarizes one stored snapshot for listings.
type Entry struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	SizeBytes int64             `json:"sizeBytes"`
	MapCount  int               `json:"mapCount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store reads and writes snapshot files in a single directory. The
// specializations below fix the directory and id scheme.
type Store struct {
	dir    string
	info   *project.Info
	cfg    *config.Config
	logger *logging.Logger
}

func newStore(dir string, info *project.Info, cfg *config.Config, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{dir: dir, info: info, cfg: cfg, logger: logger}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func validateID(id string) error {
	if !idPattern.MatchString(id) {
		return errors.New(errors.InvalidFormat, fmt.Sprintf("invalid snapshot id %q", id), nil)
	}
	return nil
}

// Save wraps the map set in a versioned envelope and writes it
// atomically, creating the backing directory if absent. The payload is
// zstd-compressed at the tier the config picks for its size.
func (s *Store) Save(id string, maps map[string]json.RawMessage, metadata map[string]string) (*Snapshot, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if maps == nil {
		return nil, errors.New(errors.InvalidFormat, "refusing to save snapshot without maps", nil)
	}

	snap := &Snapshot{
		Version:     SnapshotVersion,
		ID:          id,
		ProjectRoot: s.info.Root,
		ProjectHash: s.info.Hash,
		CreatedAt:   time.Now().UTC(),
		Metadata:    metadata,
		Maps:        maps,
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.New(errors.InternalError, "cannot encode snapshot "+id, err)
	}

	env := envelope{Version: SnapshotVersion, Data: payload}
	if tier := s.cfg.CompressionLevel(int64(len(payload))); tier > 0 {
		compressed, zerr := compress(payload, tier)
		if zerr != nil {
			s.logger.Warn("storing snapshot uncompressed", map[string]interface{}{
				"id":    id,
				"error": zerr.Error(),
			})
		} else {
			encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(compressed))
			env.Compressed = true
			env.Data = encoded
		}
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, errors.New(errors.InternalError, "cannot encode snapshot envelope "+id, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.New(errors.IOFailure, "cannot create snapshot directory", err)
	}
	path := s.path(id)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0o644); err != nil {
		return nil, errors.New(errors.IOFailure, "cannot write snapshot "+id, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.New(errors.IOFailure, "cannot finalize snapshot "+id, err)
	}
	return snap, nil
}

// Load reads and decodes one snapshot. A missing file is NotFound; an
// undecodable file or one without maps is InvalidFormat. A stored
// project hash that disagrees with the current project only warns.
func (s *Store) Load(id string) (*Snapshot, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	snap, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if snap.ProjectHash != "" && snap.ProjectHash != s.info.Hash {
		s.logger.Warn("snapshot was created for a different project", map[string]interface{}{
			"id":          id,
			"storedHash":  snap.ProjectHash,
			"currentHash": s.info.Hash,
		})
	}
	return snap, nil
}

func (s *Store) read(id string) (*Snapshot, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.NotFound, "snapshot not found: "+id, err)
		}
		return nil, errors.New(errors.IOFailure, "cannot read snapshot "+id, err)
	}
	snap, err := decode(raw)
	if err != nil {
		return nil, errors.New(errors.InvalidFormat, "snapshot "+id+" is not readable", err)
	}
	if snap.Maps == nil {
		return nil, errors.New(errors.InvalidFormat, "snapshot "+id+" has no maps", nil)
	}
	return snap, nil
}

func decode(raw []byte) (*Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	payload := []byte(env.Data)
	if env.Compressed {
		var b64 string
		if err := json.Unmarshal(env.Data, &b64); err != nil {
			return nil, err
		}
		compressed, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, err
		}
		payload, err = decompress(compressed)
		if err != nil {
			return nil, err
		}
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns entries newest first. Corrupt files are skipped with a
// warning rather than failing the listing.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(errors.IOFailure, "cannot list snapshots", err)
	}

	var out []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		snap, err := s.read(id)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
			continue
		}
		var size int64
		if info, infoErr := de.Info(); infoErr == nil {
			size = info.Size()
		}
		out = append(out, Entry{
			ID:        id,
			CreatedAt: snap.CreatedAt,
			SizeBytes: size,
			MapCount:  len(snap.Maps),
			Metadata:  snap.Metadata,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Delete removes one snapshot. Deleting an id that does not exist is
// not an error.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return errors.New(errors.IOFailure, "cannot delete snapshot "+id, err)
	}
	return nil
}

// Exists reports whether a snapshot file is present, without reading it.
func (s *Store) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

func encoderLevel(tier int) zstd.EncoderLevel {
	switch tier {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedDefault
	}
}

func compress(data []byte, tier int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel(tier)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
