// Package snapshot builds, persists, and diffs point-in-time records of
// a registry's contents, so repeated transfer runs can skip live
// existence checks for artifacts a snapshot already accounts for.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
)

// FormatVersion is the snapshot file schema version. Load rejects any
// file that does not declare exactly this version: no migration is
// attempted, because silently trusting a stale or foreign snapshot
// shape would corrupt diff results.
const FormatVersion = 2

// ErrFormatVersion is returned when a snapshot file declares a
// different format version than the engine expects.
var ErrFormatVersion = errors.New("snapshot format version mismatch")

// Snapshot records everything a registry reported it contains.
type Snapshot struct {
	FormatVersion int                 `json:"formatVersion"`
	CapturedAt    time.Time           `json:"capturedAt"`
	RegistryURL   string              `json:"registryUrl"`
	Packages      map[string][]string `json:"packages"`
}

// Has reports whether the snapshot lists the exact identity.
func (s *Snapshot) Has(id artifact.Identity) bool {
	for _, v := range s.Packages[id.Name] {
		if v == id.Version {
			return true
		}
	}
	return false
}

// Save writes the snapshot as JSON. The write goes through a temp file
// and rename so a crash cannot leave a half-written snapshot behind.
func Save(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if s.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: snapshot %s declares version %d, engine expects %d",
			ErrFormatVersion, path, s.FormatVersion, FormatVersion)
	}
	if s.Packages == nil {
		s.Packages = make(map[string][]string)
	}
	return &s, nil
}

// Diff is the result of comparing a requirement list to a snapshot.
type Diff struct {
	// Missing identities are absent from the snapshot and need transfer.
	Missing []artifact.Identity
	// Existing identities are already accounted for.
	Existing []artifact.Identity
}

// DiffRequired splits required identities by snapshot membership.
// Output ordering follows the input.
func DiffRequired(required []artifact.Identity, s *Snapshot) Diff {
	var d Diff
	for _, id := range required {
		if s.Has(id) {
			d.Existing = append(d.Existing, id)
		} else {
			d.Missing = append(d.Missing, id)
		}
	}
	return d
}

// LoadRequirements reads a JSON array of "name@version" strings, the
// boundary format a lockfile-derived requirement set arrives in.
func LoadRequirements(path string) ([]artifact.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements %s: %w", path, err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse requirements %s: %w", path, err)
	}

	ids := make([]artifact.Identity, 0, len(keys))
	for _, key := range keys {
		id, err := artifact.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("requirements %s: %w", path, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// sortVersions orders a version list for stable snapshot files.
func sortVersions(versions []string) {
	sort.Strings(versions)
}
