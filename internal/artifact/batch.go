package artifact

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/ReemX/pnpm-airgap/internal/log"
)

// AssembleBatch scans stagingDir for packed tarballs (*.tgz) and builds a
// Handle per artifact, extracting each identity from the embedded
// package.json and checksumming the tarball bytes.
//
// A missing or unreadable staging directory is a batch-level error and
// aborts the run; so is a tarball whose identity cannot be extracted,
// since publishing a tarball we cannot identify defeats reconciliation.
// The returned batch is sorted by artifact key for deterministic runs.
func AssembleBatch(stagingDir string) ([]Handle, error) {
	logger := log.WithComponent("batch")

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("read staging directory %s: %w", stagingDir, err)
	}

	var handles []Handle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tgz") {
			continue
		}
		tarballPath := filepath.Join(stagingDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", tarballPath, err)
		}

		id, err := ExtractIdentity(tarballPath)
		if err != nil {
			return nil, fmt.Errorf("extract identity from %s: %w", entry.Name(), err)
		}

		sum, err := checksumFile(tarballPath)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", entry.Name(), err)
		}

		handles = append(handles, Handle{
			Identity: id,
			Path:     tarballPath,
			Size:     info.Size(),
			Checksum: sum,
		})
		logger.Debug("staged artifact", "artifact", id.Key(), "size", info.Size())
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].Key() < handles[j].Key()
	})

	logger.Info("batch assembled", "staging_dir", stagingDir, "artifacts", len(handles))
	return handles, nil
}

// checksumFile computes the hex BLAKE3 digest of a file.
func checksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
