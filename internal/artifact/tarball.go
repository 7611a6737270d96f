package artifact

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxManifestBytes bounds how much of an embedded package.json we will
// read. A manifest larger than this is treated as malformed.
const maxManifestBytes = 1 << 20 // 1 MiB

// ErrNoManifest is returned when a tarball contains no package.json at
// its root package directory.
var ErrNoManifest = errors.New("tarball has no package.json")

// manifest is the subset of package.json the engine needs.
type manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExtractIdentity reads the identity of a packed npm tarball from the
// package.json embedded in it. It reads the archive sequentially and
// stops at the first manifest entry; the manifest read is bounded by
// maxManifestBytes.
func ExtractIdentity(tarballPath string) (Identity, error) {
	f, err := os.Open(tarballPath)
	if err != nil {
		return Identity{}, fmt.Errorf("open tarball: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Identity{}, fmt.Errorf("read gzip stream in %s: %w", path.Base(tarballPath), err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return Identity{}, ErrNoManifest
		}
		if err != nil {
			return Identity{}, fmt.Errorf("read tar stream in %s: %w", path.Base(tarballPath), err)
		}
		if !isManifestEntry(hdr.Name) {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxManifestBytes+1))
		if err != nil {
			return Identity{}, fmt.Errorf("read package.json: %w", err)
		}
		if len(data) > maxManifestBytes {
			return Identity{}, fmt.Errorf("package.json in %s exceeds %d bytes", path.Base(tarballPath), maxManifestBytes)
		}

		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return Identity{}, fmt.Errorf("parse package.json in %s: %w", path.Base(tarballPath), err)
		}
		if m.Name == "" || m.Version == "" {
			return Identity{}, fmt.Errorf("package.json in %s missing name or version", path.Base(tarballPath))
		}
		return Identity{Name: m.Name, Version: m.Version}, nil
	}
}

// isManifestEntry matches the package.json at the tarball's package root.
// npm packs everything under a single top-level directory (conventionally
// "package/", but scoped builds may differ), so we accept any
// <dir>/package.json at depth one.
func isManifestEntry(name string) bool {
	name = strings.TrimPrefix(name, "./")
	parts := strings.Split(name, "/")
	return len(parts) == 2 && parts[1] == "package.json"
}
