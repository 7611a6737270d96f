package registry

// PackageMetadata is the registry's read-path document for one package.
type PackageMetadata struct {
	Name     string                     `json:"name"`
	Versions map[string]VersionMetadata `json:"versions"`
	DistTags map[string]string          `json:"dist-tags"`
}

// VersionMetadata is the per-version entry inside PackageMetadata. Only
// the fields the engine reads are modeled; registries attach much more.
type VersionMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HasVersion reports whether the metadata lists the exact version.
func (m *PackageMetadata) HasVersion(version string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Versions[version]
	return ok
}
