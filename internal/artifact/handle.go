package artifact

// Handle pairs an Identity with its staged tarball on disk. Handles are
// built once during batch assembly and read-only afterwards; the engine
// borrows them for the duration of a run.
type Handle struct {
	Identity Identity
	// Path is the absolute path of the staged .tgz file.
	Path string
	// Size is the tarball size in bytes, used for upload timeout scaling.
	Size int64
	// Checksum is the hex BLAKE3 digest of the tarball, recorded in the
	// run report for after-the-fact verification.
	Checksum string
}

// Key returns the handle's canonical name@version key.
func (h Handle) Key() string {
	return h.Identity.Key()
}
