// Package artifact defines the identity and staged-content types the
// engine moves between registries, and assembles publish batches from a
// staging directory of packed tarballs.
package artifact

import (
	"fmt"
	"strings"
)

// Identity names one versioned artifact. Equality is case-sensitive
// exact match on both fields.
type Identity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns the canonical "name@version" form used for cache and map keys.
func (id Identity) Key() string {
	return id.Name + "@" + id.Version
}

// Scoped reports whether the name carries a namespace prefix (@scope/name).
func (id Identity) Scoped() bool {
	return strings.HasPrefix(id.Name, "@") && strings.Contains(id.Name, "/")
}

// Scope returns the namespace prefix including the leading "@", or "" for
// unscoped names.
func (id Identity) Scope() string {
	if !id.Scoped() {
		return ""
	}
	return id.Name[:strings.Index(id.Name, "/")]
}

func (id Identity) String() string {
	return id.Key()
}

// ParseKey parses a "name@version" key back into an Identity. The version
// separator is the last "@" so scoped names (@scope/name@1.0.0) parse
// correctly.
func ParseKey(key string) (Identity, error) {
	at := strings.LastIndex(key, "@")
	if at <= 0 || at == len(key)-1 {
		return Identity{}, fmt.Errorf("invalid artifact key %q: want name@version", key)
	}
	return Identity{Name: key[:at], Version: key[at+1:]}, nil
}
