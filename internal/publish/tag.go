package publish

import (
	"regexp"
	"strings"
)

// DefaultTag is the release channel used when a version carries no
// prerelease signal.
const DefaultTag = "latest"

// fallbackTagPrefix is the fixed prefix of the deterministic tag used
// to recover from a version-ordering conflict.
const fallbackTagPrefix = "airgap"

// channelMarkers maps well-known prerelease marker substrings to their
// channel tag, checked in order. The table is ordered so that the more
// specific markers win ("-release-candidate" before "-rc" is not needed
// because scanning is substring-based and entries do not overlap).
var channelMarkers = []struct {
	marker string
	tag    string
}{
	{"-alpha", "alpha"},
	{"-beta", "beta"},
	{"-canary", "canary"},
	{"-nightly", "nightly"},
	{"-experimental", "experimental"},
	{"-next", "next"},
	{"-dev", "dev"},
	{"-rc", "rc"},
}

// prereleasePattern is the generic fallback: numeric major.minor.patch
// followed by a -identifier. The identifier's leading alphabetic run
// becomes the tag.
var prereleasePattern = regexp.MustCompile(`^\d+\.\d+\.\d+-([A-Za-z]+)`)

// SelectTag derives the dist-tag for a version string. The tag is
// always passed explicitly to the publish primitive: an artifact's own
// embedded publishConfig can silently override the caller's intent, so
// it is never trusted.
func SelectTag(version string) string {
	v := strings.ToLower(version)
	for _, entry := range channelMarkers {
		if strings.Contains(v, entry.marker) {
			return entry.tag
		}
	}
	if m := prereleasePattern.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return DefaultTag
}

// tagSafePattern matches every character that may not appear in a tag.
var tagSafePattern = regexp.MustCompile(`[^0-9A-Za-z-]`)

// FallbackTag derives the deterministic tag used when the registry
// refuses an out-of-order publish: a fixed prefix plus the version with
// punctuation normalized to hyphens (e.g. "airgap-1-2-3").
func FallbackTag(version string) string {
	normalized := tagSafePattern.ReplaceAllString(version, "-")
	return fallbackTagPrefix + "-" + normalized
}
