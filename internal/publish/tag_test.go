package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectTag(t *testing.T) {
	tests := []struct {
		version  string
		expected string
	}{
		{"1.0.0", "latest"},
		{"2.3.4", "latest"},
		{"2.0.0-beta.1", "beta"},
		{"1.0.0-alpha", "alpha"},
		{"3.1.0-rc.2", "rc"},
		{"0.0.0-canary.20240101", "canary"},
		{"5.0.0-next.3", "next"},
		{"1.2.3-dev.0", "dev"},
		{"4.0.0-nightly", "nightly"},
		{"1.0.0-experimental-abc123", "experimental"},
		// Generic prerelease grammar: identifier becomes the tag.
		{"1.0.0-preview.1", "preview"},
		{"2.0.0-hotfix", "hotfix"},
		// Numeric-only identifiers have no derivable name, so default.
		{"1.0.0-20240101", "latest"},
		// Case-insensitive markers.
		{"1.0.0-BETA.1", "beta"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectTag(tt.version))
		})
	}
}

func TestFallbackTag(t *testing.T) {
	assert.Equal(t, "airgap-1-2-3", FallbackTag("1.2.3"))
	assert.Equal(t, "airgap-2-0-0-beta-1", FallbackTag("2.0.0-beta.1"))
	assert.Equal(t, "airgap-1-0-0-x-y", FallbackTag("1.0.0+x.y"))
}

func TestFallbackTagDeterministic(t *testing.T) {
	assert.Equal(t, FallbackTag("1.2.3"), FallbackTag("1.2.3"))
}
