package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCLI writes an executable script standing in for the npm CLI.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-npm")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestCLIPublisherSuccess(t *testing.T) {
	p := NewCLIPublisher()
	p.Command = fakeCLI(t, "exit 0")

	err := p.Publish(context.Background(), "/tmp/pkg.tgz", "http://reg", "latest", 5*time.Second)
	assert.NoError(t, err)
}

func TestCLIPublisherFailureCarriesOutput(t *testing.T) {
	p := NewCLIPublisher()
	p.Command = fakeCLI(t, `echo "npm ERR! 403 cannot publish over the previously published versions" >&2
exit 1`)

	err := p.Publish(context.Background(), "/tmp/pkg.tgz", "http://reg", "latest", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot publish over the previously published versions")
}

func TestCLIPublisherTimeout(t *testing.T) {
	p := NewCLIPublisher()
	p.Command = fakeCLI(t, "sleep 30")

	start := time.Now()
	err := p.Publish(context.Background(), "/tmp/pkg.tgz", "http://reg", "latest", 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCLIPublisherMissingBinary(t *testing.T) {
	p := NewCLIPublisher()
	p.Command = "/does/not/exist/npm"

	err := p.Publish(context.Background(), "/tmp/pkg.tgz", "http://reg", "latest", time.Second)
	assert.Error(t, err)
}
