//go:build linux || darwin || freebsd || openbsd || netbsd

package fs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	free, err := Available(dir)
	require.NoError(t, err)
	assert.Positive(t, free)

	// A folder that has not been created yet is measured on its parent's volume.
	missing, err := Available(filepath.Join(dir, "noto_filtered", "0101_text.json"))
	require.NoError(t, err)
	assert.Positive(t, missing)
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()
	got, err := existingAncestor(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
