package storage

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/browserenv/log"
)

func TestNamespace(t *testing.T) {
	t.Parallel()

	t.Run("lazy_create", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		ns := NewNamespace(fs, "/tmp", log.NewNullLogger())

		exists, err := afero.DirExists(fs, "/tmp/nodriver")
		require.NoError(t, err)
		assert.False(t, exists, "nothing should be created before first use")

		assert.Equal(t, filepath.Join("/tmp", "nodriver"), ns.Base())
		assert.Equal(t, filepath.Join("/tmp", "nodriver", "profiles"), ns.Profiles())
		assert.Equal(t, filepath.Join("/tmp", "nodriver", "extensions"), ns.Extensions())

		for _, d := range []string{"/tmp/nodriver", "/tmp/nodriver/profiles", "/tmp/nodriver/extensions"} {
			exists, err := afero.DirExists(fs, filepath.FromSlash(d))
			require.NoError(t, err)
			assert.True(t, exists, d)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		ns := NewNamespace(fs, "/tmp", nil)
		first := ns.Subdir("profiles")

		// a second handle on the same tree sees the same paths
		other := NewNamespace(fs, "/tmp", nil)
		assert.Equal(t, first, other.Subdir("profiles"))
		assert.Equal(t, ns.Base(), other.Base())
	})

	t.Run("recreates_removed_subdir", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		ns := NewNamespace(fs, "/tmp", nil)
		dir := ns.Extensions()
		require.NoError(t, fs.RemoveAll(ns.Base()))

		assert.Equal(t, dir, ns.Extensions())
		exists, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("fallback_on_error", func(t *testing.T) {
		t.Parallel()

		ns := NewNamespace(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/tmp", log.NewNullLogger())
		assert.Equal(t, "/tmp", ns.Base())
		assert.Equal(t, "/tmp", ns.Subdir("profiles"))
		assert.Equal(t, "/tmp", ns.Extensions())
	})

	t.Run("concurrent_base", func(t *testing.T) {
		t.Parallel()

		ns := NewNamespace(afero.NewMemMapFs(), "/tmp", nil)
		var wg sync.WaitGroup
		bases := make([]string, 8)
		for i := range bases {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				bases[i] = ns.Base()
			}(i)
		}
		wg.Wait()
		for _, b := range bases {
			assert.Equal(t, filepath.Join("/tmp", "nodriver"), b)
		}
	})
}
