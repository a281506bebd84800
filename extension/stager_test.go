package extension

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/browserenv/errext"
	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/storage"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func crx3(payload []byte) []byte {
	header := []byte("proto-header-bytes")
	var buf bytes.Buffer
	buf.WriteString("Cr24")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	buf.Write(header)
	buf.Write(payload)
	return buf.Bytes()
}

func crx2(payload []byte) []byte {
	pubKey, sig := []byte("public-key"), []byte("signature!!")
	var buf bytes.Buffer
	buf.WriteString("Cr24")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pubKey)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(sig)))
	buf.Write(pubKey)
	buf.Write(sig)
	buf.Write(payload)
	return buf.Bytes()
}

var extensionFiles = map[string]string{ //nolint:gochecknoglobals
	"manifest.json":     `{"manifest_version":3,"name":"test"}`,
	"js/background.js":  "console.log('hi')",
	"icons/":            "",
	"_locales/en/x.txt": "x",
}

func newTestStager(t *testing.T) (*Stager, afero.Fs, *storage.Namespace) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))
	ns := storage.NewNamespace(fs, "/tmp", nil)
	return NewStager(ns, log.NewNullLogger()), fs, ns
}

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func stagedDirs(t *testing.T, fs afero.Fs, ns *storage.Namespace) []string {
	t.Helper()

	infos, err := afero.ReadDir(fs, ns.Extensions())
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func TestAddSource(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		s, _, _ := newTestStager(t)
		err := s.AddSource("/nowhere/ext")
		require.ErrorIs(t, err, errext.ErrNotFound)
		var hinted errext.HasHint
		require.ErrorAs(t, err, &hinted)
		assert.Empty(t, s.Sources())
	})

	t.Run("manifest_search", func(t *testing.T) {
		t.Parallel()

		s, fs, _ := newTestStager(t)
		writeFile(t, fs, "/src/z/manifest.json", []byte("{}"))
		writeFile(t, fs, "/src/b/c/manifest.json", []byte("{}"))
		writeFile(t, fs, "/src/a/manifest.json", []byte("{}"))
		writeFile(t, fs, "/src/a-b/manifest.json", []byte("{}"))

		writeFile(t, fs, "/top/manifest.json", []byte("{}"))
		writeFile(t, fs, "/top/nested/manifest.json", []byte("{}"))

		writeFile(t, fs, "/plain/readme.txt", []byte("x"))
		require.NoError(t, fs.MkdirAll("/dirmanifest/manifest.d", 0o755))

		for _, p := range []string{"/src", "/top", "/plain", "/dirmanifest"} {
			require.NoError(t, s.AddSource(p))
		}
		assert.Equal(t, []string{"/src/a", "/top", "/plain", "/dirmanifest"}, s.Sources())
	})

	t.Run("packaged", func(t *testing.T) {
		t.Parallel()

		s, fs, _ := newTestStager(t)
		writeFile(t, fs, "/pkg/broken.crx", []byte("not validated yet"))
		require.NoError(t, s.AddSource("/pkg/broken.crx"))
		assert.Equal(t, []string{"/pkg/broken.crx"}, s.Sources())
	})
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{name: "zip", data: func(t *testing.T) []byte { return zipBytes(t, extensionFiles) }},
		{name: "crx2", data: func(t *testing.T) []byte { return crx2(zipBytes(t, extensionFiles)) }},
		{name: "crx3", data: func(t *testing.T) []byte { return crx3(zipBytes(t, extensionFiles)) }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, fs, ns := newTestStager(t)
			writeFile(t, fs, "/pkg/ext."+tc.name, tc.data(t))
			writeFile(t, fs, "/unpacked/manifest.json", []byte("{}"))
			require.NoError(t, s.AddSource("/unpacked"))
			require.NoError(t, s.AddSource("/pkg/ext."+tc.name))

			dirs, err := s.Prepare()
			require.NoError(t, err)
			require.Len(t, dirs, 2)
			assert.Equal(t, "/unpacked", dirs[0])
			assert.Equal(t, ns.Extensions(), filepath.Dir(dirs[1]))
			assert.True(t, strings.HasPrefix(filepath.Base(dirs[1]), StagedPrefix))
			assert.Equal(t, dirs, s.Prepared())

			manifest, err := afero.ReadFile(fs, filepath.Join(dirs[1], "manifest.json"))
			require.NoError(t, err)
			assert.Equal(t, extensionFiles["manifest.json"], string(manifest))
			ok, err := afero.Exists(fs, filepath.Join(dirs[1], "js", "background.js"))
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = afero.DirExists(fs, filepath.Join(dirs[1], "icons"))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestPrepareTwice(t *testing.T) {
	t.Parallel()

	s, fs, ns := newTestStager(t)
	writeFile(t, fs, "/pkg/ext.crx", crx3(zipBytes(t, extensionFiles)))
	require.NoError(t, s.AddSource("/pkg/ext.crx"))

	first, err := s.Prepare()
	require.NoError(t, err)
	require.Len(t, stagedDirs(t, fs, ns), 1)

	second, err := s.Prepare()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{filepath.Base(second[0])}, stagedDirs(t, fs, ns))

	ok, err := afero.DirExists(fs, first[0])
	require.NoError(t, err)
	assert.False(t, ok, "the first staging dir is removed")
}

func TestPrepareExtractionFailure(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{name: "garbage", data: func(*testing.T) []byte { return []byte("definitely not a zip") }},
		{name: "empty", data: func(*testing.T) []byte { return nil }},
		{name: "truncated_crx", data: func(*testing.T) []byte { return []byte("Cr24\x03\x00") }},
		{name: "crx_version", data: func(t *testing.T) []byte {
			b := crx3(zipBytes(t, extensionFiles))
			b[4] = 9
			return b
		}},
		{name: "crx_header_too_large", data: func(*testing.T) []byte {
			return []byte("Cr24\x03\x00\x00\x00\xff\xff\x00\x00")
		}},
		{name: "zip_slip", data: func(t *testing.T) []byte {
			return zipBytes(t, map[string]string{"manifest.json": "{}", "../../escaped.txt": "x"})
		}},
		{name: "absolute_entry", data: func(t *testing.T) []byte {
			return zipBytes(t, map[string]string{"/etc/escaped.txt": "x"})
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, fs, ns := newTestStager(t)
			writeFile(t, fs, "/pkg/good.zip", zipBytes(t, extensionFiles))
			writeFile(t, fs, "/pkg/bad.zip", tc.data(t))
			require.NoError(t, s.AddSource("/pkg/good.zip"))
			require.NoError(t, s.AddSource("/pkg/bad.zip"))

			dirs, err := s.Prepare()
			require.ErrorIs(t, err, errext.ErrExtractionFailed)
			assert.Nil(t, dirs)
			assert.Empty(t, s.Prepared())
			assert.Len(t, stagedDirs(t, fs, ns), 1, "only the good package stays staged")

			ok, err := afero.Exists(fs, filepath.Join(filepath.Dir(ns.Extensions()), "escaped.txt"))
			require.NoError(t, err)
			assert.False(t, ok)

			s.Cleanup()
			assert.Empty(t, stagedDirs(t, fs, ns))
		})
	}
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	s, fs, ns := newTestStager(t)
	writeFile(t, fs, "/pkg/a.zip", zipBytes(t, extensionFiles))
	writeFile(t, fs, "/pkg/b.zip", zipBytes(t, extensionFiles))
	require.NoError(t, s.AddSource("/pkg/a.zip"))
	require.NoError(t, s.AddSource("/pkg/b.zip"))

	dirs, err := s.Prepare()
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	// already gone counts as clean
	require.NoError(t, fs.RemoveAll(dirs[0]))

	s.Cleanup()
	assert.Empty(t, stagedDirs(t, fs, ns))
	assert.Empty(t, s.Prepared())
	assert.Equal(t, []string{"/pkg/a.zip", "/pkg/b.zip"}, s.Sources(), "sources survive cleanup")

	assert.NotPanics(t, s.Cleanup)
}

func TestPrepareReadOnly(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	writeFile(t, base, "/pkg/a.zip", zipBytes(t, extensionFiles))
	writeFile(t, base, "/unpacked/manifest.json", []byte("{}"))
	ns := storage.NewNamespace(afero.NewReadOnlyFs(base), "/tmp", nil)
	s := NewStager(ns, nil)

	require.NoError(t, s.AddSource("/unpacked"))
	dirs, err := s.Prepare()
	require.NoError(t, err)
	assert.Equal(t, []string{"/unpacked"}, dirs)

	require.NoError(t, s.AddSource("/pkg/a.zip"))
	_, err = s.Prepare()
	require.ErrorIs(t, err, errext.ErrExtractionFailed)
}
