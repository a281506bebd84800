package reaper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/storage"
)

type legacyFixture struct {
	fs     afero.Fs
	reaper *Legacy
	now    time.Time
}

func newLegacyFixture(t *testing.T, snapshot string) *legacyFixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	r := NewLegacy(
		storage.NewNamespace(fs, "/tmp", nil),
		ProcessTableFunc(func() string { return snapshot }),
		log.NewNullLogger(),
	)
	r.now = func() time.Time { return now }
	r.canonical = func(p string) string { return "/private" + p }

	return &legacyFixture{fs: fs, reaper: r, now: now}
}

// dir creates /tmp/<name> containing files (names ending in / are
// directories) and sets its mtime age before now.
func (f *legacyFixture) dir(t *testing.T, name string, age time.Duration, files ...string) string {
	t.Helper()

	dir := filepath.Join("/tmp", name)
	require.NoError(t, f.fs.MkdirAll(dir, 0o755))
	for _, file := range files {
		p := filepath.Join(dir, file)
		if file[len(file)-1] == '/' {
			require.NoError(t, f.fs.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, afero.WriteFile(f.fs, p, []byte("{}"), 0o644))
	}
	mtime := f.now.Add(-age)
	require.NoError(t, f.fs.Chtimes(dir, mtime, mtime))
	return dir
}

func (f *legacyFixture) exists(t *testing.T, dir string) bool {
	t.Helper()
	ok, err := afero.DirExists(f.fs, dir)
	require.NoError(t, err)
	return ok
}

func TestLegacyReap(t *testing.T) {
	t.Parallel()

	const old = 10 * time.Minute

	testCases := []struct {
		name     string
		dirName  string
		age      time.Duration
		files    []string
		snapshot string
		removed  bool
	}{
		{name: "old_empty", dirName: "uc_empty", age: old, removed: true},
		{name: "old_local_state", dirName: "uc_ls", age: old, files: []string{"Local State"}, removed: true},
		{name: "old_default_dir", dirName: "uc_def", age: old, files: []string{"Default/", "Default/Preferences"}, removed: true},
		{name: "old_last_version", dirName: "uc_lv", age: old, files: []string{"Last Version"}, removed: true},
		{name: "default_file_not_profile", dirName: "uc_df", age: old, files: []string{"Default"}, removed: false},
		{name: "old_unrecognized", dirName: "uc_other", age: old, files: []string{"notes.txt"}, removed: false},
		{name: "young_empty", dirName: "uc_young", age: 30 * time.Second, removed: false},
		{name: "young_profile", dirName: "uc_young2", age: 119 * time.Second, files: []string{"Local State"}, removed: false},
		{name: "exactly_min_age", dirName: "uc_edge", age: DefaultMinAge, removed: true},
		{name: "wrong_prefix", dirName: "nodriver_x", age: old, removed: false},
		{
			name: "in_use_equals", dirName: "uc_live", age: old, files: []string{"Local State"},
			snapshot: "/usr/bin/chrome --no-first-run --user-data-dir=/tmp/uc_live --headless=new",
		},
		{
			name: "in_use_space", dirName: "uc_live2", age: old,
			snapshot: "chromium --user-data-dir /tmp/uc_live2",
		},
		{
			name: "in_use_canonical", dirName: "uc_live3", age: old,
			snapshot: "chrome --user-data-dir=/private/tmp/uc_live3",
		},
		{
			name: "in_use_canonical_space", dirName: "uc_live4", age: old,
			snapshot: "chrome\nchrome --user-data-dir /private/tmp/uc_live4 --type=renderer",
		},
		{
			name: "other_process_dir", dirName: "uc_mine", age: old,
			snapshot: "chrome --user-data-dir=/tmp/uc_theirs", removed: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newLegacyFixture(t, tc.snapshot)
			dir := f.dir(t, tc.dirName, tc.age, tc.files...)
			f.reaper.Reap(DefaultMinAge)
			assert.Equal(t, !tc.removed, f.exists(t, dir))
		})
	}
}

func TestLegacyReapManyCandidates(t *testing.T) {
	t.Parallel()

	snapshots := 0
	fs := afero.NewMemMapFs()
	r := NewLegacy(
		storage.NewNamespace(fs, "/tmp", nil),
		ProcessTableFunc(func() string { snapshots++; return "" }),
		nil,
	)
	now := time.Now()
	r.now = func() time.Time { return now.Add(time.Hour) }

	for _, name := range []string{"uc_a", "uc_b", "uc_c"} {
		require.NoError(t, fs.MkdirAll(filepath.Join("/tmp", name), 0o755))
	}
	// a file with the legacy prefix is not a candidate
	require.NoError(t, afero.WriteFile(fs, "/tmp/uc_file", nil, 0o644))

	r.Reap(DefaultMinAge)

	assert.Equal(t, 1, snapshots, "the process table should be read once per pass")
	for _, name := range []string{"uc_a", "uc_b", "uc_c"} {
		ok, err := afero.DirExists(fs, filepath.Join("/tmp", name))
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
	ok, err := afero.Exists(fs, "/tmp/uc_file")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLegacyReapMissingRoot(t *testing.T) {
	t.Parallel()

	r := NewLegacy(
		storage.NewNamespace(afero.NewMemMapFs(), "/does/not/exist", nil),
		ProcessTableFunc(func() string { return "" }),
		log.NewNullLogger(),
	)
	assert.NotPanics(t, func() { r.Reap(0) })
}

func TestLegacyReapPanicIsolation(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	for _, name := range []string{"uc_a", "uc_b"} {
		require.NoError(t, fs.MkdirAll(filepath.Join("/tmp", name), 0o755))
	}
	r := NewLegacy(storage.NewNamespace(fs, "/tmp", nil), ProcessTableFunc(func() string {
		return "chrome --user-data-dir=/elsewhere"
	}), log.NewNullLogger())
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	r.canonical = func(p string) string {
		if p == filepath.Join("/tmp", "uc_a") {
			panic("boom")
		}
		return p
	}

	assert.NotPanics(t, func() { r.Reap(DefaultMinAge) })

	ok, err := afero.DirExists(fs, "/tmp/uc_a")
	require.NoError(t, err)
	assert.True(t, ok, "the candidate that failed is left alone")
	ok, err = afero.DirExists(fs, "/tmp/uc_b")
	require.NoError(t, err)
	assert.False(t, ok, "later candidates are still processed")
}
