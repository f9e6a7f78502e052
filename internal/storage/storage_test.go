package storage

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/clipbatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, fs afero.Fs, path string, size int, mod time.Time) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0644))
	require.NoError(t, fs.Chtimes(path, mod, mod))
}

func names(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	var out []string
	for _, info := range infos {
		if info.Mode().IsRegular() {
			out = append(out, info.Name())
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Quota
// =============================================================================

func TestQuotaEnforcer_DeletesOldestFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())
	dir := "/data/S1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Six units of data against a five unit ceiling.
	const unit = 1024
	writeFile(t, fs, filepath.Join(dir, "f.mp4"), unit, base.Add(6*time.Hour))
	writeFile(t, fs, filepath.Join(dir, "a.mp4"), unit, base.Add(1*time.Hour))
	writeFile(t, fs, filepath.Join(dir, "c.mp4"), unit, base.Add(3*time.Hour))
	writeFile(t, fs, filepath.Join(dir, "b.mp4"), unit, base.Add(2*time.Hour))
	writeFile(t, fs, filepath.Join(dir, "e.mp4"), unit, base.Add(5*time.Hour))
	writeFile(t, fs, filepath.Join(dir, "d.mp4"), unit, base.Add(4*time.Hour))

	q.Enforce(dir, 5*unit)

	assert.Equal(t, []string{"b.mp4", "c.mp4", "d.mp4", "e.mp4", "f.mp4"}, names(t, fs, dir))

	usage, err := q.Usage(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, usage, int64(5*unit))
}

func TestQuotaEnforcer_DeletesUntilUnderLimit(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())
	dir := "/data/S1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeFile(t, fs, filepath.Join(dir, "old-small.mp4"), 100, base)
	writeFile(t, fs, filepath.Join(dir, "mid-big.mp4"), 5000, base.Add(time.Minute))
	writeFile(t, fs, filepath.Join(dir, "new.mp4"), 1000, base.Add(2*time.Minute))

	q.Enforce(dir, 2000)

	assert.Equal(t, []string{"new.mp4"}, names(t, fs, dir))
}

func TestQuotaEnforcer_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())
	dir := "/data/S1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"1.mp4", "2.mp4", "3.mp4", "4.mp4"} {
		writeFile(t, fs, filepath.Join(dir, name), 1000, base.Add(time.Duration(i)*time.Minute))
	}

	q.Enforce(dir, 2500)
	first := names(t, fs, dir)
	assert.Equal(t, []string{"3.mp4", "4.mp4"}, first)

	q.Enforce(dir, 2500)
	assert.Equal(t, first, names(t, fs, dir))
}

func TestQuotaEnforcer_UnderLimitIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())
	dir := "/data/S1"

	writeFile(t, fs, filepath.Join(dir, "a.mp4"), 10, time.Now())
	q.Enforce(dir, 10)

	assert.Equal(t, []string{"a.mp4"}, names(t, fs, dir))
}

func TestQuotaEnforcer_IgnoresSubdirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())
	dir := "/data/S1"

	writeFile(t, fs, filepath.Join(dir, ".staging", "u1", "big.mp4"), 10000, time.Now())
	writeFile(t, fs, filepath.Join(dir, "a.mp4"), 10, time.Now())

	q.Enforce(dir, 100)

	assert.Equal(t, []string{"a.mp4"}, names(t, fs, dir))
	exists, err := afero.Exists(fs, filepath.Join(dir, ".staging", "u1", "big.mp4"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestQuotaEnforcer_CreatesMissingDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewQuotaEnforcer(fs, testLogger())

	q.Enforce("/data/new-session", 100)

	exists, err := afero.DirExists(fs, "/data/new-session")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestQuotaEnforcer_ReadOnlyFilesystem(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	q := NewQuotaEnforcer(fs, testLogger())

	// Must not panic or propagate the error.
	q.Enforce("/data/S1", 100)
}

// =============================================================================
// Sanitize
// =============================================================================

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Video.mp4", "My_Video.mp4"},
		{"Rick Astley - Never Gonna Give You Up (Official).mp4", "Rick_Astley_-_Never_Gonna_Give_You_Up_Official.mp4"},
		{"Mr. Bean's #1 clip!.mp4", "Mr_Beans_1_clip.mp4"},
		{"../../etc/passwd", "etcpasswd"},
		{"???.mp4", "video.mp4"},
		{"no_extension", "no_extension"},
		{"café déjà vu.webm", "café_déjà_vu.webm"},
		{"", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

// =============================================================================
// Finalizer
// =============================================================================

func TestFinalizer_MovesAndSanitizes(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFinalizer(fs)
	session := "/data/S1"
	staging := StagingDir(session, "u1")

	writeFile(t, fs, filepath.Join(staging, "My Video!.mp4"), 10, time.Now())

	got, err := f.Finalize(staging, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"My_Video.mp4"}, got)
	assert.Equal(t, []string{"My_Video.mp4"}, names(t, fs, session))

	exists, err := afero.DirExists(fs, staging)
	require.NoError(t, err)
	assert.False(t, exists, "staging directory should be removed")
}

func TestFinalizer_NoFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFinalizer(fs)
	session := "/data/S1"
	staging := StagingDir(session, "u1")

	_, err := f.Finalize(staging, session)
	assert.ErrorIs(t, err, domain.ErrNoOutputFile)

	require.NoError(t, fs.MkdirAll(staging, 0755))
	writeFile(t, fs, filepath.Join(staging, "clip.mp4.part"), 10, time.Now())

	_, err = f.Finalize(staging, session)
	assert.ErrorIs(t, err, domain.ErrNoOutputFile)
}

func TestFinalizer_CollisionSuffix(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFinalizer(fs)
	session := "/data/S1"

	writeFile(t, fs, filepath.Join(session, "clip.mp4"), 1, time.Now())
	writeFile(t, fs, filepath.Join(StagingDir(session, "u1"), "clip.mp4"), 2, time.Now())
	writeFile(t, fs, filepath.Join(StagingDir(session, "u2"), "clip.mp4"), 3, time.Now())

	got1, err := f.Finalize(StagingDir(session, "u1"), session)
	require.NoError(t, err)
	got2, err := f.Finalize(StagingDir(session, "u2"), session)
	require.NoError(t, err)

	assert.Equal(t, []string{"clip_1.mp4"}, got1)
	assert.Equal(t, []string{"clip_2.mp4"}, got2)
	assert.Equal(t, []string{"clip.mp4", "clip_1.mp4", "clip_2.mp4"}, names(t, fs, session))
}

// renameFailFs lets the first allow renames through and fails the rest.
type renameFailFs struct {
	afero.Fs
	allow int
}

func (fs *renameFailFs) Rename(oldname, newname string) error {
	if fs.allow <= 0 {
		return errors.New("no space left on device")
	}
	fs.allow--
	return fs.Fs.Rename(oldname, newname)
}

func TestFinalizer_PartialMoveRollsBack(t *testing.T) {
	mem := afero.NewMemMapFs()
	f := NewFinalizer(&renameFailFs{Fs: mem, allow: 1})
	session := "/data/S1"
	staging := StagingDir(session, "u1")

	writeFile(t, mem, filepath.Join(session, "earlier.mp4"), 5, time.Now())
	writeFile(t, mem, filepath.Join(staging, "clip.mp4"), 10, time.Now())
	writeFile(t, mem, filepath.Join(staging, "clip.en.vtt"), 2, time.Now())

	got, err := f.Finalize(staging, session)
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"earlier.mp4"}, names(t, mem, session), "moved files should be rolled back")

	exists, err := afero.DirExists(mem, staging)
	require.NoError(t, err)
	assert.False(t, exists, "staging directory should be removed")
}

func TestFinalizer_ConcurrentSameTitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFinalizer(fs)
	session := "/data/S1"

	const n = 8
	for i := 0; i < n; i++ {
		writeFile(t, fs, filepath.Join(StagingDir(session, string(rune('a'+i))), "same title.mp4"), 1, time.Now())
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.Finalize(StagingDir(session, string(rune('a'+i))), session)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, names(t, fs, session), n)
}

// =============================================================================
// Library
// =============================================================================

func TestLibrary_SessionDir(t *testing.T) {
	lib := NewLibrary(afero.NewMemMapFs(), "/data")

	dir, err := lib.SessionDir("S1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "S1"), dir)

	for _, bad := range []domain.SessionID{"", ".", "..", "a/b", `a\b`} {
		_, err := lib.SessionDir(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidSession, "session %q", bad)
	}
}

func TestLibrary_ListAndOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	lib := NewLibrary(fs, "/data")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeFile(t, fs, "/data/S1/old.mp4", 3, base)
	writeFile(t, fs, "/data/S1/new.mp4", 5, base.Add(time.Hour))
	writeFile(t, fs, "/data/S1/.staging/u1/partial.mp4", 5, base)

	entries, err := lib.List("S1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new.mp4", entries[0].Name)
	assert.Equal(t, int64(5), entries[0].Size)
	assert.Equal(t, "old.mp4", entries[1].Name)

	f, info, err := lib.Open("S1", "old.mp4")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(3), info.Size())

	_, _, err = lib.Open("S1", "missing.mp4")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, _, err = lib.Open("S1", "../S2/x.mp4")
	assert.ErrorIs(t, err, domain.ErrInvalidFilename)

	_, _, err = lib.Open("S1", ".staging")
	assert.ErrorIs(t, err, domain.ErrInvalidFilename)
}

func TestLibrary_ListMissingSession(t *testing.T) {
	lib := NewLibrary(afero.NewMemMapFs(), "/data")

	entries, err := lib.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskUsage(t *testing.T) {
	stats, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, stats.TotalBytes)
	assert.LessOrEqual(t, stats.FreeBytes, stats.TotalBytes)
	assert.Equal(t, stats.TotalBytes-stats.FreeBytes, stats.UsedBytes)
}
