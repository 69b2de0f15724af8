package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncDirectory_CopiesAllFiles(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mp4"), []byte("aaa"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.mp4"), []byte("bbbbb"), 0o644))

	s := New()
	res, err := s.SyncDirectory(context.Background(), src, dest)
	require.NoError(t, err)
	require.Equal(t, 2, res.Copied)
	require.Equal(t, 0, res.Skipped)

	got, err := os.ReadFile(filepath.Join(dest, "sub", "b.mp4"))
	require.NoError(t, err)
	require.Equal(t, "bbbbb", string(got))
}

func TestSyncDirectory_SkipsSameSizeExisting(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mp4"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.mp4"), []byte("zzz"), 0o644))

	s := New()
	res, err := s.SyncDirectory(context.Background(), src, dest)
	require.NoError(t, err)
	require.Equal(t, 0, res.Copied)
	require.Equal(t, 1, res.Skipped)

	got, err := os.ReadFile(filepath.Join(dest, "a.mp4"))
	require.NoError(t, err)
	require.Equal(t, "zzz", string(got))
}

func TestCopyFile_CreatesParentDirAndContent(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	srcPath := filepath.Join(src, "in.mov")
	require.NoError(t, os.WriteFile(srcPath, []byte("payload"), 0o644))

	destPath := filepath.Join(dest, "nested", "out.mov")
	s := New()
	require.NoError(t, s.CopyFile(context.Background(), srcPath, destPath))

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	s := New()
	exists, err := s.FileExists(path)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.FileExists(filepath.Join(dir, "missing.mp4"))
	require.NoError(t, err)
	require.False(t, exists)
}
