// Package syncer adapts the teacher's S3 upload/download syncer into a
// local-disk equivalent: bounded-concurrency directory sync between a
// job's scratch work directory and the durable outputs/ tree, plus the
// single-file copy the Runner uses to publish one finished output.
package syncer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// Syncer is the local equivalent of the teacher's S3 syncer interface:
// same shape (directory sync, single-file put/get, existence check),
// backed by os/io instead of an S3 client.
type Syncer interface {
	SyncDirectory(ctx context.Context, srcDir, destDir string) (SyncResult, error)
	CopyFile(ctx context.Context, srcPath, destPath string) error
	FileExists(destPath string) (bool, error)
}

// SyncResult mirrors the teacher's uploaded/skipped/total counters.
type SyncResult struct {
	Copied  int
	Skipped int
	Total   int
}

const defaultMaxConcurrency = 10

// LocalSyncer copies files under a source directory into a destination
// directory, skipping files that already exist at the destination with
// the same size (the local stand-in for the teacher's HeadObject
// existence check).
type LocalSyncer struct {
	maxConcurrency int
}

func New() *LocalSyncer {
	return &LocalSyncer{maxConcurrency: defaultMaxConcurrency}
}

// SyncDirectory walks srcDir and copies every regular file into the
// corresponding relative path under destDir, skipping files already
// present with a matching size. Errors from individual files are
// collected and do not abort the rest of the walk (spec §7: a single
// file's failure must not abort the batch).
func (s *LocalSyncer) SyncDirectory(ctx context.Context, srcDir, destDir string) (SyncResult, error) {
	root := filepath.Clean(srcDir)

	type fileTask struct {
		src, dest string
	}
	var tasks []fileTask
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tasks = append(tasks, fileTask{src: path, dest: filepath.Join(destDir, rel)})
		return nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(tasks) == 0 {
		return SyncResult{}, nil
	}

	log.Info("syncing directory", "files", len(tasks), "src", srcDir, "dest", destDir)

	concurrency := s.maxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, len(tasks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var copied, skipped int

	for _, t := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(t fileTask) {
			defer wg.Done()
			defer func() { <-sem }()

			exists, err := s.sameSizeExists(t.src, t.dest)
			if err != nil {
				errCh <- fmt.Errorf("stat %s: %w", t.dest, err)
				return
			}
			if exists {
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}
			if err := s.CopyFile(ctx, t.src, t.dest); err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			copied++
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
		log.Error("sync error", "err", err)
	}

	result := SyncResult{Copied: copied, Skipped: skipped, Total: len(tasks)}
	if len(errs) > 0 {
		return result, fmt.Errorf("sync failed with %d errors (first: %w)", len(errs), errs[0])
	}
	log.Info("sync complete", "copied", copied, "skipped", skipped, "total", len(tasks))
	return result, nil
}

// CopyFile copies a single file, creating the destination's parent
// directory as needed, and writes to a temp sibling file renamed into
// place on success so a reader never observes a partial copy.
func (s *LocalSyncer) CopyFile(ctx context.Context, srcPath, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer in.Close()

	tmp := destPath + ".tmp-sync"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy %s to %s: %w", srcPath, destPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, destPath, err)
	}
	return nil
}

// FileExists is the local stand-in for the teacher's HeadObject check.
func (s *LocalSyncer) FileExists(destPath string) (bool, error) {
	_, err := os.Stat(destPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalSyncer) sameSizeExists(srcPath, destPath string) (bool, error) {
	destInfo, err := os.Stat(destPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false, err
	}
	return destInfo.Size() == srcInfo.Size(), nil
}
