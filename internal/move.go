package internal

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SaveOutcome says what SaveFile did with a file.
type SaveOutcome int

const (
	OutcomeMoved     SaveOutcome = iota // moved under its own name
	OutcomeRenamed                      // moved under an indexed name
	OutcomeDuplicate                    // identical file already there; source left alone
	OutcomeDryRun                       // nothing touched
)

func (o SaveOutcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeRenamed:
		return "renamed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDryRun:
		return "dry-run"
	}
	return fmt.Sprintf("SaveOutcome(%d)", int(o))
}

// SaveResult describes the destination of a saved file.
type SaveResult struct {
	Outcome SaveOutcome
	Dest    string
	Size    int64
	Hash    string // set when content was compared
}

// linkFunc is swapped in tests to simulate cross-device moves.
var linkFunc = os.Link

// fileHash computes SHA256 hash of a file content
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// indexedPath appends index to the name before its extension:
// image.jpg -> image0.jpg, image1.jpg, ...
func indexedPath(dest string, index int) string {
	ext := filepath.Ext(dest)
	base := dest[:len(dest)-len(ext)]
	return fmt.Sprintf("%s%d%s", base, index, ext)
}

// SaveFile moves src into outputDir. An existing file with the same size
// and content is treated as a duplicate and src stays where it is. A
// different file with the same name pushes src to the next free indexed
// name. Nothing is ever overwritten.
func SaveFile(outputDir, src string, dryRun bool) (SaveResult, error) {
	if strings.TrimSpace(outputDir) == "" {
		return SaveResult{}, fmt.Errorf("an output directory should be provided")
	}
	if src == "" {
		return SaveResult{}, fmt.Errorf("a source file should be provided")
	}
	if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
		return SaveResult{}, fmt.Errorf("output directory %s is a file", outputDir)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if !dryRun {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return SaveResult{}, fmt.Errorf("failed to create directory %s: %w", outputDir, err)
		}
	}

	var srcHash string
	primary := filepath.Join(outputDir, filepath.Base(src))
	for i := -1; ; i++ {
		dest := primary
		outcome := OutcomeMoved
		if i >= 0 {
			dest = indexedPath(primary, i)
			outcome = OutcomeRenamed
		}

		existing, err := os.Stat(dest)
		if err == nil {
			if existing.Size() != srcInfo.Size() {
				continue
			}
			if srcHash == "" {
				if srcHash, err = fileHash(src); err != nil {
					return SaveResult{}, fmt.Errorf("failed to hash src file %s: %w", src, err)
				}
			}
			destHash, err := fileHash(dest)
			if err != nil {
				return SaveResult{}, fmt.Errorf("failed to hash dest file %s: %w", dest, err)
			}
			if srcHash == destHash {
				return SaveResult{Outcome: OutcomeDuplicate, Dest: dest, Size: srcInfo.Size(), Hash: srcHash}, nil
			}
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return SaveResult{}, fmt.Errorf("failed to stat %s: %w", dest, err)
		}

		if dryRun {
			return SaveResult{Outcome: OutcomeDryRun, Dest: dest, Size: srcInfo.Size()}, nil
		}

		if err := moveNoClobber(src, dest); err != nil {
			if errors.Is(err, fs.ErrExist) {
				// Another worker took the name between Stat and link.
				continue
			}
			return SaveResult{}, fmt.Errorf("failed to move file %s to %s: %w", src, dest, err)
		}
		return SaveResult{Outcome: outcome, Dest: dest, Size: srcInfo.Size(), Hash: srcHash}, nil
	}
}

// moveNoClobber moves src to dest, failing with fs.ErrExist when dest is
// taken. A hard link is used where possible; otherwise the file is copied.
func moveNoClobber(src, dest string) error {
	err := linkFunc(src, dest)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		if err := copyFileAtomic(src, dest); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

// copyFileAtomic copies src to a temp file next to dest and publishes it
// without replacing an existing dest. The temp file is linked into place;
// where the filesystem has no hard links (exFAT, many SMB mounts) dest is
// claimed with O_EXCL first and the temp file renamed over the placeholder.
func copyFileAtomic(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := out.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if info, err := in.Stat(); err == nil {
		_ = os.Chtimes(tmp, info.ModTime(), info.ModTime())
	}

	err = linkFunc(tmp, dest)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}

	placeholder, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	placeholder.Close()
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// RemoveEmptyDir deletes dir when nothing but Thumbs.db or .DS_Store is
// left in it. It reports whether the directory was removed.
func RemoveEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if e.Name() != "Thumbs.db" && e.Name() != ".DS_Store" {
			return false, nil
		}
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if err := os.Remove(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
