package internal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MediaFile is a candidate file found by the scanner.
type MediaFile struct {
	Path        string
	Name        string // base name without the final extension
	ContentType string
}

// NewMediaFile describes path without sniffing its content.
func NewMediaFile(path string) MediaFile {
	return MediaFile{Path: path, Name: BaseName(path)}
}

// BaseName strips the directory and the final extension from path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sessionDirName holds session manifests inside the output directory.
const sessionDirName = ".mediaorganiser"

// DetectMedia sniffs path and reports whether its content type is one of
// types.
func DetectMedia(path string, types []string) (MediaFile, bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return MediaFile{}, false, err
	}
	if !mimeIn(mtype, types) {
		return MediaFile{}, false, nil
	}
	file := NewMediaFile(path)
	file.ContentType = mtype.String()
	return file, true, nil
}

// ScanMediaFiles walks inputDir recursively and returns the files whose
// sniffed content type is configured. The output directory is skipped when it
// lies inside inputDir.
func ScanMediaFiles(inputDir string, cfg *Config) ([]MediaFile, error) {
	if strings.TrimSpace(inputDir) == "" {
		return nil, fmt.Errorf("an input directory should be provided")
	}
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory %s is not a directory", inputDir)
	}

	var skip string
	if cfg.Output != "" {
		skip, _ = filepath.Abs(cfg.Output)
	}

	var files []MediaFile
	err = filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == sessionDirName {
				return filepath.SkipDir
			}
			if skip != "" && path != inputDir {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		file, ok, err := DetectMedia(path, cfg.MediaTypes)
		if err != nil || !ok {
			// Unreadable or not media: not ours to organise.
			return nil
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}
	return files, nil
}
