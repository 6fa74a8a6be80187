package internal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
)

// Secondary creation tags, most specific first. exiftool reports QuickTime
// dates in UTC unless an offset is present.
var exiftoolTags = []string{
	"DateTimeOriginal",
	"CreationDate",
	"MediaCreateDate",
	"TrackCreateDate",
	"CreateDate",
}

// For images exiftool's CreateDate is EXIF DateTimeDigitized, which is not a
// capture time.
var exiftoolImageTags = []string{"DateTimeOriginal"}

// exiftoolTagsFor returns the tags tried for a file of the given MIME type.
func exiftoolTagsFor(mime string) []string {
	if strings.HasPrefix(mime, "image/") {
		return exiftoolImageTags
	}
	return exiftoolTags
}

var exiftoolLayouts = []string{
	"2006:01:02 15:04:05.000-07:00",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05Z",
	"2006:01:02 15:04:05",
}

// ExifTool wraps a long-running exiftool process. The process reads one
// request at a time, so calls are serialised.
type ExifTool struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

// NewExifTool starts exiftool. It fails when the binary is not on PATH.
func NewExifTool() (*ExifTool, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}
	return &ExifTool{et: et}, nil
}

// CreationTime returns the first parseable tag from tags and its name.
func (e *ExifTool) CreationTime(path string, tags []string) (time.Time, string, error) {
	e.mu.Lock()
	infos := e.et.ExtractMetadata(path)
	e.mu.Unlock()

	if len(infos) == 0 {
		return time.Time{}, "", nil
	}
	info := infos[0]
	if info.Err != nil {
		return time.Time{}, "", info.Err
	}
	for _, tag := range tags {
		v, err := info.GetString(tag)
		if err != nil {
			continue
		}
		if t, ok := parseExiftoolDate(v); ok {
			return t, tag, nil
		}
	}
	return time.Time{}, "", nil
}

func parseExiftoolDate(s string) (time.Time, bool) {
	s = cleanExifString(s)
	for _, layout := range exiftoolLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (e *ExifTool) Close() error {
	return e.et.Close()
}
