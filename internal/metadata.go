package internal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/evanoberholster/imagemeta"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// MetadataProbe reads a capture time embedded in a file. A zero time means
// the file carries none; only failures to read the file are errors.
type MetadataProbe interface {
	Probe(file MediaFile) (t time.Time, source string, err error)
}

// ProbeError is returned when a file cannot be opened or read at all.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("failed to read metadata from %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// appleEpochOffset is the number of seconds between 1904-01-01 (QuickTime
// epoch) and 1970-01-01.
const appleEpochOffset = 2082844800

const exifDateLayout = "2006:01:02 15:04:05"

// offsetTimeOriginal is the EXIF 2.31 OffsetTimeOriginal tag, which goexif
// does not name.
const offsetTimeOriginal = 0x9011

type metadataReader struct {
	name  string
	types []string
	read  func(r io.ReadSeeker) (time.Time, error)
}

// Readers in priority order: EXIF original capture, then container creation.
var metadataReaders = []metadataReader{
	{
		name:  "exif",
		types: []string{"image/jpeg", "image/tiff"},
		read:  readExifOriginal,
	},
	{
		name:  "imagemeta",
		types: []string{"image/jpeg", "image/tiff", "image/heic", "image/heif", "image/png"},
		read:  readImagemeta,
	},
	{
		name:  "mvhd",
		types: []string{"video/mp4", "video/quicktime", "video/3gpp", "video/3gpp2", "video/x-m4v"},
		read:  readMovieHeader,
	},
}

// FileProbe is the MetadataProbe used by the CLI. It sniffs the content
// type of the file and only runs the readers that apply to it.
type FileProbe struct {
	log      *Logger
	exiftool *ExifTool
}

// NewFileProbe creates a probe. et may be nil, in which case secondary
// container tags are not consulted.
func NewFileProbe(log *Logger, et *ExifTool) *FileProbe {
	if log == nil {
		log = NopLogger()
	}
	return &FileProbe{log: log, exiftool: et}
}

func (p *FileProbe) Probe(file MediaFile) (time.Time, string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return time.Time{}, "", &ProbeError{Path: file.Path, Err: err}
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return time.Time{}, "", &ProbeError{Path: file.Path, Err: err}
	}

	for _, rd := range metadataReaders {
		if !mimeIn(mtype, rd.types) {
			continue
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return time.Time{}, "", &ProbeError{Path: file.Path, Err: err}
		}
		t, err := rd.read(f)
		if err != nil {
			p.log.WithField("file", file.Path).Debugf("%s: %v", rd.name, err)
			continue
		}
		if !t.IsZero() {
			return t.UTC(), "metadata:" + rd.name, nil
		}
	}

	if p.exiftool != nil {
		t, tag, err := p.exiftool.CreationTime(file.Path, exiftoolTagsFor(mtype.String()))
		if err != nil {
			p.log.WithField("file", file.Path).Debugf("exiftool: %v", err)
		} else if !t.IsZero() {
			return t.UTC(), "metadata:exiftool:" + tag, nil
		}
	}

	return time.Time{}, "", nil
}

func mimeIn(mtype *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

// readExifOriginal reads DateTimeOriginal with goexif. The TIFF block is
// extracted and bounds-checked first: goexif trusts entry counts and a
// corrupt one makes it allocate gigabytes.
func readExifOriginal(r io.ReadSeeker) (time.Time, error) {
	raw, err := exifTIFF(r)
	if err != nil {
		return time.Time{}, err
	}
	if err := checkTIFF(raw); err != nil {
		return time.Time{}, err
	}
	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil {
		return time.Time{}, err
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, err
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(exifDateLayout, cleanExifString(s))
	if err != nil {
		return time.Time{}, err
	}
	if sub, err := x.Get(exif.SubSecTimeOriginal); err == nil {
		if v, err := sub.StringVal(); err == nil {
			t = t.Add(subSeconds(cleanExifString(v)))
		}
	}
	if offset, ok := exifOffsetOriginal(x, raw); ok {
		t = t.Add(-time.Duration(offset) * time.Second)
	}
	return t, nil
}

// exifOffsetOriginal looks up OffsetTimeOriginal in the Exif IFD and returns
// it in seconds east of UTC.
func exifOffsetOriginal(x *exif.Exif, raw []byte) (int, bool) {
	ptr, err := x.Get(exif.ExifIFDPointer)
	if err != nil {
		return 0, false
	}
	off, err := ptr.Int64(0)
	if err != nil {
		return 0, false
	}
	r := bytes.NewReader(raw)
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return 0, false
	}
	dir, _, err := tiff.DecodeDir(r, x.Tiff.Order)
	if err != nil {
		return 0, false
	}
	for _, tag := range dir.Tags {
		if tag.Id != offsetTimeOriginal {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			return 0, false
		}
		return parseExifOffset(cleanExifString(s))
	}
	return 0, false
}

// parseExifOffset reads "+02:00" style offsets.
func parseExifOffset(s string) (int, bool) {
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return 0, false
	}
	_, offset := t.Zone()
	return offset, true
}

func readImagemeta(r io.ReadSeeker) (time.Time, error) {
	e, err := imagemeta.Decode(r)
	if err != nil {
		return time.Time{}, err
	}
	return wallClockUTC(e.DateTimeOriginal()), nil
}

func readMovieHeader(r io.ReadSeeker) (time.Time, error) {
	boxes, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return time.Time{}, err
	}
	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		// Zero, or anything before 1970, is an unset field.
		secs := mvhd.GetCreationTime()
		if secs <= appleEpochOffset {
			continue
		}
		return time.Unix(int64(secs-appleEpochOffset), 0).UTC(), nil
	}
	return time.Time{}, nil
}

func cleanExifString(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// subSeconds turns an EXIF SubSecTime value ("457", "4", "0457") into a
// duration truncated to milliseconds.
func subSeconds(s string) time.Duration {
	ms := 0
	for i := 0; i < 3; i++ {
		ms *= 10
		if i < len(s) {
			c := s[i]
			if c < '0' || c > '9' {
				return 0
			}
			ms += int(c - '0')
		}
	}
	return time.Duration(ms) * time.Millisecond
}

// wallClockUTC keeps the wall clock of a time parsed in the local zone and
// labels it UTC, so EXIF values without an offset are read the same way as
// file names. Times that carry an explicit offset (OffsetTimeOriginal) are
// converted, as readExifOriginal does.
func wallClockUTC(t time.Time) time.Time {
	if t.IsZero() || t.Location() != time.Local {
		return t.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
