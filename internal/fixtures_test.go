package internal

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestImage creates a small gradient image.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x + y) % 255),
				A: 255,
			})
		}
	}
	return img
}

// exifTag is an ASCII entry of the Exif IFD.
type exifTag struct {
	id    uint16
	value string
}

// exifSegment builds an APP1 segment holding a little-endian TIFF header and
// IFD0 pointing at an Exif IFD with the given tags.
func exifSegment(tags ...exifTag) []byte {
	le := binary.LittleEndian
	const exifIFD = 26 // 8 (header) + 2 + 12 + 4 (IFD0)
	dataOffset := uint32(exifIFD + 2 + 12*len(tags) + 4)

	var tiff, data bytes.Buffer
	w := func(v any) { _ = binary.Write(&tiff, le, v) }
	tiff.WriteString("II")
	w(uint16(42))
	w(uint32(8))

	// IFD0
	w(uint16(1))
	w(uint16(0x8769)) // ExifIFDPointer
	w(uint16(4))      // LONG
	w(uint32(1))
	w(uint32(exifIFD))
	w(uint32(0))

	// Exif IFD
	w(uint16(len(tags)))
	for _, tag := range tags {
		value := append([]byte(tag.value), 0)
		w(tag.id)
		w(uint16(2)) // ASCII
		w(uint32(len(value)))
		if len(value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, value)
			tiff.Write(inline)
			continue
		}
		w(dataOffset + uint32(data.Len()))
		data.Write(value)
	}
	w(uint32(0))
	tiff.Write(data.Bytes())

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&seg, binary.BigEndian, uint16(2+6+tiff.Len()))
	seg.WriteString("Exif\x00\x00")
	seg.Write(tiff.Bytes())
	return seg.Bytes()
}

// corruptExifSegment is exifSegment with the count of the ExifIFDPointer
// entry raised to 0x40000001, a value whose byte length wraps in 32 bits.
func corruptExifSegment(tags ...exifTag) []byte {
	seg := exifSegment(tags...)
	binary.LittleEndian.PutUint32(seg[24:], 0x40000001)
	return seg
}

// writeJPEG writes a JPEG to path. A non-empty dateTime ("2006:01:02
// 15:04:05") is embedded as EXIF DateTimeOriginal.
func writeJPEG(t *testing.T, path, dateTime, subsec string) {
	t.Helper()
	var tags []exifTag
	if dateTime != "" {
		tags = append(tags, exifTag{0x9003, dateTime})
		if subsec != "" {
			tags = append(tags, exifTag{0x9291, subsec})
		}
	}
	writeJPEGTags(t, path, tags...)
}

// writeJPEGTags writes a JPEG to path carrying the given Exif IFD tags. No
// tags means no APP1 segment at all.
func writeJPEGTags(t *testing.T, path string, tags ...exifTag) {
	t.Helper()
	var seg []byte
	if len(tags) > 0 {
		seg = exifSegment(tags...)
	}
	writeJPEGSegment(t, path, seg)
}

// writeJPEGSegment writes a JPEG to path with seg inserted after SOI.
func writeJPEGSegment(t *testing.T, path string, seg []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(16, 16), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	out := append([]byte{}, data[:2]...)
	out = append(out, seg...)
	writeFile(t, path, append(out, data[2:]...))
}

// writeMP4 writes a minimal ISO BMFF file whose mvhd box carries created as
// its creation time. A zero time leaves the field unset.
func writeMP4(t *testing.T, path string, created time.Time) {
	t.Helper()
	be := binary.BigEndian

	var ftyp bytes.Buffer
	_ = binary.Write(&ftyp, be, uint32(24))
	ftyp.WriteString("ftypisom")
	_ = binary.Write(&ftyp, be, uint32(0x200))
	ftyp.WriteString("isommp42")

	var secs uint32
	if !created.IsZero() {
		secs = uint32(created.Unix() + appleEpochOffset)
	}

	var mvhd bytes.Buffer
	w := func(v any) { _ = binary.Write(&mvhd, be, v) }
	w(uint32(108))
	mvhd.WriteString("mvhd")
	w(uint32(0)) // version 0, no flags
	w(secs)      // creation_time
	w(secs)      // modification_time
	w(uint32(1000))
	w(uint32(0)) // duration
	w(uint32(0x00010000))
	w(uint16(0x0100))
	w(uint16(0))
	w([2]uint32{})
	w([9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000})
	w([6]uint32{})
	w(uint32(2)) // next_track_ID

	var out bytes.Buffer
	out.Write(ftyp.Bytes())
	_ = binary.Write(&out, be, uint32(8+mvhd.Len()))
	out.WriteString("moov")
	out.Write(mvhd.Bytes())
	writeFile(t, path, out.Bytes())
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func utc(year int, month time.Month, day, hour, min, sec, ms int) time.Time {
	return time.Date(year, month, day, hour, min, sec, ms*int(time.Millisecond), time.UTC)
}
