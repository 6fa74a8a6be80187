package internal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxTIFFSize bounds a bare TIFF file read into memory for EXIF decoding.
// Larger files are left to imagemeta, which reads them in place.
const maxTIFFSize = 64 << 20

// maxIFDs bounds the number of directories followed in one TIFF block.
const maxIFDs = 64

var errNoExif = errors.New("no exif segment")

// Bytes per value for each TIFF field type. Type 13 is an IFD offset.
var tiffTypeSize = [...]uint64{1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, 13: 4}

// Tags whose value is the offset of a sub-IFD goexif descends into.
var subIFDTags = map[uint16]bool{
	0x8769: true, // Exif
	0x8825: true, // GPS
	0xA005: true, // Interoperability
}

// exifTIFF returns the TIFF block holding the EXIF data of a JPEG, or the
// whole file when it is a TIFF.
func exifTIFF(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	switch string(head) {
	case "II*\x00", "MM\x00*":
		raw, err := io.ReadAll(io.LimitReader(br, maxTIFFSize+1))
		if err != nil {
			return nil, err
		}
		if len(raw) > maxTIFFSize {
			return nil, fmt.Errorf("tiff larger than %d bytes", maxTIFFSize)
		}
		return raw, nil
	}
	return jpegExifSegment(br)
}

// jpegExifSegment walks the JPEG markers up to the start of scan and returns
// the payload of the first APP1 Exif segment without its "Exif\0\0" header.
func jpegExifSegment(br *bufio.Reader) ([]byte, error) {
	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil {
		return nil, err
	}
	if soi != [2]byte{0xFF, 0xD8} {
		return nil, fmt.Errorf("not a jpeg")
	}

	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			return nil, fmt.Errorf("jpeg: expected marker, got %#x", b)
		}
		marker := byte(0xFF)
		for marker == 0xFF {
			if marker, err = br.ReadByte(); err != nil {
				return nil, err
			}
		}

		switch {
		case marker == 0xD9 || marker == 0xDA:
			return nil, errNoExif
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue
		}

		var size [2]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			return nil, err
		}
		n := int(binary.BigEndian.Uint16(size[:])) - 2
		if n < 0 {
			return nil, fmt.Errorf("jpeg: bad segment length")
		}
		if marker != 0xE1 {
			if _, err := br.Discard(n); err != nil {
				return nil, err
			}
			continue
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, err
		}
		if bytes.HasPrefix(data, []byte("Exif\x00\x00")) {
			return data[6:], nil
		}
	}
}

// checkTIFF verifies that every IFD goexif will decode lies inside b and
// that no entry claims more data than b holds. Sizes are computed in
// uint64 so a corrupt count cannot wrap.
func checkTIFF(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("tiff: short header")
	}
	var order binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return fmt.Errorf("tiff: bad byte order")
	}
	if order.Uint16(b[2:]) != 42 {
		return fmt.Errorf("tiff: bad magic")
	}

	type ifd struct {
		offset uint64
		chain  bool // part of the IFD0 chain, whose next pointers are followed
	}
	size := uint64(len(b))
	queue := []ifd{{offset: uint64(order.Uint32(b[4:])), chain: true}}
	seen := make(map[uint64]bool)

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.offset == 0 {
			continue
		}
		if seen[d.offset] {
			return fmt.Errorf("tiff: IFD loop at %d", d.offset)
		}
		if len(seen) >= maxIFDs {
			return fmt.Errorf("tiff: more than %d IFDs", maxIFDs)
		}
		seen[d.offset] = true

		if d.offset+2 > size {
			return fmt.Errorf("tiff: IFD at %d out of range", d.offset)
		}
		n := uint64(order.Uint16(b[d.offset:]))
		end := d.offset + 2 + 12*n
		if end+4 > size {
			return fmt.Errorf("tiff: IFD at %d truncated", d.offset)
		}

		for i := uint64(0); i < n; i++ {
			e := b[d.offset+2+12*i:]
			tag := order.Uint16(e)
			typ := order.Uint16(e[2:])
			count := uint64(order.Uint32(e[4:]))

			unit := uint64(1)
			if int(typ) < len(tiffTypeSize) && tiffTypeSize[typ] > 0 {
				unit = tiffTypeSize[typ]
			}
			length := unit * count
			if length > size {
				return fmt.Errorf("tiff: tag %#x claims %d bytes", tag, length)
			}
			if length > 4 {
				if valOff := uint64(order.Uint32(e[8:])); valOff+length > size {
					return fmt.Errorf("tiff: tag %#x value out of range", tag)
				}
			}

			if subIFDTags[tag] {
				ptr := uint64(order.Uint32(e[8:]))
				if typ == 3 {
					ptr = uint64(order.Uint16(e[8:]))
				}
				if ptr == 0 {
					return fmt.Errorf("tiff: tag %#x points at the header", tag)
				}
				queue = append(queue, ifd{offset: ptr})
			}
		}

		if d.chain {
			queue = append(queue, ifd{offset: uint64(order.Uint32(b[end:])), chain: true})
		}
	}
	return nil
}
