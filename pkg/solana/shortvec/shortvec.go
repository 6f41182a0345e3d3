package shortvec

import (
	"fmt"
	"io"
	"math"
)

// maxEncodedBytes is the longest encoding of a value that fits in a uint16.
const maxEncodedBytes = 3

// EncodeLen encodes the specified len into the writer.
//
// If len > math.MaxUint16, an error is returned.
func EncodeLen(w io.Writer, len int) (n int, err error) {
	if len < 0 || len > math.MaxUint16 {
		return 0, fmt.Errorf("len must be in [0, %d]", math.MaxUint16)
	}

	var buf [maxEncodedBytes]byte
	for {
		buf[n] = byte(len & 0x7f)
		len >>= 7
		if len == 0 {
			n++
			break
		}

		buf[n] |= 0x80
		n++
	}

	return w.Write(buf[:n])
}

// DecodeLen decodes a shortvec encoded len from the reader.
//
// Encodings longer than three bytes, values above math.MaxUint16, and
// non-canonical encodings (a trailing zero continuation byte) are rejected.
func DecodeLen(r io.Reader) (val int, err error) {
	var b [1]byte

	for offset := 0; offset < maxEncodedBytes; offset++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		if offset > 0 && b[0] == 0 {
			return 0, fmt.Errorf("non-canonical encoding at byte %d", offset)
		}

		val |= int(b[0]&0x7f) << (offset * 7)
		if b[0]&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, fmt.Errorf("len exceeds %d", math.MaxUint16)
			}
			return val, nil
		}
	}

	return 0, fmt.Errorf("invalid size (max %d bytes)", maxEncodedBytes)
}
