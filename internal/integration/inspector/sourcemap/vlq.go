package sourcemap

import (
	"errors"
	"fmt"
)

const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift
	vlqBaseMask        = vlqBase - 1
	vlqContinuationBit = vlqBase
)

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	for i := 0; i < len(alphabet); i++ {
		idx[alphabet[i]] = int8(i)
	}
	return idx
}()

var errVLQTruncated = errors.New("truncated VLQ value")

// decodeVLQ reads one base64 VLQ value from s starting at pos and returns the
// value and the position after it.
func decodeVLQ(s string, pos int) (int, int, error) {
	var result, shift int
	for {
		if pos >= len(s) {
			return 0, pos, errVLQTruncated
		}
		digit := base64Index[s[pos]]
		if digit < 0 {
			return 0, pos, fmt.Errorf("invalid base64 character %q at %d", s[pos], pos)
		}
		pos++

		d := int(digit)
		result += (d & vlqBaseMask) << shift
		if d&vlqContinuationBit == 0 {
			break
		}
		shift += vlqBaseShift
		if shift > 31 {
			return 0, pos, fmt.Errorf("VLQ value overflows at %d", pos)
		}
	}

	// The lowest bit carries the sign.
	if result&1 == 1 {
		return -(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}
