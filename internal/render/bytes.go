package render

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/skobkin/d7logger/internal/config"
)

// FormatBytes renders data in the given display format. Hex is upper case
// without separators, bin and dec are space separated, txt replaces
// non-printable runes with '.'.
func FormatBytes(format config.DisplayFormat, data []byte) string {
	switch format {
	case config.DisplayBin:
		return joinBytes(data, func(b byte) string {
			s := strconv.FormatUint(uint64(b), 2)
			return strings.Repeat("0", 8-len(s)) + s
		})
	case config.DisplayDec:
		return joinBytes(data, func(b byte) string {
			return strconv.FormatUint(uint64(b), 10)
		})
	case config.DisplayTxt:
		return Printable(data)
	default:
		return strings.ToUpper(hex.EncodeToString(data))
	}
}

// Printable decodes data as UTF-8 and masks control characters.
func Printable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError || (!unicode.IsPrint(r) && r != ' ') {
			b.WriteByte('.')
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

func joinBytes(data []byte, f func(byte) string) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = f(b)
	}

	return strings.Join(parts, " ")
}
