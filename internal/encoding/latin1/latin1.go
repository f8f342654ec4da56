// Package latin1 decodes the ISO-8859-1 text the DWD publishes its description
// and metadata files in.
package latin1

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Decode returns b as UTF-8. Input that already is valid UTF-8 is returned unchanged.
func Decode(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return b
	}
	return out
}

// NewReader wraps r with an ISO-8859-1 to UTF-8 transformation.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
}
