// Package toctest builds table of contents images for tests.
package toctest

import (
	"encoding/binary"

	"github.com/jchantrell/slimdivers/internal/toc"
)

// Encode lays out a table of contents with the given number of zeroed type
// records followed by headers.
func Encode(types int, headers ...toc.Header) []byte {
	out := make([]byte, toc.FileHeaderSize+toc.TypeRecordSize*types)
	binary.LittleEndian.PutUint32(out[0:], toc.Magic)
	binary.LittleEndian.PutUint32(out[4:], uint32(types))
	binary.LittleEndian.PutUint32(out[8:], uint32(len(headers)))

	for _, h := range headers {
		rec, err := h.MarshalBinary()
		if err != nil {
			panic(err)
		}
		out = append(out, rec...)
	}
	return out
}
