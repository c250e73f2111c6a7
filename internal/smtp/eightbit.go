package smtp

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/infodancer/mailcore/internal/mime"
)

// eightBitValid implements the RFC 2045 8-bit validity test (spec §4.F
// point 1, §8 invariant list): no NUL bytes, CR/LF occur only as CRLF
// pairs, and no line exceeds 998 bytes. Decoding formats themselves
// (quoted-printable, base64) are plain stdlib encoding packages — there is
// no third-party library in the pack narrower than the standard ones for
// these well-known wire encodings.
func eightBitValid(data []byte) bool {
	lineLen := 0
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch b {
		case 0:
			return false
		case '\r':
			if i+1 >= len(data) || data[i+1] != '\n' {
				return false
			}
		case '\n':
			if i == 0 || data[i-1] != '\r' {
				return false
			}
			lineLen = 0
			continue
		default:
			lineLen++
			if lineLen > 998 {
				return false
			}
		}
	}
	return true
}

// decodePart decodes a part's current transfer encoding into raw content,
// returning ok=false for encodings this conversion step doesn't handle
// (anything other than quoted-printable or base64 is left untouched).
func decodePart(encoding string, r io.Reader) (decoded []byte, ok bool, err error) {
	switch strings.ToLower(encoding) {
	case "quoted-printable":
		decoded, err = io.ReadAll(quotedprintable.NewReader(r))
		if err != nil {
			return nil, false, err
		}
		return decoded, true, nil
	case "base64":
		decoded, err = io.ReadAll(base64.NewDecoder(base64.StdEncoding, r))
		if err != nil {
			return nil, false, err
		}
		return decoded, true, nil
	default:
		return nil, false, nil
	}
}

// convertPart attempts the 8BITMIME conversion of one part per spec §4.F
// point 1: if its transfer encoding is quoted-printable or base64, decode
// it, run the 8-bit validity test, and on success rewrite it in place as
// 8bit. Returns whether this part was converted.
func convertPart(p mime.Part) (bool, error) {
	decoded, ok, err := decodePart(p.TransferEncoding(), p.Reader())
	if err != nil || !ok {
		return false, err
	}
	if !eightBitValid(decoded) {
		return false, nil
	}
	p.SetTransferEncoding("8bit", bytes.NewReader(decoded))
	return true, nil
}
