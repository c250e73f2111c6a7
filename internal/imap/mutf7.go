package imap

import (
	"strings"
	"unicode/utf16"
)

// mutf7Alphabet is RFC 3501's modified base64 alphabet: standard base64
// with ',' substituted for '/' and no padding. golang.org/x/text ships no
// implementation of this variant, so it is hand-rolled here (logged in
// DESIGN.md as a justified stdlib island).
const mutf7Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var mutf7Decode [256]int8

func init() {
	for i := range mutf7Decode {
		mutf7Decode[i] = -1
	}
	for i, c := range []byte(mutf7Alphabet) {
		mutf7Decode[c] = int8(i)
	}
}

// DecodeMailboxName decodes an IMAP mailbox name from modified UTF-7 (the
// "encoded string" form mentioned in spec §4.B) into a plain Go string.
func DecodeMailboxName(s string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '&' {
			out.WriteByte(c)
			i++
			continue
		}
		// shifted sequence
		i++
		if i < len(s) && s[i] == '-' {
			out.WriteByte('&')
			i++
			continue
		}
		start := i
		for i < len(s) && s[i] != '-' {
			i++
		}
		encoded := s[start:i]
		if i < len(s) {
			i++ // consume trailing '-'
		}
		decoded, err := decodeMutf7Run(encoded)
		if err != nil {
			return "", err
		}
		out.WriteString(decoded)
	}
	return out.String(), nil
}

func decodeMutf7Run(encoded string) (string, error) {
	var bits uint32
	var nbits uint
	var units []uint16
	for i := 0; i < len(encoded); i++ {
		v := mutf7Decode[encoded[i]]
		if v < 0 {
			return "", &ProtocolErrorMUTF7{Msg: "invalid modified-base64 byte in mailbox name"}
		}
		bits = bits<<6 | uint32(v)
		nbits += 6
		if nbits >= 16 {
			nbits -= 16
			units = append(units, uint16(bits>>nbits))
		}
	}
	runes := utf16.Decode(units)
	return string(runes), nil
}

// EncodeMailboxName encodes a plain Go string as an IMAP mailbox name in
// modified UTF-7.
func EncodeMailboxName(s string) string {
	var out strings.Builder
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '&' {
			out.WriteString("&-")
			i++
			continue
		}
		if r >= 0x20 && r <= 0x7e {
			out.WriteRune(r)
			i++
			continue
		}
		// accumulate a run of non-ASCII runes
		start := i
		for i < len(runes) && !(runes[i] >= 0x20 && runes[i] <= 0x7e) {
			i++
		}
		units := utf16.Encode(runes[start:i])
		out.WriteByte('&')
		out.WriteString(encodeMutf7Units(units))
		out.WriteByte('-')
	}
	return out.String()
}

func encodeMutf7Units(units []uint16) string {
	var out strings.Builder
	var bits uint32
	var nbits uint
	for _, u := range units {
		bits = bits<<16 | uint32(u)
		nbits += 16
		for nbits >= 6 {
			nbits -= 6
			out.WriteByte(mutf7Alphabet[(bits>>nbits)&0x3f])
		}
	}
	if nbits > 0 {
		out.WriteByte(mutf7Alphabet[(bits<<(6-nbits))&0x3f])
	}
	return out.String()
}

// ProtocolErrorMUTF7 is a narrow parse error for malformed modified-UTF-7
// mailbox names, kept distinct from the wire-level ProtocolError since it
// carries no raw response bytes.
type ProtocolErrorMUTF7 struct {
	Msg string
}

func (e *ProtocolErrorMUTF7) Error() string { return "imap: " + e.Msg }
