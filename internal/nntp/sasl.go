package nntp

import "encoding/base64"

// encodeChallenge and decodeChallenge wrap the base64 framing AUTHINFO
// SASL uses for challenge/response payloads, the same helper shape as
// internal/pop3/sasl.go's EncodeSASLChallenge/DecodeSASLResponse.
func encodeChallenge(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeChallenge(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
