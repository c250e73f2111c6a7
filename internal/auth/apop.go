package auth

import (
	"crypto/md5"
	"encoding/hex"
)

// APOPDigest computes the POP3 APOP digest (RFC 1939 §7): the lowercase hex
// MD5 of the greeting's timestamp banner concatenated with the shared
// secret, per spec §4.H: "user HEX(MD5(timestamp || password))". This is
// a POP3-specific path chosen before AUTH, not a SASL mechanism, so it has
// no Authenticator wrapper — pop3.Engine.APOP takes the digest directly.
func APOPDigest(timestamp, secret string) string {
	sum := md5.Sum([]byte(timestamp + secret))
	return hex.EncodeToString(sum[:])
}
