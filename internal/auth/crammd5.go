package auth

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
)

// CRAMMD5 implements the CRAM-MD5 SASL mechanism (RFC 2195). go-sasl has no
// client-side CRAM-MD5 implementation, so this is hand-written per spec
// §4.H: "HMAC-MD5 of challenge keyed by password, hex-encoded, prefixed by
// 'user '."
type CRAMMD5 struct {
	username string
	password string
	done     bool
}

// NewCRAMMD5 builds a CRAM-MD5 authenticator. It has no initial response:
// the server always sends the challenge first.
func NewCRAMMD5(username, password string) *CRAMMD5 {
	return &CRAMMD5{username: username, password: password}
}

func (c *CRAMMD5) Mechanism() string        { return "CRAM-MD5" }
func (c *CRAMMD5) HasInitialResponse() bool { return false }
func (c *CRAMMD5) IsComplete() bool         { return c.done }

func (c *CRAMMD5) EvaluateChallenge(challenge []byte) ([]byte, error) {
	mac := hmac.New(md5.New, []byte(c.password))
	mac.Write(challenge)
	digest := hex.EncodeToString(mac.Sum(nil))
	c.done = true
	return []byte(c.username + " " + digest), nil
}
