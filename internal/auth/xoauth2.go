package auth

// XOAUTH2 implements the XOAUTH2 mechanism (Google/Microsoft OAuth2
// bridge). go-sasl has no client-side XOAUTH2 implementation, so this is
// hand-written per spec §4.H: "user=<u>\x01auth=Bearer <token>\x01\x01,
// UTF-8". It selection-bypasses the default priority order whenever the
// effective mechanism list contains it (spec §4.H).
type XOAUTH2 struct {
	username string
	token    string
	done     bool
}

// NewXOAUTH2 builds an XOAUTH2 authenticator.
func NewXOAUTH2(username, token string) *XOAUTH2 {
	return &XOAUTH2{username: username, token: token}
}

func (x *XOAUTH2) Mechanism() string        { return "XOAUTH2" }
func (x *XOAUTH2) HasInitialResponse() bool { return true }
func (x *XOAUTH2) IsComplete() bool         { return x.done }

func (x *XOAUTH2) EvaluateChallenge([]byte) ([]byte, error) {
	x.done = true
	return []byte("user=" + x.username + "\x01auth=Bearer " + x.token + "\x01\x01"), nil
}
