package auth

import "github.com/emersion/go-sasl"

// NewPlain wraps go-sasl's PLAIN client (spec §4.H: "authzid NUL user NUL
// password, UTF-8"). identity defaults to username when empty, per spec's
// "authzid defaults to the username".
func NewPlain(identity, username, password string) (Authenticator, error) {
	if identity == "" {
		identity = username
	}
	return NewBridge(sasl.NewPlainClient(identity, username, password), 0)
}

// NewLogin wraps go-sasl's LOGIN client (spec §4.H: two-step "Username:" /
// "Password:" challenge exchange).
func NewLogin(username, password string) (Authenticator, error) {
	return NewBridge(sasl.NewLoginClient(username, password), 2)
}
