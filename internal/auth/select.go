package auth

import "strings"

// SelectOptions carries the credentials and policy Select needs to build
// whichever Authenticator it picks.
type SelectOptions struct {
	Username string
	Password string
	Identity string // authzid for PLAIN; defaults to Username when empty
	Token    string // OAuth2 bearer token, used only for XOAUTH2

	// DigestURI is the "<protocol>/<host>" string DIGEST-MD5 needs.
	DigestURI string

	// SASLEnable gates the SASL-bridge slot of the priority order.
	SASLEnable bool

	// SASLClient, when non-nil, is consulted for every advertised
	// mechanism before the fixed priority order runs; it returns a ready
	// Client and true if it can handle mech, else (nil, false).
	SASLClient func(mech string) (Client, bool)
}

// Select implements the fixed selection policy of spec §4.H: SASL bridge
// (if enabled and creation succeeds) → DIGEST-MD5 → CRAM-MD5 → LOGIN →
// PLAIN. XOAUTH2 is selected iff the effective list contains it,
// bypassing the default order entirely.
func Select(advertised []string, allow []string, opts SelectOptions) (Authenticator, error) {
	effective := intersect(advertised, allow)

	if contains(effective, "XOAUTH2") {
		return NewXOAUTH2(opts.Username, opts.Token), nil
	}

	if opts.SASLEnable && opts.SASLClient != nil {
		for _, mech := range effective {
			client, ok := opts.SASLClient(mech)
			if !ok {
				continue
			}
			if b, err := NewBridge(client, -1); err == nil {
				return b, nil
			}
		}
	}

	if contains(effective, "DIGEST-MD5") {
		return NewDigestMD5(opts.Username, opts.Password, opts.DigestURI), nil
	}
	if contains(effective, "CRAM-MD5") {
		return NewCRAMMD5(opts.Username, opts.Password), nil
	}
	if contains(effective, "LOGIN") {
		return NewLogin(opts.Username, opts.Password)
	}
	if contains(effective, "PLAIN") {
		return NewPlain(opts.Identity, opts.Username, opts.Password)
	}

	return nil, ErrNoMechanism
}

func intersect(advertised, allow []string) []string {
	allowed := map[string]bool{}
	for _, m := range allow {
		allowed[strings.ToUpper(m)] = true
	}
	var out []string
	for _, m := range advertised {
		if allowed[strings.ToUpper(m)] {
			out = append(out, strings.ToUpper(m))
		}
	}
	return out
}

func contains(list []string, name string) bool {
	for _, m := range list {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}
