package auth

import "golang.org/x/text/secure/precis"

// NormalizeUsername case-folds and normalizes a username per the PRECIS
// UsernameCaseMapped profile (RFC 8265), the same step foxcpp-maddy's
// imapsql storage layer applies to mailbox names before comparison. A
// username that fails the profile (disallowed codepoints, bidi violations)
// is returned unchanged — servers that accept it raw should still get a
// chance to authenticate rather than failing locally on a cosmetic check.
func NormalizeUsername(username string) string {
	normalized, err := precis.UsernameCaseMapped.CompareKey(username)
	if err != nil {
		return username
	}
	return normalized
}
