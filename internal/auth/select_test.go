package auth_test

import (
	"testing"

	"github.com/infodancer/mailcore/internal/auth"
)

func TestSelectPicksPlainWhenCRAMMD5NotAllowed(t *testing.T) {
	a, err := auth.Select(
		[]string{"CRAM-MD5", "PLAIN"},
		[]string{"PLAIN", "LOGIN"},
		auth.SelectOptions{Username: "user", Password: "pass"},
	)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if a.Mechanism() != "PLAIN" {
		t.Fatalf("expected PLAIN, got %s", a.Mechanism())
	}
}

func TestSelectPrefersDigestMD5OverCRAMMD5(t *testing.T) {
	a, err := auth.Select(
		[]string{"PLAIN", "CRAM-MD5", "DIGEST-MD5"},
		[]string{"PLAIN", "CRAM-MD5", "DIGEST-MD5", "LOGIN"},
		auth.SelectOptions{Username: "user", Password: "pass", DigestURI: "imap/mail.example.com"},
	)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if a.Mechanism() != "DIGEST-MD5" {
		t.Fatalf("expected DIGEST-MD5, got %s", a.Mechanism())
	}
}

func TestSelectXOAUTH2BypassesDefaultOrder(t *testing.T) {
	a, err := auth.Select(
		[]string{"XOAUTH2", "DIGEST-MD5"},
		[]string{"XOAUTH2", "DIGEST-MD5"},
		auth.SelectOptions{Username: "user", Token: "tok"},
	)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if a.Mechanism() != "XOAUTH2" {
		t.Fatalf("expected XOAUTH2, got %s", a.Mechanism())
	}
}

func TestSelectReturnsErrNoMechanismWhenNoOverlap(t *testing.T) {
	_, err := auth.Select(
		[]string{"GSSAPI"},
		[]string{"PLAIN", "LOGIN"},
		auth.SelectOptions{Username: "user", Password: "pass"},
	)
	if err != auth.ErrNoMechanism {
		t.Fatalf("expected ErrNoMechanism, got %v", err)
	}
}
