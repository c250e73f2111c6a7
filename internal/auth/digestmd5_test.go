package auth_test

import (
	"strings"
	"testing"

	"github.com/infodancer/mailcore/internal/auth"
)

func TestDigestMD5TwoRoundExchange(t *testing.T) {
	d := auth.NewDigestMD5("user", "secret", "imap/mail.example.com")
	if d.HasInitialResponse() {
		t.Fatal("DIGEST-MD5 must not have an initial response")
	}

	challenge := `realm="mail.example.com",nonce="OA6MG9tEQGm2hh",qop="auth",charset=utf-8,algorithm=md5-sess`
	resp, err := d.EvaluateChallenge([]byte(challenge))
	if err != nil {
		t.Fatalf("first EvaluateChallenge: %v", err)
	}
	if d.IsComplete() {
		t.Fatal("expected not complete after first round")
	}
	for _, want := range []string{`username="user"`, `realm="mail.example.com"`, `nonce="OA6MG9tEQGm2hh"`, "nc=00000001", "qop=auth", `digest-uri="imap/mail.example.com"`, "response="} {
		if !strings.Contains(string(resp), want) {
			t.Errorf("response %q missing %q", resp, want)
		}
	}

	final, err := d.EvaluateChallenge([]byte(`rspauth=6084c6db3fede373051988a14799a42c`))
	if err != nil {
		t.Fatalf("second EvaluateChallenge: %v", err)
	}
	if len(final) != 0 {
		t.Errorf("expected empty final response, got %q", final)
	}
	if !d.IsComplete() {
		t.Fatal("expected complete after second round")
	}
}
