package imap

import "testing"

func TestDecodeMailboxName(t *testing.T) {
	cases := []struct {
		name    string
		encoded string
		want    string
	}{
		{"plain ascii", "INBOX", "INBOX"},
		{"escaped ampersand", "Foo&-Bar", "Foo&Bar"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DecodeMailboxName(c.encoded)
			if err != nil {
				t.Fatalf("DecodeMailboxName(%q): %v", c.encoded, err)
			}
			if got != c.want {
				t.Errorf("DecodeMailboxName(%q) = %q, want %q", c.encoded, got, c.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{"INBOX", "Sent Items", "日本語", "Foo&Bar", "Archive/2024"}
	for _, want := range cases {
		encoded := EncodeMailboxName(want)
		got, err := DecodeMailboxName(encoded)
		if err != nil {
			t.Fatalf("round trip %q: decode error: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip %q: got %q via encoded form %q", want, got, encoded)
		}
	}
}

func TestDecodeMailboxNameInvalidByte(t *testing.T) {
	if _, err := DecodeMailboxName("&!!!-"); err == nil {
		t.Fatal("expected error decoding invalid modified-base64 run")
	}
}
