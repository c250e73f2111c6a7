package parser

import (
	"bufio"
	"strings"
	"testing"
)

func TestReaderResolvesInlineLiteral(t *testing.T) {
	// Scenario 2 from spec §8: a FETCH response whose literal payload
	// itself contains CRLFs, followed by the closing paren and the tagged
	// OK on the next physical line.
	wire := "* 1 FETCH (BODY[HEADER] {24}\r\nSubject: hi\r\nDate: x\r\n\r\n)\r\nA1 OK FETCH completed\r\n"
	lr := NewBufioLineReader(bufio.NewReader(strings.NewReader(wire)))
	r := NewReader(lr)

	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	want := "* 1 FETCH (BODY[HEADER] {24}\r\nSubject: hi\r\nDate: x\r\n\r\n)\r\n"
	if string(resp) != want {
		t.Fatalf("got %q want %q", resp, want)
	}

	tagged, err := r.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse (tagged): %v", err)
	}
	if string(tagged) != "A1 OK FETCH completed\r\n" {
		t.Fatalf("got %q", tagged)
	}
}

func TestReaderPlainLineNoLiteral(t *testing.T) {
	lr := NewBufioLineReader(bufio.NewReader(strings.NewReader("A1 OK LOGIN completed\r\n")))
	r := NewReader(lr)
	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(resp) != "A1 OK LOGIN completed\r\n" {
		t.Fatalf("got %q", resp)
	}
}

func TestLiteralLength(t *testing.T) {
	cases := []struct {
		line string
		n    int
		ok   bool
	}{
		{"* OK [CAPABILITY IMAP4rev1] ready", 0, false},
		{"a {10}", 10, true},
		{"a {10+}", 10, true},
		{"{0}", 0, true},
	}
	for _, c := range cases {
		n, ok := literalLength(c.line)
		if ok != c.ok || n != c.n {
			t.Errorf("literalLength(%q) = (%d,%v), want (%d,%v)", c.line, n, ok, c.n, c.ok)
		}
	}
}
