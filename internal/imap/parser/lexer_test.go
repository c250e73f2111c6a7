package parser

import "testing"

func collectTokens(t *testing.T, data string) []Token {
	t.Helper()
	l := NewLexer([]byte(data))
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Type == TokEOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestLexerBasicTokens(t *testing.T) {
	toks := collectTokens(t, "* 1 FETCH (FLAGS (\\Seen \\Deleted))\r\n")
	want := []TokenType{TokStar, TokNumeric, TokAtom, TokParenOpen, TokAtom, TokParenOpen, TokAtom, TokAtom, TokParenClose, TokParenClose}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got type %v want %v (%q)", i, toks[i].Type, tt, toks[i].Value)
		}
	}
	if string(toks[6].Value) != `\Seen` {
		t.Errorf("got %q", toks[6].Value)
	}
}

func TestLexerAuthEqualsIsOneAtom(t *testing.T) {
	toks := collectTokens(t, "AUTH=PLAIN\r\n")
	if len(toks) != 1 || toks[0].Type != TokAtom || string(toks[0].Value) != "AUTH=PLAIN" {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexerQuotedStringWithEscapes(t *testing.T) {
	toks := collectTokens(t, `"hello \"world\""`)
	if len(toks) != 1 || toks[0].Type != TokQuoted {
		t.Fatalf("got %+v", toks)
	}
	if string(toks[0].Value) != `hello "world"` {
		t.Fatalf("got %q", toks[0].Value)
	}
}

func TestLexerNil(t *testing.T) {
	toks := collectTokens(t, "NIL nil Nil")
	for _, tok := range toks {
		if tok.Type != TokNil {
			t.Errorf("got %+v", tok)
		}
	}
}

func TestLexerLiteral(t *testing.T) {
	data := "{24}\r\nSubject: hi\r\nDate: x\r\n\r\n)"
	l := NewLexer([]byte(data))
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokLiteral {
		t.Fatalf("got %+v", tok)
	}
	if string(tok.Value) != "Subject: hi\r\nDate: x\r\n\r\n" {
		t.Fatalf("got %q", tok.Value)
	}
	tok, err = l.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokParenClose {
		t.Fatalf("expected close paren after literal, got %+v", tok)
	}
}

func TestLexerNumericVsAtom(t *testing.T) {
	toks := collectTokens(t, "A0001 12345 ABC123")
	if toks[0].Type != TokAtom {
		t.Errorf("A0001 should be atom (has letters), got %v", toks[0].Type)
	}
	if toks[1].Type != TokNumeric {
		t.Errorf("12345 should be numeric, got %v", toks[1].Type)
	}
	if toks[2].Type != TokAtom {
		t.Errorf("ABC123 should be atom, got %v", toks[2].Type)
	}
}
