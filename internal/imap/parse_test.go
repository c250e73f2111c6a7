package imap

import "testing"

func mustParse(t *testing.T, raw string) Response {
	t.Helper()
	resp, err := ParseResponse([]byte(raw))
	if err != nil {
		t.Fatalf("ParseResponse(%q): %v", raw, err)
	}
	return resp
}

func TestParseContinuation(t *testing.T) {
	resp := mustParse(t, "+ ready for argument\r\n")
	c, ok := resp.(ContinuationResponse)
	if !ok {
		t.Fatalf("got %T, want ContinuationResponse", resp)
	}
	if c.Text != "ready for argument" {
		t.Errorf("Text = %q", c.Text)
	}
}

func TestParseTaggedOK(t *testing.T) {
	resp := mustParse(t, "A1 OK LOGIN completed\r\n")
	tagged, ok := resp.(TaggedResponse)
	if !ok {
		t.Fatalf("got %T, want TaggedResponse", resp)
	}
	if tagged.Tag != "A1" || tagged.Status != StatusOK || tagged.Text != "LOGIN completed" {
		t.Errorf("got %+v", tagged)
	}
}

func TestParseTaggedWithCode(t *testing.T) {
	resp := mustParse(t, "A2 OK [READ-WRITE] SELECT completed\r\n")
	tagged, ok := resp.(TaggedResponse)
	if !ok {
		t.Fatalf("got %T, want TaggedResponse", resp)
	}
	if tagged.Code == nil || tagged.Code.Keyword != "READ-WRITE" {
		t.Fatalf("Code = %+v", tagged.Code)
	}
	if tagged.Text != "SELECT completed" {
		t.Errorf("Text = %q", tagged.Text)
	}
}

func TestParsePermanentFlagsCode(t *testing.T) {
	resp := mustParse(t, "A3 OK [PERMANENTFLAGS (\\Seen \\Deleted)] done\r\n")
	tagged := resp.(TaggedResponse)
	if tagged.Code.Keyword != "PERMANENTFLAGS" {
		t.Fatalf("Keyword = %q", tagged.Code.Keyword)
	}
	want := []string{"\\Seen", "\\Deleted"}
	if len(tagged.Code.Args) != len(want) {
		t.Fatalf("Args = %v", tagged.Code.Args)
	}
	for i := range want {
		if tagged.Code.Args[i] != want[i] {
			t.Errorf("Args[%d] = %q, want %q", i, tagged.Code.Args[i], want[i])
		}
	}
}

func TestParseUntaggedStatus(t *testing.T) {
	resp := mustParse(t, "* OK [UIDVALIDITY 3857529045] UIDs valid\r\n")
	u, ok := resp.(UntaggedStatusResponse)
	if !ok {
		t.Fatalf("got %T, want UntaggedStatusResponse", resp)
	}
	if u.Status != StatusOK || u.Code.Keyword != "UIDVALIDITY" || u.Code.Args[0] != "3857529045" {
		t.Errorf("got %+v", u)
	}
}

func TestParseSizeEvents(t *testing.T) {
	cases := []struct {
		line string
		want SizeEvent
		n    uint32
	}{
		{"* 23 EXISTS\r\n", SizeExists, 23},
		{"* 3 RECENT\r\n", SizeRecent, 3},
		{"* 44 EXPUNGE\r\n", SizeExpunge, 44},
	}
	for _, c := range cases {
		resp := mustParse(t, c.line)
		s, ok := resp.(SizeResponse)
		if !ok {
			t.Fatalf("%q: got %T, want SizeResponse", c.line, resp)
		}
		if s.Event != c.want || s.Number != c.n {
			t.Errorf("%q: got %+v", c.line, s)
		}
	}
}

func TestParseCapability(t *testing.T) {
	resp := mustParse(t, "* CAPABILITY IMAP4rev1 STARTTLS AUTH=PLAIN AUTH=CRAM-MD5\r\n")
	c, ok := resp.(CapabilityResponse)
	if !ok {
		t.Fatalf("got %T, want CapabilityResponse", resp)
	}
	if !c.Has("STARTTLS") || !c.Has("AUTH=PLAIN") {
		t.Errorf("capability set = %+v", c)
	}
}

// TestParseFetchLiteralRoundTrip is spec end-to-end scenario 2: a FETCH
// response whose BODY[HEADER] item is an inline literal.
func TestParseFetchLiteralRoundTrip(t *testing.T) {
	raw := "* 1 FETCH (BODY[HEADER] {24}\r\nSubject: hi\r\nDate: x\r\n\r\n)\r\n"
	resp := mustParse(t, raw)
	f, ok := resp.(FetchResponse)
	if !ok {
		t.Fatalf("got %T, want FetchResponse", resp)
	}
	if f.SeqNum != 1 {
		t.Fatalf("SeqNum = %d", f.SeqNum)
	}
	body := f.BodySection("HEADER")
	if body == nil {
		t.Fatalf("no BODY[HEADER] item in %+v", f.Items)
	}
	want := "Subject: hi\r\nDate: x\r\n\r\n"
	if string(body.Data) != want {
		t.Errorf("body data = %q, want %q", body.Data, want)
	}
	if len(body.Data) != 24 {
		t.Errorf("body data length = %d, want 24", len(body.Data))
	}
}

func TestParseFetchEnvelopeAndFlags(t *testing.T) {
	raw := "* 2 FETCH (FLAGS (\\Seen) ENVELOPE (\"date\" \"subject\" ((\"A\" NIL \"a\" \"host\")) " +
		"((\"A\" NIL \"a\" \"host\")) NIL ((\"B\" NIL \"b\" \"host\")) NIL NIL NIL \"<msgid>\"))\r\n"
	resp := mustParse(t, raw)
	f, ok := resp.(FetchResponse)
	if !ok {
		t.Fatalf("got %T, want FetchResponse", resp)
	}
	if flags := f.Flags(); len(flags) != 1 || flags[0] != "\\Seen" {
		t.Errorf("Flags() = %v", flags)
	}
	env := f.Envelope()
	if env == nil {
		t.Fatalf("no envelope parsed")
	}
	if env.Subject != "subject" || env.MessageID != "<msgid>" {
		t.Errorf("env = %+v", env)
	}
	if len(env.From) != 1 || env.From[0].Mailbox != "a" {
		t.Errorf("From = %+v", env.From)
	}
	if len(env.To) != 1 || env.To[0].Mailbox != "b" {
		t.Errorf("To = %+v", env.To)
	}
}

func TestParseBodyStructureSinglePart(t *testing.T) {
	raw := `* 3 FETCH (BODYSTRUCTURE ("TEXT" "PLAIN" ("CHARSET" "US-ASCII") NIL NIL "7BIT" 1152 23))` + "\r\n"
	resp := mustParse(t, raw)
	f := resp.(FetchResponse)
	var bs *BodyStructureItem
	for _, it := range f.Items {
		if b, ok := it.(BodyStructureItem); ok {
			bs = &b
		}
	}
	if bs == nil {
		t.Fatalf("no BODYSTRUCTURE item")
	}
	sp, ok := bs.Part.(SinglePart)
	if !ok {
		t.Fatalf("Part = %T, want SinglePart", bs.Part)
	}
	if sp.Type != "TEXT" || sp.Subtype != "PLAIN" || sp.Size != 1152 || sp.Lines != 23 {
		t.Errorf("part = %+v", sp)
	}
	if sp.Params["charset"] != "US-ASCII" {
		t.Errorf("params = %+v", sp.Params)
	}
}

func TestParseBodyStructureMultipart(t *testing.T) {
	raw := `* 4 FETCH (BODYSTRUCTURE (("TEXT" "PLAIN" NIL NIL NIL "7BIT" 100 5)` +
		`("TEXT" "HTML" NIL NIL NIL "7BIT" 200 10) "ALTERNATIVE"))` + "\r\n"
	resp := mustParse(t, raw)
	f := resp.(FetchResponse)
	var bs *BodyStructureItem
	for _, it := range f.Items {
		if b, ok := it.(BodyStructureItem); ok {
			bs = &b
		}
	}
	if bs == nil {
		t.Fatalf("no BODYSTRUCTURE item")
	}
	mp, ok := bs.Part.(MultiPart)
	if !ok {
		t.Fatalf("Part = %T, want MultiPart", bs.Part)
	}
	if mp.Subtype != "ALTERNATIVE" || len(mp.Parts) != 2 {
		t.Fatalf("multipart = %+v", mp)
	}
	first := mp.Parts[0].(SinglePart)
	if first.Subtype != "PLAIN" {
		t.Errorf("first part subtype = %q", first.Subtype)
	}
}

func TestParseListAndLsub(t *testing.T) {
	resp := mustParse(t, "* LIST (\\HasNoChildren) \"/\" INBOX\r\n")
	l, ok := resp.(MailboxListResponse)
	if !ok {
		t.Fatalf("got %T, want MailboxListResponse", resp)
	}
	if l.Delimiter != "/" || l.Mailbox != "INBOX" || len(l.Attributes) != 1 {
		t.Errorf("got %+v", l)
	}

	resp2 := mustParse(t, "* LSUB () \".\" \"Archive\"\r\n")
	ls, ok := resp2.(LsubResponse)
	if !ok {
		t.Fatalf("got %T, want LsubResponse", resp2)
	}
	if ls.Mailbox != "Archive" || ls.Delimiter != "." {
		t.Errorf("got %+v", ls)
	}
}

func TestParseStatusResponse(t *testing.T) {
	resp := mustParse(t, "* STATUS INBOX (MESSAGES 231 UIDNEXT 44292)\r\n")
	s, ok := resp.(StatusResponse)
	if !ok {
		t.Fatalf("got %T, want StatusResponse", resp)
	}
	if s.Mailbox != "INBOX" || s.Attributes["MESSAGES"] != 231 || s.Attributes["UIDNEXT"] != 44292 {
		t.Errorf("got %+v", s)
	}
}

func TestParseSearchResponse(t *testing.T) {
	resp := mustParse(t, "* SEARCH 2 84 882\r\n")
	s, ok := resp.(SearchResponse)
	if !ok {
		t.Fatalf("got %T, want SearchResponse", resp)
	}
	want := []uint32{2, 84, 882}
	if len(s.Numbers) != len(want) {
		t.Fatalf("got %v", s.Numbers)
	}
	for i := range want {
		if s.Numbers[i] != want[i] {
			t.Errorf("Numbers[%d] = %d, want %d", i, s.Numbers[i], want[i])
		}
	}
}

func TestParseQuotaAndQuotaRoot(t *testing.T) {
	resp := mustParse(t, "* QUOTAROOT INBOX \"\"\r\n")
	qr, ok := resp.(QuotaRootResponse)
	if !ok {
		t.Fatalf("got %T, want QuotaRootResponse", resp)
	}
	if qr.Mailbox != "INBOX" || len(qr.QuotaRoots) != 1 {
		t.Errorf("got %+v", qr)
	}

	resp2 := mustParse(t, "* QUOTA \"\" (STORAGE 10 512)\r\n")
	q, ok := resp2.(QuotaResponse)
	if !ok {
		t.Fatalf("got %T, want QuotaResponse", resp2)
	}
	usage := q.Resources["STORAGE"]
	if usage.Usage != 10 || usage.Limit != 512 {
		t.Errorf("resources = %+v", q.Resources)
	}
}

func TestParseNamespace(t *testing.T) {
	resp := mustParse(t, `* NAMESPACE (("" "/")) NIL (("Other Users/" "/"))`+"\r\n")
	n, ok := resp.(NamespaceResponse)
	if !ok {
		t.Fatalf("got %T, want NamespaceResponse", resp)
	}
	if len(n.Personal) != 1 || n.Personal[0].Delimiter != "/" {
		t.Errorf("Personal = %+v", n.Personal)
	}
	if n.Other != nil {
		t.Errorf("Other = %+v, want nil", n.Other)
	}
	if len(n.Shared) != 1 || n.Shared[0].Prefix != "Other Users/" {
		t.Errorf("Shared = %+v", n.Shared)
	}
}

func TestParseMalformedResponseErrors(t *testing.T) {
	_, err := ParseResponse([]byte("* BOGUSKEYWORD foo\r\n"))
	if err == nil {
		t.Fatal("expected error for unrecognized untagged keyword")
	}
}
