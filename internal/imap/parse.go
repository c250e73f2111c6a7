package imap

import (
	"strconv"
	"strings"
	"time"

	"github.com/infodancer/mailcore/internal/imap/parser"
)

// tstream is a one-token-pushback wrapper around parser.Lexer, giving the
// recursive-descent response parser the lookahead it needs (e.g. to tell
// a NIL address list from a parenthesized one) without teaching the Lexer
// itself about IMAP grammar.
type tstream struct {
	lex *parser.Lexer
	buf *parser.Token
}

func newTstream(lex *parser.Lexer) *tstream { return &tstream{lex: lex} }

func (t *tstream) next() (parser.Token, error) {
	if t.buf != nil {
		tok := *t.buf
		t.buf = nil
		return tok, nil
	}
	return t.lex.Next()
}

func (t *tstream) peek() (parser.Token, error) {
	if t.buf == nil {
		tok, err := t.lex.Next()
		if err != nil {
			return tok, err
		}
		t.buf = &tok
	}
	return *t.buf, nil
}

// formatError wraps a malformed-response detail so callers can still match
// ErrResponseFormat via errors.Is while keeping the offending detail in the
// message (spec §4.C: never substitute a default for a required field).
type formatError struct {
	msg string
}

func (e *formatError) Error() string  { return "imap: " + e.msg }
func (e *formatError) Unwrap() error  { return ErrResponseFormat }

func fail(msg string) error { return &formatError{msg: msg} }

// ParseResponse classifies and fully parses one complete raw IMAP response
// (as produced by parser.Reader.ReadResponse) into a typed Response value.
func ParseResponse(raw []byte) (Response, error) {
	lex := parser.NewLexer(raw)
	ts := newTstream(lex)

	first, err := ts.next()
	if err != nil {
		return nil, err
	}

	switch first.Type {
	case parser.TokPlus:
		return ContinuationResponse{base{raw}, lex.Remainder()}, nil
	case parser.TokStar:
		return parseUntagged(ts, lex, raw)
	case parser.TokAtom, parser.TokNumeric:
		return parseTagged(ts, lex, raw, first.String())
	default:
		return nil, fail("unrecognized response: " + string(raw))
	}
}

func parseTagged(ts *tstream, lex *parser.Lexer, raw []byte, tag string) (Response, error) {
	statusTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	status, ok := parseStatusWord(statusTok.String())
	if !ok {
		return nil, fail("unrecognized tagged status: " + statusTok.String())
	}
	start := lex.Pos()
	code, err := parseOptionalCode(ts)
	if err != nil {
		return nil, err
	}
	return TaggedResponse{base{raw}, tag, status, code, statusText(lex, raw, start, code)}, nil
}

// statusText returns the free-form text after a status word. When no
// response code is present, parseOptionalCode has already peeked the
// text's first word, so the text is taken from start instead of from the
// lexer's current position.
func statusText(lex *parser.Lexer, raw []byte, start int, code *ResponseCode) string {
	if code != nil {
		return lex.Remainder()
	}
	return strings.TrimRight(strings.TrimPrefix(string(raw[start:]), " "), "\r\n")
}

func parseStatusWord(s string) (Status, bool) {
	switch strings.ToUpper(s) {
	case "OK":
		return StatusOK, true
	case "NO":
		return StatusNo, true
	case "BAD":
		return StatusBad, true
	case "BYE":
		return StatusBye, true
	case "PREAUTH":
		return StatusPreauth, true
	default:
		return "", false
	}
}

func parseOptionalCode(ts *tstream) (*ResponseCode, error) {
	tok, err := ts.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != parser.TokBracketOpen {
		return nil, nil
	}
	_, _ = ts.next() // consume '['
	kwTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	code := &ResponseCode{Keyword: strings.ToUpper(kwTok.String())}
	for {
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokBracketClose {
			break
		}
		if tok.Type == parser.TokParenOpen {
			for {
				inner, err := ts.next()
				if err != nil {
					return nil, err
				}
				if inner.Type == parser.TokParenClose {
					break
				}
				code.Args = append(code.Args, inner.String())
			}
			continue
		}
		code.Args = append(code.Args, tok.String())
	}
	return code, nil
}

func parseUntagged(ts *tstream, lex *parser.Lexer, raw []byte) (Response, error) {
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}

	if tok.Type == parser.TokNumeric {
		num, _ := strconv.Atoi(tok.String())
		kwTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(kwTok.String()) {
		case "EXISTS":
			return SizeResponse{base{raw}, SizeExists, uint32(num)}, nil
		case "RECENT":
			return SizeResponse{base{raw}, SizeRecent, uint32(num)}, nil
		case "EXPUNGE":
			return SizeResponse{base{raw}, SizeExpunge, uint32(num)}, nil
		case "FETCH":
			return parseFetch(ts, raw, uint32(num))
		default:
			return nil, fail("unrecognized untagged numeric response: " + kwTok.String())
		}
	}

	if tok.Type != parser.TokAtom {
		return nil, fail("unrecognized untagged response: " + string(raw))
	}

	kw := strings.ToUpper(tok.String())
	switch kw {
	case "OK", "NO", "BAD", "BYE", "PREAUTH":
		status, _ := parseStatusWord(kw)
		start := lex.Pos()
		code, err := parseOptionalCode(ts)
		if err != nil {
			return nil, err
		}
		return UntaggedStatusResponse{base{raw}, status, code, statusText(lex, raw, start, code)}, nil
	case "CAPABILITY":
		return parseCapability(ts, raw)
	case "LIST":
		return parseMailboxList(ts, raw, false)
	case "LSUB":
		inner, err := parseMailboxList(ts, raw, true)
		if err != nil {
			return nil, err
		}
		return LsubResponse{inner.(MailboxListResponse)}, nil
	case "FLAGS":
		return parseFlagsResponse(ts, raw)
	case "STATUS":
		return parseStatusResponse(ts, raw)
	case "SEARCH":
		return parseSearchResponse(ts, raw)
	case "ACL":
		return parseACLResponse(ts, raw)
	case "LISTRIGHTS":
		return parseListRightsResponse(ts, raw)
	case "MYRIGHTS":
		return parseMyRightsResponse(ts, raw)
	case "QUOTAROOT":
		return parseQuotaRootResponse(ts, raw)
	case "QUOTA":
		return parseQuotaResponse(ts, raw)
	case "NAMESPACE":
		return parseNamespaceResponse(ts, raw)
	default:
		return nil, fail("unrecognized untagged keyword: " + kw)
	}
}

func parseCapability(ts *tstream, raw []byte) (Response, error) {
	c := CapabilityResponse{base: base{raw}, Args: map[string]string{}}
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokEOF {
			break
		}
		tok, _ = ts.next()
		// Capability names are matched whole (e.g. "AUTH=PLAIN" is looked up
		// as-is by Has), not split on '=' into a key/value pair — compound
		// AUTH=mechanism capabilities are just distinct advertised names.
		name := strings.ToUpper(tok.String())
		val := ""
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			val = name[eq+1:]
		}
		c.Names = append(c.Names, name)
		c.Args[name] = val
	}
	return c, nil
}

func parseMailboxList(ts *tstream, raw []byte, _ bool) (Response, error) {
	m := MailboxListResponse{base: base{raw}}
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != parser.TokParenOpen {
		return nil, fail("LIST: expected '(' attribute list")
	}
	for {
		inner, err := ts.next()
		if err != nil {
			return nil, err
		}
		if inner.Type == parser.TokParenClose {
			break
		}
		m.Attributes = append(m.Attributes, inner.String())
	}
	delimTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if delimTok.Type != parser.TokNil {
		m.Delimiter = delimTok.String()
	}
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	name, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	m.Mailbox = name
	return m, nil
}

func decodeMailboxToken(tok parser.Token) (string, error) {
	if tok.Type == parser.TokNil {
		return "", nil
	}
	return DecodeMailboxName(tok.String())
}

func parseFlagsResponse(ts *tstream, raw []byte) (Response, error) {
	flags, err := parseFlagList(ts)
	if err != nil {
		return nil, err
	}
	return FlagsResponse{base{raw}, flags}, nil
}

func parseFlagList(ts *tstream) ([]string, error) {
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != parser.TokParenOpen {
		return nil, fail("expected '(' flag list")
	}
	var flags []string
	for {
		inner, err := ts.next()
		if err != nil {
			return nil, err
		}
		if inner.Type == parser.TokParenClose {
			break
		}
		flags = append(flags, inner.String())
	}
	return flags, nil
}

func parseStatusResponse(ts *tstream, raw []byte) (Response, error) {
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	mbox, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokParenOpen {
		return nil, fail("STATUS: expected '(' attribute list")
	}
	attrs := map[string]int64{}
	for {
		nameTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if nameTok.Type == parser.TokParenClose {
			break
		}
		valTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseInt(valTok.String(), 10, 64)
		attrs[strings.ToUpper(nameTok.String())] = n
	}
	return StatusResponse{base{raw}, mbox, attrs}, nil
}

func parseSearchResponse(ts *tstream, raw []byte) (Response, error) {
	var nums []uint32
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokEOF {
			break
		}
		tok, _ = ts.next()
		n, _ := strconv.ParseUint(tok.String(), 10, 32)
		nums = append(nums, uint32(n))
	}
	return SearchResponse{base{raw}, nums}, nil
}

func parseACLResponse(ts *tstream, raw []byte) (Response, error) {
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	mbox, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	rights := map[string]string{}
	for {
		idTok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if idTok.Type == parser.TokEOF {
			break
		}
		idTok, _ = ts.next()
		rightsTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		rights[idTok.String()] = rightsTok.String()
	}
	return ACLResponse{base{raw}, mbox, rights}, nil
}

func parseListRightsResponse(ts *tstream, raw []byte) (Response, error) {
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	mbox, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	idTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	reqTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	var optional []string
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokEOF {
			break
		}
		tok, _ = ts.next()
		optional = append(optional, tok.String())
	}
	return ListRightsResponse{base{raw}, mbox, idTok.String(), reqTok.String(), optional}, nil
}

func parseMyRightsResponse(ts *tstream, raw []byte) (Response, error) {
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	mbox, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	rightsTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	return MyRightsResponse{base{raw}, mbox, rightsTok.String()}, nil
}

func parseQuotaRootResponse(ts *tstream, raw []byte) (Response, error) {
	mboxTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	mbox, err := decodeMailboxToken(mboxTok)
	if err != nil {
		return nil, err
	}
	var roots []string
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokEOF {
			break
		}
		tok, _ = ts.next()
		roots = append(roots, tok.String())
	}
	return QuotaRootResponse{base{raw}, mbox, roots}, nil
}

func parseQuotaResponse(ts *tstream, raw []byte) (Response, error) {
	rootTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokParenOpen {
		return nil, fail("QUOTA: expected '(' resource list")
	}
	resources := map[string]QuotaResourceUsage{}
	for {
		nameTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if nameTok.Type == parser.TokParenClose {
			break
		}
		usageTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		limitTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		usage, _ := strconv.ParseInt(usageTok.String(), 10, 64)
		limit, _ := strconv.ParseInt(limitTok.String(), 10, 64)
		resources[strings.ToUpper(nameTok.String())] = QuotaResourceUsage{usage, limit}
	}
	return QuotaResponse{base{raw}, rootTok.String(), resources}, nil
}

func parseNamespaceResponse(ts *tstream, raw []byte) (Response, error) {
	personal, err := parseNamespaceGroup(ts)
	if err != nil {
		return nil, err
	}
	other, err := parseNamespaceGroup(ts)
	if err != nil {
		return nil, err
	}
	shared, err := parseNamespaceGroup(ts)
	if err != nil {
		return nil, err
	}
	return NamespaceResponse{base{raw}, personal, other, shared}, nil
}

func parseNamespaceGroup(ts *tstream) ([]NamespaceDescriptor, error) {
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == parser.TokNil {
		return nil, nil
	}
	if tok.Type != parser.TokParenOpen {
		return nil, fail("NAMESPACE: expected '(' or NIL")
	}
	var descs []NamespaceDescriptor
	for {
		inner, err := ts.next()
		if err != nil {
			return nil, err
		}
		if inner.Type == parser.TokParenClose {
			break
		}
		if inner.Type != parser.TokParenOpen {
			return nil, fail("NAMESPACE: expected '(' descriptor")
		}
		prefixTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		delimTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		// drain any namespace extensions up to the closing paren
		for {
			end, err := ts.next()
			if err != nil {
				return nil, err
			}
			if end.Type == parser.TokParenClose {
				break
			}
		}
		delim := ""
		if delimTok.Type != parser.TokNil {
			delim = delimTok.String()
		}
		descs = append(descs, NamespaceDescriptor{Prefix: prefixTok.String(), Delimiter: delim})
	}
	return descs, nil
}

// parseFetch parses "(item item ...)" following "* <n> FETCH".
func parseFetch(ts *tstream, raw []byte, seq uint32) (Response, error) {
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokParenOpen {
		return nil, fail("FETCH: expected '(' item list")
	}
	var items []FetchItem
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokParenClose {
			_, _ = ts.next()
			break
		}
		item, err := parseFetchItem(ts)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return FetchResponse{base{raw}, seq, items}, nil
}

func parseFetchItem(ts *tstream) (FetchItem, error) {
	nameTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	name := strings.ToUpper(nameTok.String())
	switch {
	case name == "ENVELOPE":
		return parseEnvelope(ts)
	case name == "FLAGS":
		flags, err := parseFlagList(ts)
		if err != nil {
			return nil, err
		}
		return FlagsItem{flags}, nil
	case name == "INTERNALDATE":
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		t, _ := time.Parse("02-Jan-2006 15:04:05 -0700", tok.String())
		return InternalDateItem{Time: t, Raw: tok.String()}, nil
	case name == "RFC822.SIZE":
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseUint(tok.String(), 10, 32)
		return SizeItem{uint32(n)}, nil
	case name == "UID":
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseUint(tok.String(), 10, 32)
		return UIDItem{uint32(n)}, nil
	case name == "RFC822.TEXT":
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		return TextItem{tok.Value}, nil
	case name == "RFC822.HEADER":
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		return HeaderItem{tok.Value}, nil
	case name == "BODYSTRUCTURE":
		part, err := parseBodyStructure(ts)
		if err != nil {
			return nil, err
		}
		return BodyStructureItem{Extended: true, Part: part}, nil
	case name == "BODY":
		// "BODY" alone is the non-extended structure form; "BODY[section]"
		// (and "BODY.PEEK[section]" below) fetches a literal body part —
		// the Lexer tokenizes '[' separately, so the distinguishing token
		// is whatever comes next, not the atom itself.
		next, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if next.Type == parser.TokBracketOpen {
			return parseBodySection(ts, false)
		}
		part, err := parseBodyStructure(ts)
		if err != nil {
			return nil, err
		}
		return BodyStructureItem{Extended: false, Part: part}, nil
	case name == "BODY.PEEK":
		return parseBodySection(ts, true)
	default:
		return nil, fail("FETCH: unrecognized item " + name)
	}
}

// parseBodySection parses "[section]<offset>? nstring" following a BODY or
// BODY.PEEK atom, where the opening '[' has not yet been consumed.
func parseBodySection(ts *tstream, peek bool) (FetchItem, error) {
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokBracketOpen {
		return nil, fail("BODY: expected '['")
	}
	var sectionParts []string
	for {
		tok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokBracketClose {
			break
		}
		sectionParts = append(sectionParts, tok.String())
	}
	item := BodyItem{Section: strings.Join(sectionParts, " "), Peek: peek}

	next, err := ts.peek()
	if err != nil {
		return nil, err
	}
	if next.Type == parser.TokAtom && strings.HasPrefix(next.String(), "<") {
		rangeTok, _ := ts.next()
		s := strings.TrimSuffix(strings.TrimPrefix(rangeTok.String(), "<"), ">")
		offsetStr := s
		if dot := strings.IndexByte(s, '.'); dot >= 0 {
			offsetStr = s[:dot]
		}
		if n, err := strconv.Atoi(offsetStr); err == nil {
			item.Offset = n
			item.HasRange = true
		}
	}

	valTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if valTok.Type != parser.TokNil {
		item.Data = valTok.Value
	}
	return item, nil
}

func parseEnvelope(ts *tstream) (FetchItem, error) {
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokParenOpen {
		return nil, fail("ENVELOPE: expected '('")
	}
	env := EnvelopeItem{}
	date, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	env.Date = date
	subject, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	env.Subject = subject
	for _, dst := range []*[]Address{&env.From, &env.Sender, &env.ReplyTo, &env.To, &env.CC, &env.BCC} {
		addrs, err := parseAddressList(ts)
		if err != nil {
			return nil, err
		}
		*dst = addrs
	}
	inReplyTo, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	env.InReplyTo = inReplyTo
	msgID, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	env.MessageID = msgID
	close, err := ts.next()
	if err != nil {
		return nil, err
	}
	if close.Type != parser.TokParenClose {
		return nil, fail("ENVELOPE: expected ')'")
	}
	return env, nil
}

func parseNstring(ts *tstream) (string, error) {
	tok, err := ts.next()
	if err != nil {
		return "", err
	}
	if tok.Type == parser.TokNil {
		return "", nil
	}
	return tok.String(), nil
}

func parseAddressList(ts *tstream) ([]Address, error) {
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == parser.TokNil {
		return nil, nil
	}
	if tok.Type != parser.TokParenOpen {
		return nil, fail("address-list: expected '(' or NIL")
	}
	var out []Address
	for {
		inner, err := ts.next()
		if err != nil {
			return nil, err
		}
		if inner.Type == parser.TokParenClose {
			break
		}
		if inner.Type != parser.TokParenOpen {
			return nil, fail("address: expected '('")
		}
		name, err := parseNstring(ts)
		if err != nil {
			return nil, err
		}
		adl, err := parseNstring(ts)
		if err != nil {
			return nil, err
		}
		mailbox, err := parseNstring(ts)
		if err != nil {
			return nil, err
		}
		host, err := parseNstring(ts)
		if err != nil {
			return nil, err
		}
		closeTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if closeTok.Type != parser.TokParenClose {
			return nil, fail("address: expected ')'")
		}
		out = append(out, Address{name, adl, mailbox, host})
	}
	return out, nil
}

// parseBodyStructure parses a recursive BODYSTRUCTURE/BODY part. It rejects
// malformed structures with an error rather than substituting defaults for
// required fields (spec §4.C).
func parseBodyStructure(ts *tstream) (BodyStructurePart, error) {
	open, err := ts.next()
	if err != nil {
		return nil, err
	}
	if open.Type != parser.TokParenOpen {
		return nil, fail("BODYSTRUCTURE: expected '('")
	}

	first, err := ts.peek()
	if err != nil {
		return nil, err
	}
	if first.Type == parser.TokParenOpen {
		return parseMultipart(ts)
	}
	return parseSinglePart(ts)
}

func parseMultipart(ts *tstream) (BodyStructurePart, error) {
	var parts []BodyStructurePart
	for {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != parser.TokParenOpen {
			break
		}
		_, _ = ts.next()
		// recurse: re-wrap as if the '(' were just consumed by parseBodyStructure
		part, err := parseBodyStructureBody(ts)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	subtypeTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	// drain remaining extension data up to the closing paren
	if err := drainToParenClose(ts); err != nil {
		return nil, err
	}
	return MultiPart{Parts: parts, Subtype: subtypeTok.String()}, nil
}

// parseBodyStructureBody parses the body of a BODYSTRUCTURE part assuming
// the leading '(' has already been consumed by the caller.
func parseBodyStructureBody(ts *tstream) (BodyStructurePart, error) {
	first, err := ts.peek()
	if err != nil {
		return nil, err
	}
	if first.Type == parser.TokParenOpen {
		return parseMultipart(ts)
	}
	return parseSinglePart(ts)
}

func parseSinglePart(ts *tstream) (BodyStructurePart, error) {
	typeTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	subtypeTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	params, err := parseParamList(ts)
	if err != nil {
		return nil, err
	}
	id, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	desc, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	encoding, err := parseNstring(ts)
	if err != nil {
		return nil, err
	}
	sizeTok, err := ts.next()
	if err != nil {
		return nil, err
	}
	size, err := strconv.ParseInt(sizeTok.String(), 10, 64)
	if err != nil {
		return nil, fail("BODYSTRUCTURE: malformed size field")
	}

	part := SinglePart{
		Type:        strings.ToUpper(typeTok.String()),
		Subtype:     strings.ToUpper(subtypeTok.String()),
		Params:      params,
		ID:          id,
		Description: desc,
		Encoding:    encoding,
		Size:        size,
	}

	// text/* parts carry a trailing line count before any further extension
	// data; peek for a bare numeric immediately after. For message/rfc822
	// the envelope, nested body and line count are drained with the
	// extension data below, and Lines stays 0.
	if part.Type == "TEXT" {
		tok, err := ts.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == parser.TokNumeric {
			_, _ = ts.next()
			lines, _ := strconv.ParseInt(tok.String(), 10, 64)
			part.Lines = lines
		}
	}

	if err := drainToParenClose(ts); err != nil {
		return nil, err
	}
	return part, nil
}

func parseParamList(ts *tstream) (map[string]string, error) {
	tok, err := ts.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == parser.TokNil {
		return nil, nil
	}
	if tok.Type != parser.TokParenOpen {
		return nil, fail("BODYSTRUCTURE: expected param list")
	}
	params := map[string]string{}
	for {
		keyTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		if keyTok.Type == parser.TokParenClose {
			break
		}
		valTok, err := ts.next()
		if err != nil {
			return nil, err
		}
		params[strings.ToLower(keyTok.String())] = valTok.String()
	}
	return params, nil
}

// drainToParenClose consumes tokens (including nested parens) until the
// matching ')' for the current part is found, discarding any BODYSTRUCTURE
// extension data (MD5, disposition, language, location) this parser does
// not model explicitly.
func drainToParenClose(ts *tstream) error {
	depth := 0
	for {
		tok, err := ts.next()
		if err != nil {
			return err
		}
		switch tok.Type {
		case parser.TokParenOpen:
			depth++
		case parser.TokParenClose:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}
