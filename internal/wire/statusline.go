package wire

import (
	"strconv"
	"strings"
)

// StatusLine is one line of an SMTP/NNTP numeric-code reply, possibly
// continued onto further lines ("250-" vs "250 ").
type StatusLine struct {
	Code        int
	Continued   bool
	Text        string
}

// ParseStatusLine parses a single SMTP/NNTP reply line of the form
// "250-PIPELINING" or "250 OK". Returns an error wrapped as ProtocolError
// if the line does not start with a three-digit code.
func ParseStatusLine(line string) (StatusLine, error) {
	if len(line) < 3 {
		return StatusLine{}, &ProtocolError{Msg: "reply line too short: " + line}
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return StatusLine{}, &ProtocolError{Msg: "malformed reply code: " + line, Err: err}
	}
	rest := line[3:]
	continued := strings.HasPrefix(rest, "-")
	text := strings.TrimPrefix(rest, "-")
	text = strings.TrimPrefix(text, " ")
	return StatusLine{Code: code, Continued: continued, Text: text}, nil
}

// ReadMultilineReply reads SMTP/NNTP-style reply lines until a
// non-continued line is seen, returning the final code and all text lines
// joined in arrival order.
func ReadMultilineReply(t *Transport) (int, []string, error) {
	var lines []string
	var code int
	for {
		raw, err := t.ReadLine()
		if err != nil {
			return 0, nil, err
		}
		sl, err := ParseStatusLine(raw)
		if err != nil {
			return 0, nil, err
		}
		code = sl.Code
		lines = append(lines, sl.Text)
		if !sl.Continued {
			break
		}
	}
	return code, lines, nil
}

// WordStatus is one POP3-style reply: "+OK", "-ERR", or the bare "+"
// continuation used mid-AUTH/APOP, plus whatever free text follows.
type WordStatus struct {
	OK           bool
	Continuation bool
	Text         string
}

// ParseWordStatus parses a single POP3 status line (spec §4.E). A bare "+"
// (no trailing OK) is a continuation/challenge line, not a success status.
func ParseWordStatus(line string) (WordStatus, error) {
	switch {
	case strings.HasPrefix(line, "+OK"):
		return WordStatus{OK: true, Text: strings.TrimSpace(strings.TrimPrefix(line, "+OK"))}, nil
	case strings.HasPrefix(line, "-ERR"):
		return WordStatus{OK: false, Text: strings.TrimSpace(strings.TrimPrefix(line, "-ERR"))}, nil
	case strings.HasPrefix(line, "+"):
		return WordStatus{Continuation: true, Text: strings.TrimSpace(strings.TrimPrefix(line, "+"))}, nil
	default:
		return WordStatus{}, &ProtocolError{Msg: "malformed POP3 status line: " + line}
	}
}
