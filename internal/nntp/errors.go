package nntp

import (
	"errors"
	"strconv"
)

// Client-side NNTP protocol errors (spec §4.G, §7).
var (
	// ErrAuthFailed is returned when every AUTHINFO attempt is rejected.
	ErrAuthFailed = errors.New("nntp: authentication failed")

	// ErrCommandFailed is the sentinel every CommandFailedError wraps.
	ErrCommandFailed = errors.New("nntp: command failed")
)

// CommandFailedError wraps a rejected NNTP reply with its numeric code and
// text for diagnosis.
type CommandFailedError struct {
	Command string
	Code    int
	Text    string
}

func (e *CommandFailedError) Error() string {
	return "nntp: " + e.Command + " failed: " + strconv.Itoa(e.Code) + " " + e.Text
}

func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }
