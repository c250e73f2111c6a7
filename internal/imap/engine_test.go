package imap_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/mailcore/internal/imap"
	"github.com/infodancer/mailcore/internal/wire"
)

// fakeServer reads scripted request lines and replies with the next canned
// response block, mirroring the teacher's sessionpipe_test.go harness but
// driven over a real net.Pipe so wire.Transport is exercised end-to-end.
func fakeServer(t *testing.T, conn net.Conn, script []string) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for _, resp := range script {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			if _, err := conn.Write([]byte(resp)); err != nil {
				return
			}
		}
		conn.Close()
	}()
}

func newEngine(t *testing.T) (*imap.Engine, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	return imap.NewEngine(tr), server
}

func TestEngineLoginAndCapability(t *testing.T) {
	e, server := newEngine(t)
	fakeServer(t, server, []string{
		"A0001 OK LOGIN completed\r\n",
		"* CAPABILITY IMAP4rev1 STARTTLS\r\nA0002 OK CAPABILITY completed\r\n",
	})

	if _, err := e.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	cap, err := e.Capability(context.Background())
	if err != nil {
		t.Fatalf("Capability: %v", err)
	}
	if !cap.Has("STARTTLS") {
		t.Errorf("capability set = %+v", cap)
	}
}

func TestEngineSelectTracksFolderState(t *testing.T) {
	e, server := newEngine(t)
	fakeServer(t, server, []string{
		"* 172 EXISTS\r\n* 1 RECENT\r\n* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n" +
			"A0001 OK [READ-WRITE] SELECT completed\r\n",
	})

	folder, err := e.Select(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if folder.Exists() != 172 || folder.Recent() != 1 {
		t.Errorf("folder = exists=%d recent=%d", folder.Exists(), folder.Recent())
	}
	if len(folder.Flags()) != 5 {
		t.Errorf("flags = %v", folder.Flags())
	}
}

func TestEngineCommandFailureSurfacesError(t *testing.T) {
	e, server := newEngine(t)
	fakeServer(t, server, []string{
		"A0001 NO [AUTHENTICATIONFAILED] invalid credentials\r\n",
	})

	_, err := e.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("expected error for NO response")
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("err = %v", err)
	}
}

func TestEngineUnsolicitedDispatchOrder(t *testing.T) {
	e, server := newEngine(t)
	fakeServer(t, server, []string{
		"* 5 EXISTS\r\n* 2 EXPUNGE\r\nA0001 OK NOOP completed\r\n",
	})

	var seen []string
	e.OnUnsolicited(imap.KindSize, func(r imap.Response) bool {
		s := r.(imap.SizeResponse)
		switch s.Event {
		case imap.SizeExists:
			seen = append(seen, "exists")
		case imap.SizeExpunge:
			seen = append(seen, "expunge")
		}
		return true
	})

	if err := e.Noop(context.Background()); err != nil {
		t.Fatalf("Noop: %v", err)
	}
	if len(seen) != 2 || seen[0] != "exists" || seen[1] != "expunge" {
		t.Errorf("dispatch order = %v, want [exists expunge]", seen)
	}
}

// TestEngineAppendAwaitsContinuation verifies that Append waits for the
// server's "+" before writing the literal message bytes, and that the
// literal length marker matches the message size.
func TestEngineAppendAwaitsContinuation(t *testing.T) {
	client, server := net.Pipe()
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	e := imap.NewEngine(tr)

	var sent []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(server)
		cmdLine, err := r.ReadString('\n')
		if err != nil {
			t.Errorf("server read cmd: %v", err)
			return
		}
		if !strings.Contains(cmdLine, "{11}") {
			t.Errorf("expected literal marker {11} in %q", cmdLine)
		}
		if _, err := server.Write([]byte("+ ready\r\n")); err != nil {
			return
		}
		buf := make([]byte, 11)
		if _, err := r.Read(buf); err != nil {
			t.Errorf("server read literal: %v", err)
			return
		}
		sent = buf
		if _, err := r.ReadString('\n'); err != nil { // trailing CRLF after literal
			return
		}
		_, _ = server.Write([]byte("A0001 OK APPEND completed\r\n"))
	}()

	if err := e.Append(context.Background(), "INBOX", nil, []byte("hello world")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	<-done
	if string(sent) != "hello world" {
		t.Errorf("server observed literal %q", sent)
	}
}

func TestEngineLogoutHandlesBye(t *testing.T) {
	e, server := newEngine(t)
	fakeServer(t, server, []string{
		"* BYE logging out\r\nA0001 OK LOGOUT completed\r\n",
	})

	if err := e.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}
