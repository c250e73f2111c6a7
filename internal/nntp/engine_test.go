package nntp_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/mailcore/internal/nntp"
	"github.com/infodancer/mailcore/internal/wire"
)

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

func newEngine(t *testing.T, greeting string) (*nntp.Engine, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	go server.Write([]byte(greeting))
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	e := nntp.NewEngine(tr, 2*time.Second)
	if err := e.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	return e, server
}

func TestHandshakeClassifiesPostingAllowed(t *testing.T) {
	e, _ := newEngine(t, "200 news.example.com ready, posting allowed\r\n")
	if !e.PostingAllowed {
		t.Error("expected PostingAllowed = true for 200")
	}
}

func TestHandshakeClassifiesReadOnly(t *testing.T) {
	e, _ := newEngine(t, "201 news.example.com ready, no posting\r\n")
	if e.PostingAllowed {
		t.Error("expected PostingAllowed = false for 201")
	}
}

func TestListExtensions(t *testing.T) {
	e, server := newEngine(t, "200 ready\r\n")
	fakeServer(t, server, []string{
		"215 Extensions supported:\r\nOVER\r\nHDR\r\n.\r\n",
	})
	if err := e.ListExtensions(context.Background()); err != nil {
		t.Fatalf("ListExtensions: %v", err)
	}
	if !e.HasExtension("OVER") || !e.HasExtension("HDR") {
		t.Errorf("extensions = %+v", e.Extensions)
	}
}

func TestAuthInfoUserPassWithoutPasswordPrompt(t *testing.T) {
	e, server := newEngine(t, "200 ready\r\n")
	fakeServer(t, server, []string{
		"281 authenticated\r\n",
	})
	if err := e.AuthInfoUserPass(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("AuthInfoUserPass: %v", err)
	}
}

func TestAuthInfoUserPassPromptsForPassword(t *testing.T) {
	e, server := newEngine(t, "200 ready\r\n")
	go func() {
		r := bufio.NewReader(server)
		line, _ := r.ReadString('\n')
		if !strings.Contains(line, "AUTHINFO USER alice") {
			t.Errorf("expected AUTHINFO USER, got %q", line)
		}
		server.Write([]byte("381 password required\r\n"))
		line, _ = r.ReadString('\n')
		if !strings.Contains(line, "AUTHINFO PASS secret") {
			t.Errorf("expected AUTHINFO PASS, got %q", line)
		}
		server.Write([]byte("281 authenticated\r\n"))
	}()
	if err := e.AuthInfoUserPass(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("AuthInfoUserPass: %v", err)
	}
}

func TestPostUsesDotStuffingAndTerminator(t *testing.T) {
	e, server := newEngine(t, "200 ready\r\n")
	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(server)
		line, _ := r.ReadString('\n')
		if !strings.HasPrefix(line, "POST") {
			t.Errorf("expected POST, got %q", line)
		}
		server.Write([]byte("340 send article\r\n"))
		var bodyLines []string
		for {
			l, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if l == ".\r\n" {
				break
			}
			bodyLines = append(bodyLines, l)
		}
		if len(bodyLines) != 2 || bodyLines[1] != "..leading dot\r\n" {
			t.Errorf("body lines = %q", bodyLines)
		}
		server.Write([]byte("240 article posted\r\n"))
	}()

	article := []byte("Subject: hi\r\n.leading dot\r\n")
	if err := e.Post(context.Background(), article); err != nil {
		t.Fatalf("Post: %v", err)
	}
	<-done
}
