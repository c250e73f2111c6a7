package smtp_test

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/mailcore/internal/mime"
	"github.com/infodancer/mailcore/internal/smtp"
	"github.com/infodancer/mailcore/internal/wire"
)

type fakePart struct {
	ct, cte string
	content []byte
}

func (p *fakePart) ContentType() string      { return p.ct }
func (p *fakePart) TransferEncoding() string { return p.cte }
func (p *fakePart) Reader() io.Reader        { return bytes.NewReader(p.content) }
func (p *fakePart) SetTransferEncoding(encoding string, content io.Reader) {
	p.cte = encoding
	b, _ := io.ReadAll(content)
	p.content = b
}

func newEngine(t *testing.T) (*smtp.Engine, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	return smtp.NewEngine(tr, 2*time.Second), server
}

// TestEngineSendTwoRecipientsOneInvalid exercises spec §8 scenario 4: two
// RCPT TO, first 250 second 550; DATA still proceeds and the message is
// accepted, and the returned status vector preserves both outcomes in order.
func TestEngineSendTwoRecipientsOneInvalid(t *testing.T) {
	e, server := newEngine(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(server)
		write := func(s string) { server.Write([]byte(s)) }

		write("220 mail.example.com ESMTP ready\r\n")

		line, _ := r.ReadString('\n')
		if !strings.HasPrefix(line, "EHLO") {
			t.Errorf("expected EHLO, got %q", line)
		}
		write("250-mail.example.com\r\n250 8BITMIME\r\n")

		line, _ = r.ReadString('\n')
		if !strings.HasPrefix(line, "MAIL FROM:<sender@example.com>") {
			t.Errorf("expected MAIL FROM, got %q", line)
		}
		write("250 OK\r\n")

		line, _ = r.ReadString('\n')
		if !strings.Contains(line, "RCPT TO:<good@example.com>") {
			t.Errorf("expected first RCPT, got %q", line)
		}
		write("250 OK\r\n")

		line, _ = r.ReadString('\n')
		if !strings.Contains(line, "RCPT TO:<bad@example.com>") {
			t.Errorf("expected second RCPT, got %q", line)
		}
		write("550 no such user\r\n")

		line, _ = r.ReadString('\n')
		if !strings.HasPrefix(line, "DATA") {
			t.Errorf("expected DATA, got %q", line)
		}
		write("354 go ahead\r\n")

		for {
			l, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if l == ".\r\n" {
				break
			}
		}
		write("250 message accepted\r\n")

		line, _ = r.ReadString('\n')
		if !strings.HasPrefix(line, "QUIT") {
			t.Errorf("expected QUIT, got %q", line)
		}
		write("221 bye\r\n")
	}()

	if err := e.Handshake(context.Background(), "client.example.com", false); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	msg := &mime.Message{
		From: "sender@example.com",
		To:   []string{"good@example.com", "bad@example.com"},
		Parts: []mime.Part{
			&fakePart{ct: "text/plain", cte: "7bit", content: []byte("hello\r\n")},
		},
	}
	statuses, err := e.Send(context.Background(), msg, smtp.SendOptions{Allow8BitMime: true, QuitWait: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-done

	if len(statuses) != 2 {
		t.Fatalf("statuses = %+v, want 2 entries", statuses)
	}
	if statuses[0].Result != smtp.ResultSuccess {
		t.Errorf("statuses[0] = %+v, want success", statuses[0])
	}
	if statuses[1].Result != smtp.ResultInvalidAddress {
		t.Errorf("statuses[1] = %+v, want invalidAddress", statuses[1])
	}
}

func TestEngineHandshakeFallsBackToHELO(t *testing.T) {
	e, server := newEngine(t)
	go func() {
		r := bufio.NewReader(server)
		server.Write([]byte("220 ready\r\n"))
		line, _ := r.ReadString('\n')
		if !strings.HasPrefix(line, "EHLO") {
			t.Errorf("expected EHLO, got %q", line)
		}
		server.Write([]byte("500 command not recognized\r\n"))
		line, _ = r.ReadString('\n')
		if !strings.HasPrefix(line, "HELO") {
			t.Errorf("expected HELO fallback, got %q", line)
		}
		server.Write([]byte("250 OK\r\n"))
	}()

	if err := e.Handshake(context.Background(), "client.example.com", false); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
}
