package pool_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/mailcore/internal/imap"
	"github.com/infodancer/mailcore/internal/pool"
	"github.com/infodancer/mailcore/internal/wire"
)

// fakeIMAPServer answers every tagged command with "<tag> OK done", which
// is enough to satisfy NOOP/LOGOUT probes without scripting exact replies.
func fakeIMAPServer(t *testing.T, conn net.Conn) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			tag := strings.Fields(line)[0]
			if _, err := conn.Write([]byte(tag + " OK done\r\n")); err != nil {
				return
			}
		}
	}()
}

func fakeIMAPEngine(t *testing.T) *imap.Engine {
	t.Helper()
	client, server := net.Pipe()
	fakeIMAPServer(t, server)
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	return imap.NewEngine(tr)
}

func TestIMAPPoolReusesValidatedConnection(t *testing.T) {
	dialCount := 0
	p := pool.NewIMAPPool(2, func(ctx context.Context) (*imap.Engine, error) {
		dialCount++
		return fakeIMAPEngine(t), nil
	})

	e1, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Put(e1)

	e2, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e2 != e1 {
		t.Error("expected the validated idle connection to be reused")
	}
	if dialCount != 1 {
		t.Errorf("dialCount = %d, want 1", dialCount)
	}
}

func TestIMAPPoolRejectsCheckoutBeyondMaxSize(t *testing.T) {
	p := pool.NewIMAPPool(1, func(ctx context.Context) (*imap.Engine, error) {
		return fakeIMAPEngine(t), nil
	})

	e1, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// e1 is still checked out: the live-connection cap of 1 is already
	// exhausted, so a second checkout must fail rather than dial.
	if _, err := p.Get(context.Background()); err != pool.ErrPoolAtCapacity {
		t.Errorf("expected ErrPoolAtCapacity, got %v", err)
	}

	p.Put(e1)

	// Releasing e1 returns it to the idle list; a subsequent checkout reuses it.
	e2, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get after release: %v", err)
	}
	if e2 != e1 {
		t.Error("expected the released connection to be reused")
	}
}

func TestIMAPPoolRejectsCheckoutAfterClose(t *testing.T) {
	p := pool.NewIMAPPool(2, func(ctx context.Context) (*imap.Engine, error) {
		return fakeIMAPEngine(t), nil
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Get(context.Background()); err != pool.ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}
