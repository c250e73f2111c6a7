package pool_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/infodancer/mailcore/internal/pool"
	"github.com/infodancer/mailcore/internal/pop3"
	"github.com/infodancer/mailcore/internal/wire"
)

func fakePOP3Engine(t *testing.T) *pop3.Engine {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		server.Write([]byte("+OK ready\r\n"))
		buf := make([]byte, 512)
		for {
			n, err := server.Read(buf)
			if err != nil {
				return
			}
			_ = n
			server.Write([]byte("+OK\r\n"))
		}
	}()
	tr := wire.NewTransportForConn(client, wire.Options{Timeout: 2 * time.Second})
	e := pop3.NewEngine(tr)
	if _, err := e.ReadGreeting(context.Background()); err != nil {
		t.Fatalf("ReadGreeting: %v", err)
	}
	return e
}

func TestPOP3PoolReusesIdleConnection(t *testing.T) {
	dialCount := 0
	p := pool.NewPOP3Pool(func(ctx context.Context) (*pop3.Engine, error) {
		dialCount++
		return fakePOP3Engine(t), nil
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
		t.Error("expected the released connection to be reused")
	}
	if dialCount != 1 {
		t.Errorf("dialCount = %d, want 1", dialCount)
	}
}

func TestPOP3PoolClosesSecondConnectionWhenIdleSlotFull(t *testing.T) {
	p := pool.NewPOP3Pool(func(ctx context.Context) (*pop3.Engine, error) {
		return fakePOP3Engine(t), nil
	})

	e1, _ := p.Get(context.Background())
	e2, _ := p.Get(context.Background())

	p.Put(e1)
	p.Put(e2) // idle slot already occupied by e1; e2 is closed instead

	e3, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e3 != e1 {
		t.Error("expected e1 to remain the sole cached idle connection")
	}
}

func TestPOP3PoolRejectsCheckoutAfterClose(t *testing.T) {
	p := pool.NewPOP3Pool(func(ctx context.Context) (*pop3.Engine, error) {
		return fakePOP3Engine(t), nil
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Get(context.Background()); err != pool.ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}
