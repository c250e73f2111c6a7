package wire

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
)

// SocketFactory abstracts how a Transport opens its underlying connection
// and, separately, how it wraps an existing connection in TLS. Replacing
// the reflection-loaded socket factory of older mail clients, a factory is
// either resolved by name from the package-level registry or supplied
// directly by the caller.
type SocketFactory interface {
	// Dial opens a plain connection to addr.
	Dial(ctx context.Context, network, addr string) (net.Conn, error)

	// WrapTLS performs a client-side TLS handshake over conn.
	WrapTLS(ctx context.Context, conn net.Conn, cfg *tls.Config) (*tls.Conn, error)
}

// defaultFactory dials with net.Dialer and wraps with crypto/tls.
type defaultFactory struct {
	localAddr net.Addr
}

func (f *defaultFactory) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{LocalAddr: f.localAddr}
	return d.DialContext(ctx, network, addr)
}

func (f *defaultFactory) WrapTLS(ctx context.Context, conn net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	tconn := tls.Client(conn, cfg)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tconn, nil
}

// DefaultFactory returns the stdlib-backed SocketFactory used when no
// factory name is configured.
func DefaultFactory() SocketFactory { return &defaultFactory{} }

var (
	registryMu sync.RWMutex
	registry   = map[string]SocketFactory{}
)

// RegisterSocketFactory makes a named factory available to Options.FactoryName.
// Typically called from an init() in a package that provides a custom
// dialer (SOCKS proxy, test harness, etc).
func RegisterSocketFactory(name string, f SocketFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// LookupSocketFactory resolves a factory previously registered with
// RegisterSocketFactory.
func LookupSocketFactory(name string) (SocketFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// resolveFactory implements the socketFactory.fallback=true behavior from
// spec §4.A: resolve the named factory, falling back once to the default
// factory on lookup failure when fallback is requested; otherwise surface
// the lookup failure.
func resolveFactory(name string, fallback bool) (SocketFactory, error) {
	if name == "" {
		return DefaultFactory(), nil
	}
	if f, ok := LookupSocketFactory(name); ok {
		return f, nil
	}
	if fallback {
		return DefaultFactory(), nil
	}
	return nil, ErrNoFactory
}
