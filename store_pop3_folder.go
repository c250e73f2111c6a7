package mailcore

import (
	"context"
	"sync"

	"github.com/infodancer/mailcore/internal/pop3"
)

// POP3Folder is either the dummy root (no messages) or the INBOX, the only
// real POP3 folder (spec §3 "Folder"). A root Folder never borrows a
// connection; an INBOX Folder holds one borrowed connection for the
// lifetime of its Messages/Close cycle.
type POP3Folder struct {
	store  *POP3Store
	engine *pop3.Engine
	root   bool
}

// Root returns the dummy root Folder, which carries no messages and no
// connection.
func (s *POP3Store) Root() *POP3Folder {
	return &POP3Folder{store: s, root: true}
}

// Inbox borrows a connection and returns the Folder bound to it. The
// Folder must eventually be closed to return its connection to the pool.
func (s *POP3Store) Inbox(ctx context.Context) (*POP3Folder, error) {
	e, err := s.Borrow(ctx)
	if err != nil {
		return nil, err
	}
	return &POP3Folder{store: s, engine: e}, nil
}

// Name returns "" for the root Folder, "INBOX" otherwise.
func (f *POP3Folder) Name() string {
	if f.root {
		return ""
	}
	return "INBOX"
}

// Close releases this Folder's connection back to the pool. A no-op on the
// root Folder, which never borrowed one.
func (f *POP3Folder) Close(ctx context.Context) error {
	if f.engine == nil {
		return nil
	}
	f.store.Release(f.engine)
	f.engine = nil
	return nil
}

// Messages returns one Message Reference per message currently in the
// mailbox (spec §3: "index 1..N into the currently open folder"). The root
// Folder always returns an empty slice.
func (f *POP3Folder) Messages(ctx context.Context) ([]*POP3Message, error) {
	if f.root {
		return nil, nil
	}
	count, _, err := f.engine.Stat(ctx)
	if err != nil {
		return nil, err
	}
	messages := make([]*POP3Message, count)
	for i := range messages {
		messages[i] = &POP3Message{folder: f, index: i + 1}
	}
	return messages, nil
}

// POP3Message is a Message Reference (spec §3): an index into the open
// Folder with lazily populated headers, content, size, uid, and deleted
// flag. Every accessor fetches on first use and caches the result on the
// Message for the Folder's lifetime, except Headers when the owning
// Store's ForgetTopHeaders option is set.
type POP3Message struct {
	folder *POP3Folder
	index  int

	mu               sync.Mutex
	totalSize        *int64
	headersByteCount *int64
	headers          []byte
	headersRetained  bool
	content          []byte
	uid              string
	deleted          bool
}

// Index returns this Message's 1-based position in its Folder.
func (m *POP3Message) Index() int { return m.index }

// TotalSize returns the message's full on-the-wire size in octets, as
// reported by LIST, regardless of whether headers have been separated out
// yet.
func (m *POP3Message) TotalSize(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalSize != nil {
		return *m.totalSize, nil
	}
	size, err := m.folder.engine.ListOne(ctx, m.index)
	if err != nil {
		return 0, err
	}
	m.totalSize = &size
	return size, nil
}

// Headers returns the message's header block via TOP 0. When the owning
// Store was built with ForgetTopHeaders, the bytes are returned but not
// retained on the Message — only headersByteCount survives, so Size stays
// cheap while repeated Headers calls each cost a fresh TOP round trip.
func (m *POP3Message) Headers(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headersRetained {
		return m.headers, nil
	}
	h, err := m.folder.engine.Top(ctx, m.index, 0)
	if err != nil {
		return nil, err
	}
	n := int64(len(h))
	m.headersByteCount = &n
	if !m.folder.store.forgetTopHeaders {
		m.headers = h
		m.headersRetained = true
	}
	return h, nil
}

// Size returns totalServerSize − headersByteCount (spec §3's Message
// Reference invariant): the body-only byte count callers see once headers
// have been separated out.
func (m *POP3Message) Size(ctx context.Context) (int64, error) {
	total, err := m.TotalSize(ctx)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	needHeaders := m.headersByteCount == nil
	m.mu.Unlock()
	if needHeaders {
		if _, err := m.Headers(ctx); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return total - *m.headersByteCount, nil
}

// Content returns the full message body via RETR, caching it on first
// fetch.
func (m *POP3Message) Content(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.content != nil {
		return m.content, nil
	}
	c, err := m.folder.engine.Retr(ctx, m.index)
	if err != nil {
		return nil, err
	}
	m.content = c
	return c, nil
}

// UID returns the message's persistent unique ID via UIDL, caching it on
// first fetch.
func (m *POP3Message) UID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uid != "" {
		return m.uid, nil
	}
	uid, err := m.folder.engine.UIDLOne(ctx, m.index)
	if err != nil {
		return "", err
	}
	m.uid = uid
	return uid, nil
}

// Deleted reports whether Delete has been called on this Message.
func (m *POP3Message) Deleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted
}

// Delete stages the message for deletion via DELE; the deletion only takes
// effect once the session commits via QUIT.
func (m *POP3Message) Delete(ctx context.Context) error {
	if err := m.folder.engine.Dele(ctx, m.index); err != nil {
		return err
	}
	m.mu.Lock()
	m.deleted = true
	m.mu.Unlock()
	return nil
}
