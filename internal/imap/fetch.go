package imap

import "time"

// FetchResponse is "* <n> FETCH (...)" — an ordered sequence of FetchItem
// values keyed by message sequence number (spec §3 "Fetch Item").
type FetchResponse struct {
	base
	SeqNum uint32
	Items  []FetchItem
}

func (FetchResponse) Kind() ResponseKind { return KindFetch }

// Envelope returns the first EnvelopeItem, or nil if none was fetched.
func (f FetchResponse) Envelope() *EnvelopeItem {
	for _, it := range f.Items {
		if e, ok := it.(EnvelopeItem); ok {
			return &e
		}
	}
	return nil
}

// BodySection returns the BodyItem whose Section matches, or nil.
// The Engine matches fetch items by type, not position, per spec §4.D.
func (f FetchResponse) BodySection(section string) *BodyItem {
	for _, it := range f.Items {
		if b, ok := it.(BodyItem); ok && b.Section == section {
			return &b
		}
	}
	return nil
}

// Flags returns the FlagsItem's flag list, or nil if flags weren't fetched.
func (f FetchResponse) Flags() []string {
	for _, it := range f.Items {
		if fl, ok := it.(FlagsItem); ok {
			return fl.Flags
		}
	}
	return nil
}

// UID returns the fetched UID, and whether one was present.
func (f FetchResponse) UID() (uint32, bool) {
	for _, it := range f.Items {
		if u, ok := it.(UIDItem); ok {
			return u.UID, true
		}
	}
	return 0, false
}

// FetchItem is the sealed sum type of one fetched data item (spec §3).
type FetchItem interface {
	fetchItem()
}

// EnvelopeItem is ENVELOPE, fields in the RFC 3501 strict order of spec §4.C.
type EnvelopeItem struct {
	Date        string
	Subject     string
	From        []Address
	Sender      []Address
	ReplyTo     []Address
	To          []Address
	CC          []Address
	BCC         []Address
	InReplyTo   string
	MessageID   string
}

func (EnvelopeItem) fetchItem() {}

// Address is one envelope address structure (name, source-route, mailbox,
// host), any field may be empty/NIL per RFC 3501.
type Address struct {
	Name    string
	Adl     string
	Mailbox string
	Host    string
}

// BodyItem is BODY[section]<offset.length> / BODY.PEEK[section]<...>.
type BodyItem struct {
	Section string
	Offset  int
	HasRange bool
	Data    []byte
	Peek    bool
}

func (BodyItem) fetchItem() {}

// BodyStructurePart is the sealed recursive structure of BODYSTRUCTURE.
type BodyStructurePart interface {
	bodyStructurePart()
}

// SinglePart is a non-multipart BODYSTRUCTURE leaf.
type SinglePart struct {
	Type        string
	Subtype     string
	Params      map[string]string
	ID          string
	Description string
	Encoding    string
	Size        int64
	Lines       int64 // set only for text/* parts; 0 for every other type
}

func (SinglePart) bodyStructurePart() {}

// MultiPart is a multipart BODYSTRUCTURE node.
type MultiPart struct {
	Parts   []BodyStructurePart
	Subtype string
}

func (MultiPart) bodyStructurePart() {}

// BodyStructureItem is BODYSTRUCTURE or BODY (non-bracketed, structural form).
type BodyStructureItem struct {
	Extended bool
	Part     BodyStructurePart
}

func (BodyStructureItem) fetchItem() {}

// InternalDateItem is INTERNALDATE.
type InternalDateItem struct {
	Time time.Time
	Raw  string
}

func (InternalDateItem) fetchItem() {}

// SizeItem is RFC822.SIZE.
type SizeItem struct {
	Size uint32
}

func (SizeItem) fetchItem() {}

// UIDItem is UID.
type UIDItem struct {
	UID uint32
}

func (UIDItem) fetchItem() {}

// TextItem is RFC822.TEXT / BODY[TEXT].
type TextItem struct {
	Data []byte
}

func (TextItem) fetchItem() {}

// HeaderItem is RFC822.HEADER / BODY[HEADER].
type HeaderItem struct {
	Data []byte
}

func (HeaderItem) fetchItem() {}

// FlagsItem is FLAGS (\Seen \Answered ...).
type FlagsItem struct {
	Flags []string
}

func (FlagsItem) fetchItem() {}
