package imap

import "context"

// Folder is a mailbox selected via SELECT/EXAMINE, borrowed from its owning
// Engine/Pool for the lifetime of one request (spec §4.I borrow-per-request
// semantics). It caches the SELECT/EXAMINE response data (EXISTS, RECENT,
// FLAGS, PERMANENTFLAGS) rather than re-querying the server for them.
type Folder struct {
	engine *Engine

	name     string
	writable bool

	exists         uint32
	recent         uint32
	flags          []string
	permanentFlags []string

	// separator is lazily discovered via LIST, since SELECT/EXAMINE do not
	// themselves report the hierarchy delimiter (spec §3 "Folder" entity).
	separator     string
	separatorKnown bool
}

// Name returns the full mailbox name this Folder was opened against.
func (f *Folder) Name() string { return f.name }

// Writable reports whether this Folder was opened via SELECT (true) or
// EXAMINE (false).
func (f *Folder) Writable() bool { return f.writable }

// Exists returns the EXISTS count observed at open time.
func (f *Folder) Exists() uint32 { return f.exists }

// Recent returns the RECENT count observed at open time.
func (f *Folder) Recent() uint32 { return f.recent }

// Flags returns the permitted session flags reported by the SELECT/EXAMINE
// FLAGS response.
func (f *Folder) Flags() []string { return f.flags }

// PermanentFlags returns the flags the client may permanently set, from the
// tagged response's [PERMANENTFLAGS (...)] code, or nil if the server did
// not report one (all session flags are then assumed permanent).
func (f *Folder) PermanentFlags() []string { return f.permanentFlags }

// Separator discovers and caches the mailbox hierarchy delimiter via LIST
// "" name, per spec §3's lazy-discovery note.
func (f *Folder) Separator(ctx context.Context) (string, error) {
	if f.separatorKnown {
		return f.separator, nil
	}
	listed, err := f.engine.List(ctx, "", f.name)
	if err != nil {
		return "", err
	}
	if len(listed) > 0 {
		f.separator = listed[0].Delimiter
	}
	f.separatorKnown = true
	return f.separator, nil
}

// Close expunges any \Deleted-flagged messages (if writable) and clears the
// Engine's selected-folder state, returning the connection to its
// unselected ("authenticated") state per spec §4.D.
func (f *Folder) Close(ctx context.Context) error {
	if _, err := f.engine.Command(ctx, "CLOSE"); err != nil {
		return err
	}
	if f.engine.selected == f {
		f.engine.selected = nil
	}
	return nil
}

// Expunge issues EXPUNGE against this Folder's Engine.
func (f *Folder) Expunge(ctx context.Context) error {
	return f.engine.Expunge(ctx)
}
