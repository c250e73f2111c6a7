// Package mailcore is the client-side core of a mail protocol provider
// speaking POP3, IMAP4rev1, SMTP/ESMTP, and NNTP. It owns wire transport,
// parsing, and per-protocol command/response Engines; it never implements
// a server, a message store, or a MIME layer — those are the caller's
// responsibility, reached through the narrow collaborator interfaces in
// internal/mime and the credentials supplied to the constructors below.
package mailcore
