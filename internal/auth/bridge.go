package auth

// Client is the minimal client-side SASL contract this package bridges
// against — the same shape as github.com/emersion/go-sasl's Client
// interface, kept local so this package never imports go-sasl directly
// except in plain.go, where the PLAIN and LOGIN constructors live.
type Client interface {
	Start() (mech string, ir []byte, err error)
	Next(challenge []byte) (response []byte, err error)
}

// Bridge adapts a Client (a go-sasl client or a caller-supplied
// implementation) into Authenticator — the "SASL bridge" of the selection
// order (spec §4.H). Client hides how many Next rounds a mechanism needs,
// so the constructor is told up front: PLAIN and XOAUTH2 finish with their
// initial response alone (rounds=0), LOGIN needs two Next calls
// (Username:/Password:, rounds=2).
type Bridge struct {
	client  Client
	mech    string
	ir      []byte
	hasIR   bool
	started bool
	rounds  int
	done    bool
}

// NewBridge starts the client to learn its mechanism name and initial
// response, then wraps it. rounds is the number of EvaluateChallenge calls
// expected after the initial response (0 if none) before IsComplete.
func NewBridge(client Client, rounds int) (*Bridge, error) {
	mech, ir, err := client.Start()
	if err != nil {
		return nil, err
	}
	b := &Bridge{client: client, mech: mech, ir: ir, hasIR: ir != nil, rounds: rounds}
	if b.hasIR && rounds == 0 {
		b.done = false // not yet evaluated; EvaluateChallenge marks done on first call
	}
	return b, nil
}

func (b *Bridge) Mechanism() string        { return b.mech }
func (b *Bridge) HasInitialResponse() bool { return b.hasIR }
func (b *Bridge) IsComplete() bool         { return b.done }

func (b *Bridge) EvaluateChallenge(challenge []byte) ([]byte, error) {
	if !b.started {
		b.started = true
		if b.hasIR {
			if b.rounds == 0 {
				b.done = true
			}
			return b.ir, nil
		}
	}
	resp, err := b.client.Next(challenge)
	if err != nil {
		return nil, err
	}
	if b.rounds > 0 {
		b.rounds--
	}
	if b.rounds == 0 {
		b.done = true
	}
	return resp, nil
}
