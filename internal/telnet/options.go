package telnet

import "sync"

// OptionRegistry tracks local/remote option state and which option codes
// are still awaiting a peer response. Safe for concurrent use, though in
// practice only the session's own read loop touches it.
type OptionRegistry struct {
	mu            sync.Mutex
	local         map[byte]bool
	remote        map[byte]bool
	pendingLocal  map[byte]struct{}
	pendingRemote map[byte]struct{}
}

// NewOptionRegistry returns an empty registry; entries appear lazily on
// first negotiation or via Initialize.
func NewOptionRegistry() *OptionRegistry {
	return &OptionRegistry{
		local:         make(map[byte]bool),
		remote:        make(map[byte]bool),
		pendingLocal:  make(map[byte]struct{}),
		pendingRemote: make(map[byte]struct{}),
	}
}

// Initialize seeds both the local and remote maps with false for each code.
func (r *OptionRegistry) Initialize(codes []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range codes {
		r.local[c] = false
		r.remote[c] = false
	}
}

// SetLocal assigns the local option value and clears any pending marker.
func (r *OptionRegistry) SetLocal(code byte, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[code] = on
	delete(r.pendingLocal, code)
}

// SetRemote assigns the remote option value and clears any pending marker.
func (r *OptionRegistry) SetRemote(code byte, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote[code] = on
	delete(r.pendingRemote, code)
}

// MarkPendingLocal notes that we're waiting on the peer to answer a local
// option request.
func (r *OptionRegistry) MarkPendingLocal(code byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingLocal[code] = struct{}{}
}

// MarkPendingRemote notes that we're waiting on the peer to answer a
// remote option request.
func (r *OptionRegistry) MarkPendingRemote(code byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingRemote[code] = struct{}{}
}

func (r *OptionRegistry) IsLocalEnabled(code byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[code]
}

func (r *OptionRegistry) IsRemoteEnabled(code byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote[code]
}

func (r *OptionRegistry) IsLocalPending(code byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pendingLocal[code]
	return ok
}

func (r *OptionRegistry) IsRemotePending(code byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pendingRemote[code]
	return ok
}

// Status renders "<name>: local=<enabled|disabled>, remote=<enabled|disabled>".
func (r *OptionRegistry) Status(code byte) string {
	r.mu.Lock()
	local := r.local[code]
	remote := r.remote[code]
	r.mu.Unlock()
	return optionName(code) + ": local=" + boolWord(local) + ", remote=" + boolWord(remote)
}

func boolWord(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
