package authsvc

import (
	"sync"

	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/session"
)

// DummyProvider is an in-process session.Provider for tests and local dev:
// sign-in-state changes are scripted with Emit/EmitAbsent and delivered
// synchronously; sign-outs are recorded.
type DummyProvider struct {
	mu         sync.Mutex
	subs       map[int]func(*account.Identity)
	nextSub    int
	signOuts   int
	signOutErr error
}

var _ session.Provider = (*DummyProvider)(nil)

func NewDummyProvider() *DummyProvider {
	return &DummyProvider{subs: make(map[int]func(*account.Identity))}
}

func (p *DummyProvider) Subscribe(fn func(*account.Identity)) (func(), error) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}, nil
}

func (p *DummyProvider) SignOut() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return p.signOutErr
}

// Emit delivers a sign-in to all subscribers.
func (p *DummyProvider) Emit(identity account.Identity) {
	p.emit(&identity)
}

// EmitAbsent delivers a signed-out state to all subscribers.
func (p *DummyProvider) EmitAbsent() {
	p.emit(nil)
}

// FailSignOut makes subsequent SignOut calls return err.
func (p *DummyProvider) FailSignOut(err error) {
	p.mu.Lock()
	p.signOutErr = err
	p.mu.Unlock()
}

func (p *DummyProvider) SignOutCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func (p *DummyProvider) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *DummyProvider) emit(identity *account.Identity) {
	p.mu.Lock()
	fns := make([]func(*account.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
