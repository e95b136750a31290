package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/plan"
)

// State of the session store. Loading is the sole initial state.
type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

type (
	// Provider is the external auth provider boundary. Subscribe yields the
	// identity (or nil when signed out) on every sign-in-state change; the
	// returned func unsubscribes. SignOut invalidates the remote session,
	// best-effort.
	Provider interface {
		Subscribe(fn func(*account.Identity)) (func(), error)
		SignOut() error
	}

	// AccessResolver resolves an identity's role/tier/capabilities.
	// Implemented by account.Service.
	AccessResolver interface {
		ResolveAccess(ctx context.Context, identity account.Identity) account.Access
	}

	// Snapshot is a consistent read of the store's state. ProfilePending is
	// true between a sign-in and the completion of the profile fetch; role
	// and capabilities are zero-valued during that window, never carried over
	// from a previous identity.
	Snapshot struct {
		State          State              `json:"state"`
		Identity       *account.Identity  `json:"identity"`
		Role           string             `json:"role"`
		Tier           plan.Tier          `json:"tier"`
		Capabilities   plan.CapabilitySet `json:"capabilities"`
		ProfilePending bool               `json:"profile_pending"`
	}

	// Store is the single authoritative holder of "who is signed in and what
	// can they do". It is the only writer of that state; everything else
	// reads snapshots or subscribes.
	Store struct {
		provider    Provider
		resolver    AccessResolver
		logger      core.Logger
		loadTimeout time.Duration

		mu             sync.RWMutex
		state          State
		identity       *account.Identity
		role           string
		tier           plan.Tier
		caps           plan.CapabilitySet
		profilePending bool
		fetchTag       string // identity id the in-flight profile fetch was issued for
		fetchID        string // discriminates fetches for the same identity id
		unsub          func()
		closed         bool
		loadTimer      *time.Timer

		obsMu     sync.Mutex
		observers map[int]func(Snapshot)
		nextObs   int
	}

	Option func(*Store)
)

func (s Snapshot) IsLoading() bool { return s.State == StateLoading }

// WithLoadTimeout bounds the initial Loading state: if the provider never
// reports within d, the store falls back to Unauthenticated. 0 disables.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Store) { s.loadTimeout = d }
}

func NewStore(provider Provider, resolver AccessResolver, logger core.Logger, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		resolver:  resolver,
		logger:    logger,
		state:     StateLoading,
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the provider's sign-in-state stream.
func (s *Store) Start() error {
	unsub, err := s.provider.Subscribe(s.onAuthChange)
	if err != nil {
		return errors.Wrap(err, "subscribing to auth provider")
	}

	s.mu.Lock()
	s.unsub = unsub
	if s.state == StateLoading && s.loadTimeout > 0 {
		s.loadTimer = time.AfterFunc(s.loadTimeout, s.loadTimedOut)
	}
	s.mu.Unlock()
	return nil
}

// Close unsubscribes from the provider and stops notifications; late provider
// callbacks and in-flight fetch results against a closed store are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Read API

func (s *Store) CurrentIdentity() *account.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	ident := *s.identity
	return &ident
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateLoading
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Store) Capabilities() plan.CapabilitySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer called on every state change with the new
// snapshot. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// SignOut clears identity and capabilities synchronously; the provider's
// remote invalidation is fire-and-forget. A sign-out that fails remotely
// still signs the user out locally.
func (s *Store) SignOut() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	go func() {
		if err := s.provider.SignOut(); err != nil {
			s.logger.Warn(fmt.Sprintf("remote sign-out failed (ignored): %v", err), err)
		}
	}()
}

// IsStale reports whether an asynchronous profile-fetch result, tagged with
// the identity id it was issued for, arrived after that identity stopped
// being current and must be discarded.
func IsStale(responseTag, currentIdentityID string) bool {
	return responseTag == "" || responseTag != currentIdentityID
}

// onAuthChange is the provider callback; it is the store's single writer path
// together with the fetch completion below.
func (s *Store) onAuthChange(identity *account.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.loadTimer != nil {
		s.loadTimer.Stop()
		s.loadTimer = nil
	}

	if identity == nil {
		s.clearLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	ident := *identity
	s.state = StateAuthenticated
	s.identity = &ident
	// Role and capabilities stay zeroed until this identity's own profile
	// fetch completes; a new sign-in must never inherit the previous
	// identity's capabilities.
	s.role = ""
	s.tier = ""
	s.caps = plan.CapabilitySet{}
	s.profilePending = true
	s.fetchTag = ident.ID
	fetchID := uuid.New().String()
	s.fetchID = fetchID
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	go s.fetchAccess(ident, fetchID)
}

func (s *Store) fetchAccess(identity account.Identity, fetchID string) {
	access := s.resolver.ResolveAccess(context.Background(), identity)

	s.mu.Lock()
	currentID := ""
	if s.identity != nil {
		currentID = s.identity.ID
	}
	if s.closed || IsStale(identity.ID, currentID) || fetchID != s.fetchID {
		s.mu.Unlock()
		return
	}
	s.role = access.Role
	s.tier = access.Tier
	s.caps = access.Capabilities
	s.profilePending = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) loadTimedOut() {
	s.mu.Lock()
	if s.closed || s.state != StateLoading {
		s.mu.Unlock()
		return
	}
	s.logger.Warn("auth provider never reported; falling back to unauthenticated")
	s.clearLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) clearLocked() {
	s.state = StateUnauthenticated
	s.identity = nil
	s.role = ""
	s.tier = ""
	s.caps = plan.CapabilitySet{}
	s.profilePending = false
	s.fetchTag = ""
	s.fetchID = ""
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          s.state,
		Role:           s.role,
		Tier:           s.tier,
		Capabilities:   s.caps,
		ProfilePending: s.profilePending,
	}
	if s.identity != nil {
		ident := *s.identity
		snap.Identity = &ident
	}
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
