package echoapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/session"
	authsvc "github.com/somaplus/darasa/services/auth"
)

const (
	contextSnapshotKey = "sessionSnapshot"
	contextSessionKey  = "sessionID"
)

type (
	sessionEntry struct {
		id       string
		provider *authsvc.HostedProvider
		store    *session.Store
	}

	// sessionRegistry owns one session.Store (and its auth-provider
	// subscription) per signed-in browser session. The registry is the only
	// component that creates or tears stores down; handlers read snapshots.
	sessionRegistry struct {
		conf       *core.Config
		accountSvc *account.Service
		logger     core.Logger

		mu      sync.RWMutex
		entries map[string]*sessionEntry
	}
)

func newSessionRegistry(conf *core.Config, accountSvc *account.Service, logger core.Logger) *sessionRegistry {
	return &sessionRegistry{
		conf:       conf,
		accountSvc: accountSvc,
		logger:     logger,
		entries:    make(map[string]*sessionEntry),
	}
}

// open verifies a provider assertion and creates a session whose store has
// seen the sign-in. It waits (bounded) for the profile fetch so the caller
// gets a settled snapshot when the document store is responsive.
func (r *sessionRegistry) open(assertion string) (string, session.Snapshot, error) {
	provider := authsvc.NewHostedProvider(r.conf)
	store := session.NewStore(provider, r.accountSvc, r.logger,
		session.WithLoadTimeout(r.conf.Server.SessionLoadTimeout))
	if err := store.Start(); err != nil {
		return "", session.Snapshot{}, err
	}

	settled := make(chan session.Snapshot, 1)
	unsub := store.Subscribe(func(snap session.Snapshot) {
		if snap.State == session.StateAuthenticated && !snap.ProfilePending {
			select {
			case settled <- snap:
			default:
			}
		}
	})
	defer unsub()

	if _, err := provider.Authenticate(assertion); err != nil {
		store.Close()
		return "", session.Snapshot{}, errors.Wrap(err, "authenticating assertion")
	}

	var snap session.Snapshot
	select {
	case snap = <-settled:
	case <-time.After(r.conf.Server.LoginWaitTimeout):
		snap = store.Snapshot()
	}

	entry := &sessionEntry{
		id:       uuid.New().String(),
		provider: provider,
		store:    store,
	}
	r.mu.Lock()
	r.entries[entry.id] = entry
	r.mu.Unlock()

	return entry.id, snap, nil
}

func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// close signs the session out (local state clears synchronously; remote
// invalidation is best-effort) and removes it from the registry.
func (r *sessionRegistry) close(id string) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		entry.store.SignOut()
		entry.store.Close()
	}
}

func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.entries = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.store.Close()
	}
}

// sessionMiddleware resolves the request's session (Authorization: Bearer
// <session id>) into a snapshot on the context. Requests without a known
// session get an unauthenticated snapshot; they are not loading.
func sessionMiddleware(registry *sessionRegistry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			snap := session.Snapshot{State: session.StateUnauthenticated}
			if sid, ok := bearerToken(ctx); ok {
				if entry, found := registry.get(sid); found {
					snap = entry.store.Snapshot()
					ctx.Set(contextSessionKey, sid)
				}
			}
			ctx.Set(contextSnapshotKey, snap)
			return next(ctx)
		}
	}
}

func bearerToken(ctx echo.Context) (string, bool) {
	const prefix = "Bearer "
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

func snapshotFromContext(ctx echo.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Get(contextSnapshotKey).(session.Snapshot)
	return snap, ok
}

func sessionIDFromContext(ctx echo.Context) (string, bool) {
	sid, ok := ctx.Get(contextSessionKey).(string)
	return sid, ok
}
