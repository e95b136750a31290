package authsvc

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/session"
)

var (
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	signingMethod = jwt.SigningMethodHS256
)

// AssertionClaims is what the hosted auth provider mints for a signed-in
// identity: id and display metadata only, never role or plan.
type AssertionClaims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
}

// HostedProvider adapts the hosted auth provider to session.Provider.
// Sign-in-state changes are fed by Authenticate/Invalidate calls made at the
// transport layer when a provider-minted assertion is presented or the
// session ends.
type HostedProvider struct {
	secret    []byte
	revokeURL string
	client    *http.Client

	mu      sync.Mutex
	subs    map[int]func(*account.Identity)
	nextSub int
	last    *account.Identity
}

var _ session.Provider = (*HostedProvider)(nil)

func NewHostedProvider(conf *core.Config) *HostedProvider {
	return &HostedProvider{
		secret: []byte(conf.SecretKey),
		client: &http.Client{Timeout: 5 * time.Second},
		subs:   make(map[int]func(*account.Identity)),
	}
}

// WithRevokeURL sets the provider endpoint notified on sign-out.
func (p *HostedProvider) WithRevokeURL(url string) *HostedProvider {
	p.revokeURL = url
	return p
}

func (p *HostedProvider) Subscribe(fn func(*account.Identity)) (func(), error) {
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

// Authenticate verifies a provider-minted assertion and emits the identity to
// subscribers.
func (p *HostedProvider) Authenticate(assertion string) (*account.Identity, error) {
	claims := new(AssertionClaims)
	token, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Wrapf(ErrInvalidAssertion, "unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidAssertion
	}
	if claims.Subject == "" {
		return nil, ErrInvalidAssertion
	}

	ident := &account.Identity{ID: claims.Subject, Name: claims.Name}
	p.emit(ident)
	return ident, nil
}

// Invalidate emits a signed-out state, as on external session expiry.
func (p *HostedProvider) Invalidate() {
	p.emit(nil)
}

// SignOut notifies the provider's revocation endpoint, best-effort. The
// session store ignores the returned error beyond logging it.
func (p *HostedProvider) SignOut() error {
	p.mu.Lock()
	last := p.last
	p.last = nil
	p.mu.Unlock()

	if p.revokeURL == "" || last == nil {
		return nil
	}
	body := strings.NewReader(`{"id":"` + last.ID + `"}`)
	res, err := p.client.Post(p.revokeURL, "application/json", body)
	if err != nil {
		return errors.Wrap(err, "revoking provider session")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Wrapf(ErrInvalidAssertion, "revoking provider session: status %d", res.StatusCode)
	}
	return nil
}

func (p *HostedProvider) emit(identity *account.Identity) {
	p.mu.Lock()
	p.last = identity
	fns := make([]func(*account.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// GenerateAssertion signs an identity assertion the way the hosted provider
// does; used by the admin CLI and tests.
func GenerateAssertion(conf *core.Config, identity account.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AssertionClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   identity.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Name: identity.Name,
	}
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing assertion")
	}
	return ss, nil
}
