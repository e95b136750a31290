package authsvc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
)

func testConfig() *core.Config {
	return &core.Config{AppName: "Darasa", SecretKey: "test-secret"}
}

func TestHostedProvider_Authenticate(t *testing.T) {
	conf := testConfig()

	t.Run("valid assertion emits the identity", func(t *testing.T) {
		provider := NewHostedProvider(conf)

		var got *account.Identity
		unsub, err := provider.Subscribe(func(ident *account.Identity) { got = ident })
		require.NoError(t, err)
		defer unsub()

		assertion, err := GenerateAssertion(conf, account.Identity{ID: "u1", Name: "Aisha"}, time.Hour)
		require.NoError(t, err)

		ident, err := provider.Authenticate(assertion)
		require.NoError(t, err)
		assert.Equal(t, "u1", ident.ID)
		assert.Equal(t, "Aisha", ident.Name)
		require.NotNil(t, got)
		assert.Equal(t, *ident, *got)
	})

	t.Run("garbage", func(t *testing.T) {
		provider := NewHostedProvider(conf)
		_, err := provider.Authenticate("not-a-token")
		assert.Equal(t, ErrInvalidAssertion, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := testConfig()
		other.SecretKey = "other-secret"
		assertion, err := GenerateAssertion(other, account.Identity{ID: "u1"}, time.Hour)
		require.NoError(t, err)

		provider := NewHostedProvider(conf)
		_, err = provider.Authenticate(assertion)
		assert.Equal(t, ErrInvalidAssertion, err)
	})

	t.Run("expired", func(t *testing.T) {
		assertion, err := GenerateAssertion(conf, account.Identity{ID: "u1"}, -time.Minute)
		require.NoError(t, err)

		provider := NewHostedProvider(conf)
		_, err = provider.Authenticate(assertion)
		assert.Equal(t, ErrInvalidAssertion, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		assertion, err := GenerateAssertion(conf, account.Identity{Name: "No ID"}, time.Hour)
		require.NoError(t, err)

		provider := NewHostedProvider(conf)
		_, err = provider.Authenticate(assertion)
		assert.Equal(t, ErrInvalidAssertion, err)
	})
}

func TestHostedProvider_Invalidate(t *testing.T) {
	conf := testConfig()
	provider := NewHostedProvider(conf)

	var events []*account.Identity
	unsub, err := provider.Subscribe(func(ident *account.Identity) { events = append(events, ident) })
	require.NoError(t, err)
	defer unsub()

	assertion, err := GenerateAssertion(conf, account.Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = provider.Authenticate(assertion)
	require.NoError(t, err)

	provider.Invalidate()

	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])
}

func TestHostedProvider_SignOut(t *testing.T) {
	conf := testConfig()

	t.Run("no revoke endpoint is a no-op", func(t *testing.T) {
		provider := NewHostedProvider(conf)
		assert.NoError(t, provider.SignOut())
	})

	t.Run("notifies the revocation endpoint", func(t *testing.T) {
		var revoked string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(body)
			revoked = string(body)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		provider := NewHostedProvider(conf).WithRevokeURL(srv.URL)
		assertion, err := GenerateAssertion(conf, account.Identity{ID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = provider.Authenticate(assertion)
		require.NoError(t, err)

		require.NoError(t, provider.SignOut())
		assert.Equal(t, `{"id":"u1"}`, revoked)
	})

	t.Run("provider failure is surfaced, not fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		provider := NewHostedProvider(conf).WithRevokeURL(srv.URL)
		assertion, err := GenerateAssertion(conf, account.Identity{ID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = provider.Authenticate(assertion)
		require.NoError(t, err)

		assert.Error(t, provider.SignOut())
	})

	t.Run("unsubscribed callbacks stop firing", func(t *testing.T) {
		provider := NewHostedProvider(conf)

		calls := 0
		unsub, err := provider.Subscribe(func(*account.Identity) { calls++ })
		require.NoError(t, err)
		unsub()

		provider.Invalidate()
		assert.Zero(t, calls)
	})
}
