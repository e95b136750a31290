package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/plan"
	"github.com/somaplus/darasa/core/session"
	authsvc "github.com/somaplus/darasa/services/auth"
	emailsvc "github.com/somaplus/darasa/services/email"
	logsvc "github.com/somaplus/darasa/services/logger"
	dummydocs "github.com/somaplus/darasa/storage/document/dummy"
)

type testApp struct {
	conf    *core.Config
	server  Server
	svc     *account.Service
	mailSvc *emailStub
}

// emailStub records sent messages and can be told to fail.
type emailStub struct {
	sent []core.EmailMessage
	fail bool
}

var _ core.EmailService = (*emailStub)(nil)

func (svc *emailStub) SendMessage(msg *core.EmailMessage) error {
	if svc.fail {
		return emailsvc.ErrDeliveryFailed
	}
	svc.sent = append(svc.sent, *msg)
	return nil
}

func (svc *emailStub) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = svc.SendMessage(msg)
	}
}

func newTranslator(t *testing.T) ut.Translator {
	t.Helper()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, ok := uni.GetTranslator("en")
	if !ok {
		t.Fatal("en translator not found")
	}
	return translator
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	db, err := dummydocs.Open()
	require.NoError(t, err)
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	svc := account.NewService(dummydocs.NewProfileRepository(db), logger)

	validate := validator.New()
	translator := newTranslator(t)
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	mailSvc := new(emailStub)
	app := &testApp{
		conf:    conf,
		svc:     svc,
		mailSvc: mailSvc,
	}
	app.server = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		AccountSvc:     svc,
		EmailSvc:       mailSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.server.Close() })
	return app
}

func (app *testApp) seedProfile(t *testing.T, id, name, role, planName, status string) account.Profile {
	t.Helper()
	prof, err := app.svc.Upsert(context.Background(), account.NewProfile{ID: id, Name: name, Role: role, PlanName: planName, Status: status})
	require.NoError(t, err)
	return prof
}

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

// login opens a session for the identity and returns the session id.
func (app *testApp) login(t *testing.T, id, name string) string {
	t.Helper()

	assertion, err := authsvc.GenerateAssertion(app.conf, account.Identity{ID: id, Name: name}, time.Hour)
	require.NoError(t, err)

	body := marshalObj(t, LoginRequest{Assertion: assertion})
	rec := app.do(http.MethodPost, "/v1/login", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func Test_sessionApi_login(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "u1", "Aisha", account.RoleConsumer, "Premium", "active")

	t.Run("missing assertion", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/login", "", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "assertion")
	})

	t.Run("garbage assertion", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/login", "", marshalObj(t, LoginRequest{Assertion: "not-a-token"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "authentication failed")
	})

	t.Run("assertion signed with another key", func(t *testing.T) {
		other := *app.conf
		other.SecretKey = "wrong-secret"
		assertion, err := authsvc.GenerateAssertion(&other, account.Identity{ID: "u1"}, time.Hour)
		require.NoError(t, err)

		rec := app.do(http.MethodPost, "/v1/login", "", marshalObj(t, LoginRequest{Assertion: assertion}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("valid assertion settles the session", func(t *testing.T) {
		assertion, err := authsvc.GenerateAssertion(app.conf, account.Identity{ID: "u1", Name: "Aisha"}, time.Hour)
		require.NoError(t, err)

		rec := app.do(http.MethodPost, "/v1/login", "", marshalObj(t, LoginRequest{Assertion: assertion}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, session.StateAuthenticated, resp.Session.State)
		assert.False(t, resp.Session.ProfilePending)
		assert.Equal(t, account.RoleConsumer, resp.Session.Role)
		assert.Equal(t, plan.TierPremium, resp.Session.Tier)
		assert.True(t, resp.Session.Capabilities.Modules)
		assert.False(t, resp.Session.Capabilities.AskTutor)
	})

	t.Run("unknown identity still signs in as consumer", func(t *testing.T) {
		assertion, err := authsvc.GenerateAssertion(app.conf, account.Identity{ID: "ghost", Name: "Ghost"}, time.Hour)
		require.NoError(t, err)

		rec := app.do(http.MethodPost, "/v1/login", "", marshalObj(t, LoginRequest{Assertion: assertion}))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, account.RoleConsumer, resp.Session.Role)
		assert.Equal(t, plan.TierStarter, resp.Session.Tier)
		assert.Equal(t, plan.CapabilitySet{}, resp.Session.Capabilities)
	})
}

func Test_sessionApi_session(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "u1", "Aisha", account.RoleConsumer, "Premium", "active")

	t.Run("no session", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/session", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, session.StateUnauthenticated, snap.State)
		assert.Nil(t, snap.Identity)
	})

	t.Run("unknown session id", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/session", "bogus-session")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, session.StateUnauthenticated, snap.State)
	})

	t.Run("active session", func(t *testing.T) {
		sid := app.login(t, "u1", "Aisha")

		rec := app.do(http.MethodGet, "/v1/session", sid)
		require.Equal(t, http.StatusOK, rec.Code)

		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, session.StateAuthenticated, snap.State)
		require.NotNil(t, snap.Identity)
		assert.Equal(t, "u1", snap.Identity.ID)
	})
}

func Test_sessionApi_logout(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "u1", "Aisha", account.RoleConsumer, "Premium", "active")

	t.Run("without a session", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/logout", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("closes the session", func(t *testing.T) {
		sid := app.login(t, "u1", "Aisha")

		rec := app.do(http.MethodPost, "/v1/logout", sid)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// the old session id no longer resolves
		rec = app.do(http.MethodGet, "/v1/session", sid)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, session.StateUnauthenticated, snap.State)

		// and the guarded tree redirects again
		rec = app.do(http.MethodGet, "/v1/dashboard/consumer", sid)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})
}

func Test_guardMiddleware(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "consumer-1", "Aisha", account.RoleConsumer, "Premium", "active")
	app.seedProfile(t, "tutor-1", "Musa", account.RoleTutor, "", "")
	require.NoError(t, app.svc.GrantAdmin(context.Background(), "root-1"))

	consumerSid := app.login(t, "consumer-1", "Aisha")
	tutorSid := app.login(t, "tutor-1", "Musa")
	adminSid := app.login(t, "root-1", "Root")

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
	}{
		{name: "unauthenticated redirects to login", path: "/v1/dashboard/consumer", wantCode: http.StatusSeeOther},
		{name: "unauthenticated role route redirects too", path: "/v1/dashboard/admin", wantCode: http.StatusSeeOther},
		{name: "consumer home", path: "/v1/dashboard/consumer", token: consumerSid, wantCode: http.StatusOK},
		{name: "consumer on tutor tree", path: "/v1/dashboard/tutor", token: consumerSid, wantCode: http.StatusForbidden},
		{name: "consumer on admin tree", path: "/v1/dashboard/admin", token: consumerSid, wantCode: http.StatusForbidden},
		{name: "tutor home", path: "/v1/dashboard/tutor", token: tutorSid, wantCode: http.StatusOK},
		{name: "tutor on consumer tree", path: "/v1/dashboard/consumer", token: tutorSid, wantCode: http.StatusForbidden},
		{name: "admin home", path: "/v1/dashboard/admin", token: adminSid, wantCode: http.StatusOK},
		{name: "admin on consumer tree", path: "/v1/dashboard/consumer", token: adminSid, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if rec.Code == http.StatusSeeOther {
				assert.Equal(t, "/login", rec.Header().Get("Location"))
			}
		})
	}

	t.Run("wrong-role denial names the actual role", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard/admin", consumerSid)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"role":"consumer"`)
		assert.Contains(t, rec.Body.String(), "permission denied")
	})
}

func Test_dashboardApi_navigation(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "u1", "Aisha", account.RoleConsumer, "Premium", "active")

	t.Run("unauthenticated redirects", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/navigation", "")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("premium consumer", func(t *testing.T) {
		sid := app.login(t, "u1", "Aisha")

		rec := app.do(http.MethodGet, "/v1/navigation", sid)
		require.Equal(t, http.StatusOK, rec.Code)

		var items []struct {
			Label  string `json:"label"`
			Locked bool   `json:"locked"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
		require.Len(t, items, 6)

		locked := make(map[string]bool, len(items))
		for _, it := range items {
			locked[it.Label] = it.Locked
		}
		assert.False(t, locked["Overview"])
		assert.False(t, locked["Modules"])
		assert.False(t, locked["Schedule"])
		assert.True(t, locked["Resume"])
		assert.True(t, locked["Ask a Tutor"])
		assert.True(t, locked["Magazine"])

		// declaration order is preserved
		assert.Equal(t, "Overview", items[0].Label)
		assert.Equal(t, "Magazine", items[5].Label)
	})
}

func Test_dashboardApi_catalog(t *testing.T) {
	app := setup(t)
	app.seedProfile(t, "basic-1", "Aisha", account.RoleConsumer, "Basic Magazine", "active")
	app.seedProfile(t, "starter-1", "Musa", account.RoleConsumer, "Starter", "active")

	t.Run("basic plan unlocks magazine pages", func(t *testing.T) {
		sid := app.login(t, "basic-1", "Aisha")

		rec := app.do(http.MethodGet, "/v1/catalog", sid)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tier":"Basic"`)
		assert.Contains(t, rec.Body.String(), `{"name":"Magazine Pages","locked":false}`)
	})

	t.Run("starter plan is free on the catalog scale", func(t *testing.T) {
		sid := app.login(t, "starter-1", "Musa")

		rec := app.do(http.MethodGet, "/v1/catalog", sid)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tier":"Free"`)
		assert.Contains(t, rec.Body.String(), `{"name":"Magazine Pages","locked":true}`)
		assert.Contains(t, rec.Body.String(), `{"name":"Previews","locked":false}`)
	})
}

func Test_dashboardApi_profileAdmin(t *testing.T) {
	app := setup(t)
	require.NoError(t, app.svc.GrantAdmin(context.Background(), "root-1"))
	app.seedProfile(t, "u1", "Aisha", account.RoleConsumer, "Premium", "active")
	sid := app.login(t, "root-1", "Root")

	t.Run("query profiles", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard/admin/profiles", sid)
		require.Equal(t, http.StatusOK, rec.Code)

		var profs []account.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profs))
		require.Len(t, profs, 1)
		assert.Equal(t, "u1", profs[0].ID)
	})

	t.Run("upsert profile", func(t *testing.T) {
		body := marshalObj(t, account.NewProfile{ID: "u2", Name: "Musa", Role: account.RoleTutor})
		rec := app.do(http.MethodPost, "/v1/dashboard/admin/profiles", sid, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		prof, err := app.svc.GetProfile(context.Background(), "u2")
		require.NoError(t, err)
		assert.Equal(t, account.RoleTutor, prof.Role)
	})

	t.Run("upsert validates role", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/dashboard/admin/profiles", sid,
			[]byte(`{"id":"u3","name":"X","role":"superuser"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "role")
	})

	t.Run("destroy profiles", func(t *testing.T) {
		app.seedProfile(t, "doomed", "Doomed", account.RoleConsumer, "", "")
		rec := app.do(http.MethodDelete, "/v1/dashboard/admin/profiles?id=doomed", sid)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := app.svc.GetProfile(context.Background(), "doomed")
		assert.Error(t, err)
	})

	t.Run("self-delete is forbidden", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/dashboard/admin/profiles?id=root-1&id=u1", sid)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		// nothing was deleted
		_, err := app.svc.GetProfile(context.Background(), "u1")
		assert.NoError(t, err)
	})

	t.Run("grant and revoke admin", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/dashboard/admin/profiles/u1/admin", sid)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		ok, err := app.svc.IsAdmin(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, ok)

		rec = app.do(http.MethodDelete, "/v1/dashboard/admin/profiles/u1/admin", sid)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		ok, err = app.svc.IsAdmin(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("self-revoke is forbidden", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/dashboard/admin/profiles/root-1/admin", sid)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		ok, err := app.svc.IsAdmin(context.Background(), "root-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func Test_emailApi_send(t *testing.T) {
	app := setup(t)

	t.Run("missing fields", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/email", "", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "to")
		assert.Contains(t, rec.Body.String(), "subject")
		assert.Contains(t, rec.Body.String(), "message")
	})

	t.Run("invalid address", func(t *testing.T) {
		body := marshalObj(t, SendEmailRequest{To: "not-an-email", Subject: "Hi", Message: "Hello"})
		rec := app.do(http.MethodPost, "/v1/email", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "to")
	})

	t.Run("success", func(t *testing.T) {
		body := marshalObj(t, SendEmailRequest{To: "dest@test.cd", Subject: "Hi", Message: "Hello there"})
		rec := app.do(http.MethodPost, "/v1/email", "", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())

		require.Len(t, app.mailSvc.sent, 1)
		msg := app.mailSvc.sent[0]
		require.Len(t, msg.To, 1)
		assert.Equal(t, "dest@test.cd", msg.To[0].Address)
		assert.Equal(t, "Hi", msg.Subject)
		assert.Equal(t, "Hello there", msg.BodyStr)
	})

	t.Run("delivery failure", func(t *testing.T) {
		app.mailSvc.fail = true
		defer func() { app.mailSvc.fail = false }()

		body := marshalObj(t, SendEmailRequest{To: "dest@test.cd", Subject: "Hi", Message: "Hello"})
		rec := app.do(http.MethodPost, "/v1/email", "", body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "email delivery failed")
	})
}
