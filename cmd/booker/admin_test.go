package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmament/internal/config"
	"firmament/internal/session"
)

type fakeCRM struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func (f *fakeCRM) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, key)
		f.bodies[key] = string(body)
		f.mu.Unlock()

		switch key {
		case "POST /auth/login":
			var req map[string]string
			assert.NoError(t, json.Unmarshal(body, &req))
			if req["password"] != "secret" {
				http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"token":"tok-1","username":"`+req["username"]+`","role":"ADMIN"}`)
		case "GET /appointments/upcoming":
			_, _ = io.WriteString(w, `[{"id":7,"firstName":"Amina","lastName":"Benali","consultationType":"Work permit",
				"appointmentDate":"2030-06-10T10:00:00-04:00","duration":60,"amount":90,"currency":"CAD","status":"CONFIRMED"}]`)
		case "GET /availability/blocked-periods":
			_, _ = io.WriteString(w, `[{"id":1,"date":"2030-06-10","fullDay":true,"reason":"VACATION"},
				{"id":2,"date":"2030-06-11","fullDay":true,"reason":"VACATION"}]`)
		case "DELETE /availability/block/1", "DELETE /availability/block/2", "POST /availability/block":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeCRM) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestApp(t *testing.T) (*app, *fakeCRM) {
	t.Helper()
	crm := &fakeCRM{bodies: map[string]string{}}
	srv := httptest.NewServer(crm.handler(t))
	t.Cleanup(srv.Close)

	doc := "api:\n  base_url: " + srv.URL + "\nsession:\n  path: " + filepath.Join(t.TempDir(), "session.json") +
		"\nbooking:\n  timezone: America/Toronto\n"
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	logger := zerolog.Nop()
	a, err := newApp(context.Background(), cfg, &logger)
	require.NoError(t, err)
	return a, crm
}

func runAdminArgs(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runAdmin(context.Background(), a, args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestAdminRequiresLogin(t *testing.T) {
	a, crm := newTestApp(t)

	_, err := runAdminArgs(t, a, "", "upcoming")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, crm.seen())
}

func TestAdminLoginPersistsSession(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	a, _ := newTestApp(t)

	out, err := runAdminArgs(t, a, "secret\n", "login", "nadia")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as nadia.")
	assert.Equal(t, "tok-1", a.session.Token())

	reloaded := session.New(session.NewFileStore(a.cfg.Session.Path), nil, nil)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, session.RoleAdmin, reloaded.Role())

	out, err = runAdminArgs(t, a, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	assert.False(t, a.session.Authenticated())
}

func TestAdminLoginRejected(t *testing.T) {
	t.Setenv(PasswordEnv, "wrong")
	a, _ := newTestApp(t)

	_, err := runAdminArgs(t, a, "", "login", "nadia")
	require.Error(t, err)
	assert.False(t, a.session.Authenticated())
}

func loggedIn(t *testing.T, a *app) {
	t.Helper()
	require.NoError(t, a.session.Begin(context.Background(), session.Data{Token: "tok-1", Username: "nadia", Role: session.RoleAdmin}))
}

func TestAdminUpcoming(t *testing.T) {
	a, _ := newTestApp(t)
	loggedIn(t, a)

	out, err := runAdminArgs(t, a, "", "upcoming")
	require.NoError(t, err)
	assert.Contains(t, out, "2030-06-10")
	assert.Contains(t, out, "10:00")
	assert.Contains(t, out, "Amina Benali")
	assert.Contains(t, out, "Total 1, pending 0, confirmed 1")
	assert.Contains(t, out, "Revenue 90 CAD")
}

func TestAdminBlocksAndUnblockGroup(t *testing.T) {
	a, crm := newTestApp(t)
	loggedIn(t, a)

	out, err := runAdminArgs(t, a, "", "blocks")
	require.NoError(t, err)
	assert.Contains(t, out, "2030-06-10  2030-06-11")

	out, err = runAdminArgs(t, a, "", "unblock", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Period unblocked successfully")
	assert.Contains(t, crm.seen(), "DELETE /availability/block/1")
	assert.Contains(t, crm.seen(), "DELETE /availability/block/2")

	_, err = runAdminArgs(t, a, "", "unblock", "5")
	assert.ErrorContains(t, err, "no group 5")
}

func TestAdminBlock(t *testing.T) {
	a, crm := newTestApp(t)
	loggedIn(t, a)

	out, err := runAdminArgs(t, a, "", "block", "2030-07-01", "09:00-12:00", "meeting", "embassy")
	require.NoError(t, err)
	assert.Contains(t, out, "Time period blocked successfully")

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(crm.bodies["POST /availability/block"]), &body))
	assert.Equal(t, "2030-07-01", body["date"])
	assert.Equal(t, "MEETING", body["reason"])
	assert.Equal(t, "embassy", body["notes"])
}

func TestAdminUsage(t *testing.T) {
	a, _ := newTestApp(t)
	loggedIn(t, a)

	out, err := runAdminArgs(t, a, "")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Usage: booker admin")

	_, err = runAdminArgs(t, a, "", "cancel")
	assert.ErrorIs(t, err, errUsage)

	_, err = runAdminArgs(t, a, "", "show", "abc")
	assert.ErrorContains(t, err, `invalid id "abc"`)
}
