package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/logging"
	"github.com/iliyamo/planbox/internal/queue"
)

type recordingPublisher struct{ events []queue.Event }

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.events = append(p.events, ev)
	return nil
}

type harness struct {
	t   *testing.T
	e   *echo.Echo
	db  *memDB
	pub *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost}
	db := newMemDB()
	pub := &recordingPublisher{}
	e := NewServer(cfg, logging.Nop(), Deps{
		Users: memUsers{db},
		Boxes: memBoxes{db},
		Todos: memTodos{db},
		Notes: memNotes{db},
		Pub:   pub,
	})
	return &harness{t: t, e: e, db: db, pub: pub}
}

type reply struct {
	*httptest.ResponseRecorder
}

func (r reply) json(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &m), r.Body.String())
	return m
}

func (r reply) codes(t *testing.T) []string {
	t.Helper()
	var p struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &p), r.Body.String())
	out := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		out = append(out, e.Code)
	}
	return out
}

func (h *harness) do(method, path, token string, body any) reply {
	h.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return reply{rec}
}

// signup registers a user and returns the session token.
func (h *harness) signup(email string) string {
	h.t.Helper()
	r := h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": email, "password": "Secret1!", "name": "Tester"})
	require.Equal(h.t, http.StatusCreated, r.Code, r.Body.String())
	return r.json(h.t)["session"].(map[string]any)["token"].(string)
}

func (h *harness) createBox(token, name string) string {
	h.t.Helper()
	r := h.do(http.MethodPost, "/v1/boxes", token, map[string]any{"name": name})
	require.Equal(h.t, http.StatusCreated, r.Code, r.Body.String())
	return r.json(h.t)["id"].(string)
}

func TestSignup(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "ann@example.com", "password": "Secret1!"})
	require.Equal(t, http.StatusCreated, r.Code, r.Body.String())
	assert.NotContains(t, r.Body.String(), "passwordHash")
	assert.NotContains(t, r.Body.String(), "$2a$")
	assert.Contains(t, r.Header().Get("Set-Cookie"), "planbox_session=")
	assert.Contains(t, r.Header().Get("Set-Cookie"), "HttpOnly")

	r = h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "ann@example.com", "password": "Other2@x"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, []string{"validation/unique-constraint"}, r.codes(t))
	assert.Len(t, h.db.users, 1)

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, queue.UserSignedUp, h.pub.events[0].Type)
}

func TestSignup_WeakPassword(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "ann@example.com", "password": "abc"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	for _, c := range r.codes(t) {
		assert.Equal(t, "auth/invalid-password", c)
	}
	assert.Contains(t, r.Body.String(), "at least 6 characters")
	assert.Empty(t, h.db.users)
}

func TestPassword_OverBcryptLimit(t *testing.T) {
	h := newHarness(t)
	long := "Aa1!" + strings.Repeat("日", 26)

	r := h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "ann@example.com", "password": long})
	assert.Equal(t, http.StatusBadRequest, r.Code, r.Body.String())
	assert.Equal(t, []string{"auth/invalid-password"}, r.codes(t))
	assert.Empty(t, h.db.users)

	ann := h.signup("ann@example.com")
	r = h.do(http.MethodPut, "/v1/user/password", ann, map[string]any{"password": "Secret1!", "newPassword": long})
	assert.Equal(t, http.StatusBadRequest, r.Code, r.Body.String())
	assert.Equal(t, []string{"auth/invalid-password"}, r.codes(t))
}

func TestSignup_BadInput(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "nope", "password": "Secret1!"})
	assert.Equal(t, []string{"auth/invalid-email"}, r.codes(t))

	r = h.do(http.MethodPost, "/v1/auth/signup", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, []string{"auth/invalid-input"}, r.codes(t))
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.signup("ann@example.com")

	wrong := h.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ann@example.com", "password": "Wrong1!x"})
	unknown := h.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "bob@example.com", "password": "Secret1!"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, []string{"auth/unauthorized"}, wrong.codes(t))

	ok := h.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ann@example.com", "password": "Secret1!"})
	require.Equal(t, http.StatusOK, ok.Code)
	token := ok.json(t)["session"].(map[string]any)["token"].(string)

	me := h.do(http.MethodGet, "/v1/user", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "ann@example.com", me.json(t)["email"])
	assert.NotContains(t, me.Body.String(), "$2a$")
}

func TestLogin_MalformedEmail(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "nope", "password": "Secret1!"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, []string{"auth/invalid-email"}, r.codes(t))
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/v1/user", "/v1/boxes", "/v1/boxes/x/todos", "/v1/boxes/x/note"} {
		r := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, r.Code, path)
		assert.Equal(t, []string{"auth/unauthorized"}, r.codes(t))
	}
	r := h.do(http.MethodGet, "/v1/boxes", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
}

func TestBoxes_OwnershipIsolation(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	bob := h.signup("bob@example.com")
	box := h.createBox(ann, "Work")
	r := h.do(http.MethodPost, "/v1/boxes/"+box+"/todos", ann, map[string]any{"todo": "Plan sprint"})
	require.Equal(t, http.StatusCreated, r.Code, r.Body.String())
	todo := r.json(t)["id"].(string)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/v1/boxes/" + box, nil},
		{http.MethodPatch, "/v1/boxes/" + box, map[string]any{"name": "Mine"}},
		{http.MethodDelete, "/v1/boxes/" + box, nil},
		{http.MethodGet, "/v1/boxes/" + box + "/todos", nil},
		{http.MethodPost, "/v1/boxes/" + box + "/todos", map[string]any{"todo": "steal"}},
		{http.MethodPut, "/v1/boxes/" + box + "/todos/" + todo, map[string]any{"todo": "Mine", "done": true}},
		{http.MethodDelete, "/v1/boxes/" + box + "/todos/" + todo, nil},
		{http.MethodGet, "/v1/boxes/" + box + "/note", nil},
		{http.MethodPut, "/v1/boxes/" + box + "/note", map[string]any{"content": "x"}},
	} {
		r := h.do(tc.method, tc.path, bob, tc.body)
		assert.Equal(t, http.StatusNotFound, r.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, []string{"not-found"}, r.codes(t))
	}

	r = h.do(http.MethodGet, "/v1/boxes", bob, nil)
	assert.JSONEq(t, `[]`, r.Body.String())

	r = h.do(http.MethodGet, "/v1/boxes/"+box, ann, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "Work", r.json(t)["name"])

	require.Len(t, h.db.todos, 1)
	kept := h.db.todos[todo]
	assert.Equal(t, "Plan sprint", kept.Todo)
	assert.False(t, kept.Done)
}

func TestBoxes_NameUniquePerOwner(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	bob := h.signup("bob@example.com")
	h.createBox(ann, "Work")

	r := h.do(http.MethodPost, "/v1/boxes", ann, map[string]any{"name": "Work"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, []string{"validation/unique-constraint"}, r.codes(t))

	h.createBox(bob, "Work")

	r = h.do(http.MethodPost, "/v1/boxes", ann, map[string]any{"name": "   "})
	assert.Equal(t, []string{"validation/invalid-input"}, r.codes(t))
}

func TestBoxes_RenameListDelete(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	first := h.createBox(ann, "First")
	h.createBox(ann, "Second")

	r := h.do(http.MethodPatch, "/v1/boxes/"+first, ann, map[string]any{"name": " Renamed "})
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	assert.Equal(t, "Renamed", r.json(t)["name"])

	var boxes []map[string]any
	r = h.do(http.MethodGet, "/v1/boxes", ann, nil)
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &boxes))
	require.Len(t, boxes, 2)
	assert.Equal(t, "Renamed", boxes[0]["name"], "most recently updated first")

	r = h.do(http.MethodDelete, "/v1/boxes/"+first, ann, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, r.json(t)["message"], "Renamed")

	r = h.do(http.MethodGet, "/v1/boxes/"+first, ann, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestTodos(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	box := h.createBox(ann, "Chores")

	r := h.do(http.MethodPost, "/v1/boxes/"+box+"/todos", ann, map[string]any{"todo": "Buy milk", "deadline": "2030-01-02T15:04:05Z"})
	require.Equal(t, http.StatusCreated, r.Code, r.Body.String())
	todo := r.json(t)
	id := todo["id"].(string)
	assert.Equal(t, false, todo["done"])
	assert.NotNil(t, todo["deadline"])

	r = h.do(http.MethodPut, "/v1/boxes/"+box+"/todos/"+id, ann, map[string]any{"done": true})
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	assert.Equal(t, true, r.json(t)["done"])
	assert.Equal(t, "Buy milk", r.json(t)["todo"])
	assert.NotNil(t, r.json(t)["deadline"], "absent deadline is left alone")

	r = h.do(http.MethodPut, "/v1/boxes/"+box+"/todos/"+id, ann, `{"deadline":null}`)
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	assert.Nil(t, r.json(t)["deadline"])

	r = h.do(http.MethodPut, "/v1/boxes/"+box+"/todos/"+id, ann, map[string]any{"todo": strings.Repeat("x", 101)})
	assert.Equal(t, []string{"validation/invalid-input"}, r.codes(t))

	r = h.do(http.MethodGet, "/v1/boxes/"+box+"/todos", ann, nil)
	var todos []map[string]any
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &todos))
	assert.Len(t, todos, 1)

	r = h.do(http.MethodDelete, "/v1/boxes/"+box+"/todos/"+id, ann, nil)
	require.Equal(t, http.StatusOK, r.Code)
	r = h.do(http.MethodDelete, "/v1/boxes/"+box+"/todos/"+id, ann, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestTodos_MissingBox(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")

	r := h.do(http.MethodPost, "/v1/boxes/nope/todos", ann, map[string]any{"todo": "Buy milk"})
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, []string{"not-found"}, r.codes(t))
}

func TestTodos_UpdateAfterBoxDeleted(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	box := h.createBox(ann, "Chores")
	r := h.do(http.MethodPost, "/v1/boxes/"+box+"/todos", ann, map[string]any{"todo": "Buy milk"})
	id := r.json(t)["id"].(string)

	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/v1/boxes/"+box, ann, nil).Code)

	r = h.do(http.MethodPut, "/v1/boxes/"+box+"/todos/"+id, ann, map[string]any{"done": true})
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, []string{"not-found"}, r.codes(t))
}

func TestNote(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")
	box := h.createBox(ann, "Journal")

	r := h.do(http.MethodGet, "/v1/boxes/"+box+"/note", ann, nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "", r.json(t)["content"])

	r = h.do(http.MethodPut, "/v1/boxes/"+box+"/note", ann, map[string]any{
		"content": `<p class="lead">Hello <span>there</span></p><script>alert(1)</script><img src="x.png" onerror="evil()">`,
	})
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	content := r.json(t)["content"].(string)
	assert.Contains(t, content, `<p class="lead">`)
	assert.Contains(t, content, `<span>there</span>`)
	assert.NotContains(t, content, "script")
	assert.NotContains(t, content, "onerror")

	r = h.do(http.MethodPost, "/v1/boxes/"+box+"/note", ann, map[string]any{"content": "<b>v2</b>"})
	require.Equal(t, http.StatusOK, r.Code)
	r = h.do(http.MethodGet, "/v1/boxes/"+box+"/note", ann, nil)
	assert.Equal(t, "<b>v2</b>", r.json(t)["content"])
	assert.Len(t, h.db.notes, 1)
}

func TestProfileAndPassword(t *testing.T) {
	h := newHarness(t)
	ann := h.signup("ann@example.com")

	r := h.do(http.MethodPut, "/v1/user/profile", ann, map[string]any{"name": "Annie"})
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	body := r.json(t)
	assert.Equal(t, "Annie", body["user"].(map[string]any)["name"])
	fresh := body["session"].(map[string]any)["token"].(string)
	assert.NotEmpty(t, fresh)

	r = h.do(http.MethodPost, "/v1/auth/refresh", fresh, nil)
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())

	r = h.do(http.MethodPut, "/v1/user/password", ann, map[string]any{"password": "Wrong1!x", "newPassword": "Better2@"})
	assert.Equal(t, []string{"auth/invalid-password"}, r.codes(t))

	r = h.do(http.MethodPut, "/v1/user/password", ann, map[string]any{"password": "Secret1!", "newPassword": "Secret1!"})
	assert.Equal(t, []string{"validation/invalid-input"}, r.codes(t))

	r = h.do(http.MethodPut, "/v1/user/password", ann, map[string]any{"password": "Secret1!", "newPassword": "weak"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.codes(t), "auth/invalid-password")

	r = h.do(http.MethodPut, "/v1/user/password", ann, map[string]any{"password": "Secret1!", "newPassword": "Better2@"})
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())

	r = h.do(http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "ann@example.com", "password": "Better2@"})
	assert.Equal(t, http.StatusOK, r.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodPost, "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, r.Code)
	assert.Contains(t, r.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestFrameworkErrorsUseTaxonomy(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, []string{"not-found"}, r.codes(t))

	r = h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "ok", r.Body.String())
}
