package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/studysignal/studyroomd/pkg/relay"
	"github.com/studysignal/studyroomd/pkg/store"
	"github.com/studysignal/studyroomd/pkg/token"
)

type fakeStore struct {
	users map[string]store.User
	rooms []store.Room
	fail  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]store.User)}
}

func (f *fakeStore) CreateUser(_ context.Context, u store.User) error {
	if f.fail {
		return errors.New("store down")
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (store.User, error) {
	if f.fail {
		return store.User{}, errors.New("store down")
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) UsersByID(_ context.Context, ids []string) (map[string]store.User, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	byID := make(map[string]store.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			byID[id] = u
		}
	}
	return byID, nil
}

func (f *fakeStore) CreateRoom(_ context.Context, r store.Room) error {
	if f.fail {
		return errors.New("store down")
	}
	f.rooms = append(f.rooms, r)
	return nil
}

func (f *fakeStore) ListRooms(_ context.Context) ([]store.Room, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	return f.rooms, nil
}

func (f *fakeStore) AddMember(_ context.Context, roomID, userID string) error {
	if f.fail {
		return errors.New("store down")
	}
	for i, r := range f.rooms {
		if r.ID == roomID {
			f.rooms[i].Members = append(r.Members, userID)
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestGateway(st store.Store) (*token.Service, *echo.Echo) {
	log := logrus.New()
	log.Out = io.Discard
	tokens := token.NewService("test-secret", time.Hour)
	g := New(log, tokens, st, relay.New(log, tokens), http.NotFoundHandler(), Config{
		AllowedOrigins: []string{"*"},
		RateLimit:      100,
		RateBurst:      100,
		StatsPassword:  "hunter2",
	})
	return tokens, g.Router()
}

func doJSON(router *echo.Echo, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, router := newTestGateway(newFakeStore())
	rec := doJSON(router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %s", err)
	}
	if body["status"] != "ok" {
		t.Errorf("wanted status ok, got %v", body["status"])
	}
	for _, key := range []string{"timestamp", "uptime"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in health body", key)
		}
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	tokens, router := newTestGateway(newFakeStore())

	creds := map[string]string{"email": "ada@example.com", "name": "Ada", "password": "correct-horse"}
	rec := doJSON(router, http.MethodPost, "/auth/register", "", creds)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register; wanted 201, got %d: %s", rec.Code, rec.Body)
	}

	var reg authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %s", err)
	}
	identity, err := tokens.Verify(reg.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %s", err)
	}
	if identity.UserID != reg.User.ID || identity.Name != "Ada" {
		t.Errorf("token identity mismatch: %+v vs user %s", identity, reg.User.ID)
	}

	if rec := doJSON(router, http.MethodPost, "/auth/register", "", creds); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register; wanted 409, got %d", rec.Code)
	}

	login := map[string]string{"email": "ada@example.com", "password": "correct-horse"}
	if rec := doJSON(router, http.MethodPost, "/auth/login", "", login); rec.Code != http.StatusOK {
		t.Errorf("login; wanted 200, got %d", rec.Code)
	}

	login["password"] = "wrong"
	if rec := doJSON(router, http.MethodPost, "/auth/login", "", login); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password; wanted 401, got %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	_, router := newTestGateway(newFakeStore())

	for name, body := range map[string]map[string]string{
		"missing email":  {"name": "Ada", "password": "correct-horse"},
		"missing name":   {"email": "ada@example.com", "password": "correct-horse"},
		"short password": {"email": "ada@example.com", "name": "Ada", "password": "short"},
	} {
		if rec := doJSON(router, http.MethodPost, "/auth/register", "", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s; wanted 400, got %d", name, rec.Code)
		}
	}
}

func TestCreateRoomRequiresToken(t *testing.T) {
	_, router := newTestGateway(newFakeStore())

	rec := doJSON(router, http.MethodPost, "/rooms/create", "", map[string]string{"name": "Algorithms"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token; wanted 401, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/rooms/create", "garbage", map[string]string{"name": "Algorithms"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token; wanted 401, got %d", rec.Code)
	}
}

func TestCreateAndListRooms(t *testing.T) {
	st := newFakeStore()
	tokens, router := newTestGateway(st)

	userX := store.User{ID: "user-x", Email: "x@example.com", Name: "Xenia"}
	st.users[userX.ID] = userX
	bearer, err := tokens.Issue(token.Identity{UserID: userX.ID, Name: userX.Name})
	if err != nil {
		t.Fatalf("Issue: %s", err)
	}

	rec := doJSON(router, http.MethodPost, "/rooms/create", bearer, map[string]string{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name; wanted 400, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/rooms/create", bearer, map[string]string{"name": "Algorithms"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create; wanted 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(router, http.MethodGet, "/rooms", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list; wanted 200, got %d", rec.Code)
	}
	var views []roomView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode rooms: %s", err)
	}
	if len(views) != 1 {
		t.Fatalf("wanted 1 room, got %d", len(views))
	}
	room := views[0]
	if room.Name != "Algorithms" {
		t.Errorf("wanted room Algorithms, got %q", room.Name)
	}
	if room.CreatedBy.ID != userX.ID || room.CreatedBy.Name != "Xenia" {
		t.Errorf("createdBy not resolved: %+v", room.CreatedBy)
	}
	if len(room.Members) != 1 || room.Members[0].ID != userX.ID {
		t.Errorf("members should contain creator: %+v", room.Members)
	}
}

func TestJoinRoom(t *testing.T) {
	st := newFakeStore()
	tokens, router := newTestGateway(st)

	creator := store.User{ID: "user-x", Email: "x@example.com", Name: "Xenia"}
	joiner := store.User{ID: "user-y", Email: "y@example.com", Name: "Yuri"}
	st.users[creator.ID] = creator
	st.users[joiner.ID] = joiner
	st.rooms = []store.Room{{ID: "room-1", Name: "Algorithms", CreatedBy: creator.ID, Members: []string{creator.ID}}}

	bearer, err := tokens.Issue(token.Identity{UserID: joiner.ID, Name: joiner.Name})
	if err != nil {
		t.Fatalf("Issue: %s", err)
	}

	rec := doJSON(router, http.MethodPost, "/rooms/room-1/join", bearer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("join; wanted 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := st.rooms[0].Members; len(got) != 2 || got[1] != joiner.ID {
		t.Errorf("membership not recorded: %v", got)
	}

	rec = doJSON(router, http.MethodPost, "/rooms/no-such-room/join", bearer, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing room; wanted 404, got %d", rec.Code)
	}
}

func TestListRoomsStorageFailure(t *testing.T) {
	st := newFakeStore()
	st.fail = true
	_, router := newTestGateway(st)

	rec := doJSON(router, http.MethodGet, "/rooms", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("wanted 500, got %d", rec.Code)
	}
	var body errResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %s", err)
	}
	if body.Error != "internal error" {
		t.Errorf("detail leaked to caller: %q", body.Error)
	}
}

func TestStatsPassword(t *testing.T) {
	_, router := newTestGateway(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no password; wanted 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-Stats-Password", "hunter2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("wanted 200, got %d", rec.Code)
	}
	var stats relay.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %s", err)
	}
}
