package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/casting/internal/handler"
	"github.com/user/casting/internal/middleware"
	"github.com/user/casting/internal/model"
	"github.com/user/casting/internal/repository"
	"github.com/user/casting/internal/router"
	"github.com/user/casting/internal/service"
)

const (
	secret   = "handler-test-secret"
	audience = "casting"
	issuer   = "https://casting.test/"
)

// memStore 内存版 repository.Store
type memStore[T any] struct {
	mu    sync.Mutex
	rows  map[int]T
	next  int
	getID func(*T) int
	setID func(*T, int)
	err   error
	// beforeWrite 在 Update/Delete 之前调用，模拟并发修改
	beforeWrite func()
}

func newMemStore[T any](getID func(*T) int, setID func(*T, int), seed []T) *memStore[T] {
	s := &memStore[T]{rows: map[int]T{}, getID: getID, setID: setID}
	for i := range seed {
		_ = s.Insert(context.Background(), &seed[i])
	}
	return s
}

func (s *memStore[T]) Insert(_ context.Context, record *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.next++
	s.setID(record, s.next)
	s.rows[s.next] = *record
	return nil
}

func (s *memStore[T]) ListAll(context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]int, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rows[id])
	}
	return out, nil
}

func (s *memStore[T]) FindByID(_ context.Context, id int) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memStore[T]) Update(_ context.Context, record *T) error {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.getID(record)
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	s.rows[id] = *record
	return nil
}

func (s *memStore[T]) Delete(_ context.Context, record *T) error {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.getID(record)
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

type testServer struct {
	engine *gin.Engine
	actors *memStore[model.Actor]
	movies *memStore[model.Movie]
}

func newTestServer(t *testing.T, strict bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handler.RegisterValidators())

	ts := &testServer{
		actors: newMemStore(func(a *model.Actor) int { return a.ID }, func(a *model.Actor, id int) { a.ID = id }, repository.SeedActors()),
		movies: newMemStore(func(m *model.Movie) int { return m.ID }, func(m *model.Movie, id int) { m.ID = id }, repository.SeedMovies()),
	}
	h := &handler.Handler{Actors: ts.actors, Movies: ts.movies}
	verifier := service.NewTokenVerifier(service.VerifierConfig{
		Issuer:      issuer,
		Audience:    audience,
		HS256Secret: secret,
	}, nil, nil)

	ts.engine = gin.New()
	ts.engine.Use(middleware.Recovery(nil))
	router.RegisterRoutes(ts.engine, h, verifier, router.Options{Auth: middleware.AuthOptions{StrictStatus: strict}})
	return ts
}

func token(t *testing.T, role string) string {
	t.Helper()
	raw, err := service.GenerateRoleToken(secret, role, audience, issuer, time.Hour)
	require.NoError(t, err)
	return raw
}

func (ts *testServer) do(t *testing.T, method, path, role, body string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func assertEnvelope(t *testing.T, body map[string]any, status int, message string) {
	t.Helper()
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, status, body["error"])
	assert.Equal(t, message, body["message"])
}

func names(body map[string]any, key, field string) []any {
	var out []any
	for _, row := range body[key].([]any) {
		out = append(out, row.(map[string]any)[field])
	}
	return out
}

// --- actors ---

func TestListActors(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/actors", service.RoleAssistant, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, []any{"Robert Downey Jr.", "Shia LaBeouf"}, names(body, "actors", "name"))

	first := body["actors"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, first["id"])
	assert.EqualValues(t, 54, first["age"])
	assert.Equal(t, "Male", first["gender"])
}

func TestListActors_Empty(t *testing.T) {
	ts := newTestServer(t, false)
	ts.actors.rows = map[int]model.Actor{}

	status, body := ts.do(t, http.MethodGet, "/actors", service.RoleAssistant, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["actors"])
	assert.EqualValues(t, 0, body["total"])
}

func TestListActors_RequiresToken(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/actors", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assertEnvelope(t, body, 401, "Authorization header is expected.")
}

func TestCreateActor(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/actors", service.RoleProducer, `{"name":"Megan Fox","age":37,"gender":"Female"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["new_actor_id"])
	assert.Len(t, body["actors"], 3)

	stored, _ := ts.actors.FindByID(context.Background(), 3)
	require.NotNil(t, stored)
	assert.Equal(t, "Megan Fox", stored.Name)
}

func TestCreateActor_OptionalFieldsNull(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/actors", service.RoleDirector, `{"name":"Extra"}`)
	require.Equal(t, http.StatusOK, status)
	last := body["actors"].([]any)[2].(map[string]any)
	assert.Nil(t, last["age"])
	assert.Nil(t, last["gender"])
}

func TestCreateActor_Forbidden(t *testing.T) {
	status, body := newTestServer(t, false).do(t, http.MethodPost, "/actors", service.RoleAssistant, `{"name":"Nobody"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assertEnvelope(t, body, 401, "Permission not found.")

	status, body = newTestServer(t, true).do(t, http.MethodPost, "/actors", service.RoleAssistant, `{"name":"Nobody"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assertEnvelope(t, body, 403, "Permission not found.")
}

func TestCreateActor_Unprocessable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no body", ""},
		{"invalid json", `{"name":`},
		{"array", `["Megan Fox"]`},
		{"empty object", `{}`},
		{"missing name", `{"age":30}`},
		{"empty name", `{"name":""}`},
		{"null name", `{"name":null}`},
		{"negative age", `{"name":"Kid","age":-1}`},
		{"age as text", `{"name":"Kid","age":"ten"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			status, body := ts.do(t, http.MethodPost, "/actors", service.RoleProducer, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assertEnvelope(t, body, 422, "unprocessable")
			assert.Len(t, ts.actors.rows, 2)
		})
	}
}

func TestUpdateActor_Partial(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPatch, "/actors/1", service.RoleDirector, `{"age":55,"gender":null}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["updated_id"])

	first := body["actors"].([]any)[0].(map[string]any)
	assert.Equal(t, "Robert Downey Jr.", first["name"])
	assert.EqualValues(t, 55, first["age"])
	assert.Equal(t, "Male", first["gender"])
}

func TestUpdateActor_NullOrUnknownFieldsKeepRecord(t *testing.T) {
	for _, body := range []string{`{"gender":null}`, `{"height":180}`, `{"name":null,"age":null}`} {
		t.Run(body, func(t *testing.T) {
			ts := newTestServer(t, false)

			status, resp := ts.do(t, http.MethodPatch, "/actors/1", service.RoleDirector, body)
			require.Equal(t, http.StatusOK, status)
			assert.EqualValues(t, 1, resp["updated_id"])

			first := resp["actors"].([]any)[0].(map[string]any)
			assert.Equal(t, "Robert Downey Jr.", first["name"])
			assert.EqualValues(t, 54, first["age"])
			assert.Equal(t, "Male", first["gender"])
		})
	}
}

func TestUpdateActor_DeletedMeanwhile(t *testing.T) {
	ts := newTestServer(t, false)
	ts.actors.beforeWrite = func() { ts.actors.remove(1) }

	status, body := ts.do(t, http.MethodPatch, "/actors/1", service.RoleDirector, `{"age":60}`)
	assert.Equal(t, http.StatusNotFound, status)
	assertEnvelope(t, body, 404, "Resource Not Found")

	ts.actors.beforeWrite = nil
	_, list := ts.do(t, http.MethodGet, "/actors", service.RoleAssistant, "")
	assert.Equal(t, []any{"Shia LaBeouf"}, names(list, "actors", "name"))
}

func TestUpdateActor_Idempotent(t *testing.T) {
	ts := newTestServer(t, false)

	_, first := ts.do(t, http.MethodPatch, "/actors/2", service.RoleProducer, `{"name":"Shia"}`)
	_, second := ts.do(t, http.MethodPatch, "/actors/2", service.RoleProducer, `{"name":"Shia"}`)
	assert.Equal(t, first, second)
}

func TestUpdateActor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"unknown id", "/actors/99", `{"name":"Ghost"}`, 404, "Resource Not Found"},
		{"non-integer id", "/actors/abc", `{"name":"Ghost"}`, 404, "Resource Not Found"},
		{"lookup before body", "/actors/99", `not json`, 404, "Resource Not Found"},
		{"no body", "/actors/1", ``, 422, "unprocessable"},
		{"empty object", "/actors/1", `{}`, 422, "unprocessable"},
		{"json null", "/actors/1", `null`, 422, "unprocessable"},
		{"array", "/actors/1", `[{"name":"X"}]`, 422, "unprocessable"},
		{"empty name", "/actors/1", `{"name":""}`, 422, "unprocessable"},
		{"negative age", "/actors/1", `{"age":-3}`, 422, "unprocessable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			status, body := ts.do(t, http.MethodPatch, tt.path, service.RoleDirector, tt.body)
			assert.Equal(t, tt.status, status)
			assertEnvelope(t, body, tt.status, tt.message)

			unchanged, _ := ts.actors.FindByID(context.Background(), 1)
			assert.Equal(t, "Robert Downey Jr.", unchanged.Name)
		})
	}
}

func TestDeleteActor(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodDelete, "/actors/1", service.RoleDirector, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["deleted_id"])
	assert.Equal(t, []any{"Shia LaBeouf"}, names(body, "actors", "name"))

	status, body = ts.do(t, http.MethodGet, "/actors", service.RoleAssistant, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = ts.do(t, http.MethodDelete, "/actors/1", service.RoleDirector, "")
	assert.Equal(t, http.StatusNotFound, status)
	assertEnvelope(t, body, 404, "Resource Not Found")
}

// --- movies ---

func TestListMovies_ReleaseFormat(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/movies", service.RoleAssistant, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, []any{"2007 July 03", "2008 May 02"}, names(body, "movies", "release"))
}

func TestCreateMovie(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/movies", service.RoleProducer, `{"title":"Tropic Thunder","release":"2008-08-13"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["new_movie_id"])
	last := body["movies"].([]any)[2].(map[string]any)
	assert.Equal(t, "Tropic Thunder", last["title"])
	assert.Equal(t, "2008 August 13", last["release"])

	status, body = ts.do(t, http.MethodPost, "/movies", service.RoleProducer, `{"title":"Untitled"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["movies"].([]any)[3].(map[string]any)["release"])
}

func TestCreateMovie_DirectorForbidden(t *testing.T) {
	status, body := newTestServer(t, true).do(t, http.MethodPost, "/movies", service.RoleDirector, `{"title":"Nope"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assertEnvelope(t, body, 403, "Permission not found.")
}

func TestCreateMovie_Unprocessable(t *testing.T) {
	for _, body := range []string{`{}`, `{"title":""}`, `{"title":"X","release":"someday"}`, `{"title":"X","release":""}`} {
		ts := newTestServer(t, false)
		status, resp := ts.do(t, http.MethodPost, "/movies", service.RoleProducer, body)
		assert.Equal(t, http.StatusUnprocessableEntity, status, body)
		assertEnvelope(t, resp, 422, "unprocessable")
	}
}

func TestUpdateMovie_KeepsRelease(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPatch, "/movies/2", service.RoleDirector, `{"title":"Iron Man 2"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["updated_id"])
	updated := body["movies"].([]any)[1].(map[string]any)
	assert.Equal(t, "Iron Man 2", updated["title"])
	assert.Equal(t, "2008 May 02", updated["release"])
}

func TestUpdateMovie_NullReleaseKeepsValue(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPatch, "/movies/1", service.RoleDirector, `{"release":null}`)
	require.Equal(t, http.StatusOK, status)
	first := body["movies"].([]any)[0].(map[string]any)
	assert.Equal(t, "2007 July 03", first["release"])
}

func TestDeleteMovie_DeletedMeanwhile(t *testing.T) {
	ts := newTestServer(t, false)
	ts.movies.beforeWrite = func() { ts.movies.remove(2) }

	status, body := ts.do(t, http.MethodDelete, "/movies/2", service.RoleProducer, "")
	assert.Equal(t, http.StatusNotFound, status)
	assertEnvelope(t, body, 404, "Resource Not Found")
}

func TestUpdateMovie_Release(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPatch, "/movies/1", service.RoleDirector, `{"release":"2007 June 28"}`)
	require.Equal(t, http.StatusOK, status)
	first := body["movies"].([]any)[0].(map[string]any)
	assert.Equal(t, "Transformers", first["title"])
	assert.Equal(t, "2007 June 28", first["release"])
}

func TestUpdateMovie_BadReleaseLeavesRecord(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPatch, "/movies/1", service.RoleDirector, `{"title":"Changed","release":"31/02/2007"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assertEnvelope(t, body, 422, "unprocessable")

	movie, _ := ts.movies.FindByID(context.Background(), 1)
	assert.Equal(t, "Transformers", movie.Title)
}

func TestDeleteMovie(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodDelete, "/movies/2", service.RoleDirector, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assertEnvelope(t, body, 401, "Permission not found.")

	status, body = ts.do(t, http.MethodDelete, "/movies/2", service.RoleProducer, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["deleted_id"])
	assert.Equal(t, []any{"Transformers"}, names(body, "movies", "title"))

	status, body = ts.do(t, http.MethodDelete, "/movies/2", service.RoleProducer, "")
	assert.Equal(t, http.StatusNotFound, status)
	assertEnvelope(t, body, 404, "Resource Not Found")
}

// --- routing & failures ---

func TestRouting_Envelopes(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPut, "/actors", service.RoleProducer, `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assertEnvelope(t, body, 405, "method not allowed")

	status, body = ts.do(t, http.MethodGet, "/directors", service.RoleProducer, "")
	assert.Equal(t, http.StatusNotFound, status)
	assertEnvelope(t, body, 404, "Resource Not Found")

	status, body = ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestStorageFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.movies.err = errors.New("connection refused")

	status, body := ts.do(t, http.MethodGet, "/movies", service.RoleAssistant, "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assertEnvelope(t, body, 500, "internal server error")
}

func TestExpiredToken(t *testing.T) {
	ts := newTestServer(t, false)
	raw, err := service.GenerateRoleToken(secret, service.RoleProducer, audience, issuer, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertEnvelope(t, body, 401, "Token expired.")
}

func TestCreateActor_IDsUniqueAndListed(t *testing.T) {
	ts := newTestServer(t, false)

	_, first := ts.do(t, http.MethodPost, "/actors", service.RoleProducer, `{"name":"A","age":1,"gender":"m"}`)
	_, second := ts.do(t, http.MethodPost, "/actors", service.RoleProducer, `{"name":"A","age":1,"gender":"m"}`)
	assert.NotEqual(t, first["new_actor_id"], second["new_actor_id"])

	_, list := ts.do(t, http.MethodGet, "/actors", service.RoleAssistant, "")
	var ids []any
	for _, row := range list["actors"].([]any) {
		ids = append(ids, row.(map[string]any)["id"])
	}
	assert.Contains(t, ids, first["new_actor_id"])
	assert.Contains(t, ids, second["new_actor_id"])
}

func TestListActors_MissingPermission(t *testing.T) {
	ts := newTestServer(t, false)
	raw, err := service.GenerateToken(secret, service.TokenRequest{
		Subject:     "movies-only",
		Permissions: []string{service.PermGetMovies},
		Audience:    audience,
		Issuer:      issuer,
		Expiry:      time.Hour,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/actors", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertEnvelope(t, body, 401, "Permission not found.")
}
