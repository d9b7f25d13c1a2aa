package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telnest/internal/admin"
	"telnest/internal/microservices/tcp"
	"telnest/internal/presence"
)

// --- MOCKS ---

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Connections() []tcp.ConnectionID {
	args := m.Called()
	return args.Get(0).([]tcp.ConnectionID)
}

func (m *MockRegistry) Count() int {
	return m.Called().Int(0)
}

func (m *MockRegistry) RemoteAddr(id tcp.ConnectionID) (net.Addr, bool) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(net.Addr), args.Bool(1)
}

func (m *MockRegistry) Disconnect(id tcp.ConnectionID) bool {
	return m.Called(id).Bool(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Add(ctx context.Context, s presence.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockStore) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]presence.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]presence.Session), args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

// --- SETUP ---

func setupRouter(reg admin.Registry, store presence.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return admin.NewRouter(admin.NewHandler(reg, store))
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

// --- TESTS ---

func TestHealth(t *testing.T) {
	r := setupRouter(new(MockRegistry), new(MockStore))
	w := do(r, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListConnections(t *testing.T) {
	reg := new(MockRegistry)
	alive, gone := tcp.NewConnectionID(), tcp.NewConnectionID()
	reg.On("Connections").Return([]tcp.ConnectionID{alive, gone})
	reg.On("RemoteAddr", alive).Return(&net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5000}, true)
	reg.On("RemoteAddr", gone).Return(nil, false)

	w := do(setupRouter(reg, new(MockStore)), http.MethodGet, "/connections")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count       int `json:"count"`
		Connections []struct {
			ID         string `json:"id"`
			RemoteAddr string `json:"remote_addr"`
		} `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Connections, 1)
	assert.Equal(t, alive.String(), body.Connections[0].ID)
	assert.Equal(t, "10.0.0.7:5000", body.Connections[0].RemoteAddr)
	reg.AssertExpectations(t)
}

func TestDisconnect(t *testing.T) {
	id := tcp.NewConnectionID()

	t.Run("registered", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Disconnect", id).Return(true)
		w := do(setupRouter(reg, new(MockStore)), http.MethodDelete, "/connections/"+id.String())
		assert.Equal(t, http.StatusNoContent, w.Code)
		reg.AssertExpectations(t)
	})

	t.Run("unknown", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Disconnect", id).Return(false)
		w := do(setupRouter(reg, new(MockStore)), http.MethodDelete, "/connections/"+id.String())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		reg := new(MockRegistry)
		w := do(setupRouter(reg, new(MockStore)), http.MethodDelete, "/connections/nope")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		reg.AssertNotCalled(t, "Disconnect", mock.Anything)
	})
}

func TestListPresence(t *testing.T) {
	store := new(MockStore)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.On("List", mock.Anything).Return([]presence.Session{{ID: "a", RemoteAddr: "1.2.3.4:5", ConnectedAt: at}}, nil)

	w := do(setupRouter(new(MockRegistry), store), http.MethodGet, "/presence")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1,"sessions":[{"id":"a","remote_addr":"1.2.3.4:5","connected_at":"2026-01-02T03:04:05Z"}]}`, w.Body.String())
}

func TestListPresence_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything).Return(nil, errors.New("redis down"))

	w := do(setupRouter(new(MockRegistry), store), http.MethodGet, "/presence")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "redis down")
}

func TestHandlerWithRealServer(t *testing.T) {
	server := tcp.NewServer(tcp.Options{})
	defer server.Stop()

	w := do(setupRouter(server, presence.NewMemoryStore()), http.MethodGet, "/connections")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"connections":[]}`, w.Body.String())
}
