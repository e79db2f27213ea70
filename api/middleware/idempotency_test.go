package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

type fakeStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

var checkoutPolicy = IdempotencyPolicy{TTL: 48 * time.Hour, Required: true}

func checkoutCall(body, key, session string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/public/tenants/abc/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	req.Header.Set(CartSessionHeader, session)
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyRequiredRejectsMissingKey(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	Idempotency(newFakeStore(), checkoutPolicy, nil)(handler).ServeHTTP(rec, checkoutCall(`{"customerName":"Maria"}`, "", "sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyOptionalPassesWithoutKey(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	mw := Idempotency(store, IdempotencyPolicy{}, nil)(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/notifications/read-all", nil)
	mw.ServeHTTP(httptest.NewRecorder(), req)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":"1"}`))
	})
	mw := Idempotency(store, checkoutPolicy, nil)(handler)

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, checkoutCall(`{"customerName":"Maria"}`, "abc", "sess-1"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	replay := httptest.NewRecorder()
	mw.ServeHTTP(replay, checkoutCall(`{"customerName":"Maria"}`, "abc", "sess-1"))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, `{"orderId":"1"}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, 48*time.Hour, ttl, key)
	}

	// another cart session owns a different scope
	mw.ServeHTTP(httptest.NewRecorder(), checkoutCall(`{"customerName":"Maria"}`, "abc", "sess-2"))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnServerFailure(t *testing.T) {
	store := newFakeStore()
	status := http.StatusServiceUnavailable
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	})
	mw := Idempotency(store, checkoutPolicy, nil)(handler)

	mw.ServeHTTP(httptest.NewRecorder(), checkoutCall(`{}`, "retry", "sess-1"))
	assert.Empty(t, store.data)

	status = http.StatusCreated
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, checkoutCall(`{}`, "retry", "sess-1"))

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyReleasesKeyWhenHandlerPanics(t *testing.T) {
	store := newFakeStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	mw := Idempotency(store, checkoutPolicy, nil)(handler)

	assert.Panics(t, func() {
		mw.ServeHTTP(httptest.NewRecorder(), checkoutCall(`{}`, "k", "sess-1"))
	})
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsBodyChange(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	mw := Idempotency(newFakeStore(), checkoutPolicy, nil)(handler)

	mw.ServeHTTP(httptest.NewRecorder(), checkoutCall(`{"customerName":"Maria"}`, "xyz", "sess-1"))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, checkoutCall(`{"customerName":"Ana"}`, "xyz", "sess-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsConcurrentRepeat(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var mw http.Handler
	calls := 0
	mw = Idempotency(store, checkoutPolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if inner == nil {
			// the same submission arrives while this one is still being handled
			inner = httptest.NewRecorder()
			mw.ServeHTTP(inner, checkoutCall(`{"customerName":"Maria"}`, "dup", "sess-1"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, checkoutCall(`{"customerName":"Maria"}`, "dup", "sess-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyWhenRecordCannotBeStored(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })

	rec := httptest.NewRecorder()
	Idempotency(store, checkoutPolicy, nil)(handler).ServeHTTP(rec, checkoutCall(`{}`, "k", "sess-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, store.data, "an unsaved response must not leave a pending reservation behind")
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("handler must not run") })

	rec := httptest.NewRecorder()
	Idempotency(newFakeStore(), checkoutPolicy, nil)(handler).ServeHTTP(rec, checkoutCall(`{}`, strings.Repeat("k", maxIdempotencyKey+1), "sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyWithoutStoreIsPassThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	Idempotency(nil, checkoutPolicy, nil)(handler).ServeHTTP(httptest.NewRecorder(), checkoutCall(`{}`, "", "sess-1"))

	assert.True(t, called)
}
