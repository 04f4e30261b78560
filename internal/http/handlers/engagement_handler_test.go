package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/http/middleware"
	"github.com/tbourn/go-design-engagement/internal/services"
	"github.com/tbourn/go-design-engagement/internal/txn"
)

// ---------- stubs ----------

type stubEngagement struct {
	toggle    func(designID, actorID string) (*services.LikeResult, error)
	set       func(designID, actorID string, liked bool) (*services.LikeResult, error)
	likeState func(designID, actorID string) (*services.LikeState, error)
	boost     func(designID, actorID string) (*services.BoostResult, error)
	boostSt   func(designID, actorID string) (*services.BoostState, error)

	mu    sync.Mutex
	calls int
}

func (s *stubEngagement) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubEngagement) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubEngagement) ToggleLike(_ context.Context, d, a string) (*services.LikeResult, error) {
	s.hit()
	return s.toggle(d, a)
}

func (s *stubEngagement) SetLike(_ context.Context, d, a string, liked bool) (*services.LikeResult, error) {
	s.hit()
	return s.set(d, a, liked)
}

func (s *stubEngagement) GetLikeState(_ context.Context, d, a string) (*services.LikeState, error) {
	s.hit()
	return s.likeState(d, a)
}

func (s *stubEngagement) Boost(_ context.Context, d, a string) (*services.BoostResult, error) {
	s.hit()
	return s.boost(d, a)
}

func (s *stubEngagement) GetBoostState(_ context.Context, d, a string) (*services.BoostState, error) {
	s.hit()
	return s.boostSt(d, a)
}

// memStore is an in-memory IdempotencyStore.
type memStore struct {
	mu   sync.Mutex
	recs map[string]domain.Idempotency
}

func newMemStore() *memStore { return &memStore{recs: map[string]domain.Idempotency{}} }

func (m *memStore) Lookup(_ context.Context, userID, designID, key string, _ time.Time) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[userID+"|"+designID+"|"+key]
	if !ok {
		return nil, errors.New("not found")
	}
	return &rec, nil
}

func (m *memStore) Save(_ context.Context, userID, designID, key, op string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[userID+"|"+designID+"|"+key] = domain.Idempotency{
		UserID: userID, DesignID: designID, Key: key, Operation: op, Status: status, Body: string(body),
	}
	return nil
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newEngagementRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h.Now = func() time.Time { return fixedNow }
	r := gin.New()
	r.Use(middleware.ActorIdentity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.GET("/designs/:id/like", h.GetLikeState)
	r.POST("/designs/:id/like", h.ToggleLike)
	r.PUT("/designs/:id/like", h.SetLike)
	r.GET("/designs/:id/boost", h.GetBoostState)
	r.POST("/designs/:id/boost", h.Boost)
	return r
}

func do(r http.Handler, method, path, actor string, body string, hdr ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if actor != "" {
		req.Header.Set(middleware.HeaderUserID, actor)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

// ---------- tests ----------

func TestToggleLike_ActorAndIDValidation(t *testing.T) {
	svc := &stubEngagement{toggle: func(d, a string) (*services.LikeResult, error) {
		return &services.LikeResult{Liked: true, LikeCount: 1}, nil
	}}
	r := newEngagementRouter(New(svc, nil, nil))

	w := do(r, http.MethodPost, "/designs/d1/like", "", "")
	if w.Code != http.StatusUnauthorized || decodeErr(t, w).Code != ErrCodeUnauthorized {
		t.Fatalf("anonymous: %d %s", w.Code, w.Body.String())
	}

	long := strings.Repeat("x", maxIDLen+1)
	w = do(r, http.MethodPost, "/designs/"+long+"/like", "alice", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("long id: %d", w.Code)
	}
	if svc.Calls() != 0 {
		t.Fatalf("service must not be called on invalid input")
	}

	w = do(r, http.MethodPost, "/designs/d1/like", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", w.Code, w.Body.String())
	}
	var res services.LikeResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || !res.Liked || res.LikeCount != 1 {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
}

func TestEngagement_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", services.ErrDesignNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"invalid", fmt.Errorf("%w: actor id is too long", services.ErrInvalidInput), http.StatusBadRequest, ErrCodeBadRequest},
		{"busy", fmt.Errorf("%w: %w", services.ErrStorageBusy, txn.ErrTransient), http.StatusServiceUnavailable, ErrCodeStorageBusy},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubEngagement{toggle: func(string, string) (*services.LikeResult, error) { return nil, tc.err }}
			r := newEngagementRouter(New(svc, nil, nil))
			w := do(r, http.MethodPost, "/designs/d1/like", "alice", "")
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if got := decodeErr(t, w).Code; got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
			if tc.status == http.StatusServiceUnavailable && w.Header().Get("Retry-After") != "1" {
				t.Fatalf("503 must carry Retry-After")
			}
		})
	}
}

func TestBoost_CooldownResponse(t *testing.T) {
	next := fixedNow.Add(36*time.Hour + 500*time.Millisecond)
	svc := &stubEngagement{boost: func(string, string) (*services.BoostResult, error) {
		return nil, &services.CooldownError{NextAvailableAt: next}
	}}
	r := newEngagementRouter(New(svc, nil, nil))

	w := do(r, http.MethodPost, "/designs/d1/boost", "alice", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "129601" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body CooldownResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != ErrCodeBoostCooldown || !body.NextAvailableAt.Equal(next) {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestBoost_Success(t *testing.T) {
	next := fixedNow.Add(7 * 24 * time.Hour)
	svc := &stubEngagement{boost: func(d, a string) (*services.BoostResult, error) {
		if d != "d1" || a != "alice" {
			t.Fatalf("unexpected args %q %q", d, a)
		}
		return &services.BoostResult{Boosted: true, BoostCount: 3, UserBoostCount: 1, NextAvailableAt: next}, nil
	}}
	r := newEngagementRouter(New(svc, nil, nil))

	w := do(r, http.MethodPost, "/designs/d1/boost", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res services.BoostResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Boosted || res.BoostCount != 3 || res.UserBoostCount != 1 || !res.NextAvailableAt.Equal(next) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestToggleLike_IdempotentReplay(t *testing.T) {
	liked := false
	count := int64(0)
	svc := &stubEngagement{toggle: func(string, string) (*services.LikeResult, error) {
		liked = !liked
		if liked {
			count++
		} else {
			count--
		}
		return &services.LikeResult{Liked: liked, LikeCount: count}, nil
	}}
	store := newMemStore()
	r := newEngagementRouter(New(svc, nil, store))

	first := do(r, http.MethodPost, "/designs/d1/like", "alice", "", middleware.HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusOK {
		t.Fatalf("first: %d", first.Code)
	}
	second := do(r, http.MethodPost, "/designs/d1/like", "alice", "", middleware.HeaderIdempotencyKey, "k-1")
	if second.Code != http.StatusOK {
		t.Fatalf("replay: %d", second.Code)
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	if svc.Calls() != 1 {
		t.Fatalf("toggle must run once, ran %d", svc.Calls())
	}

	// same key, another actor: independent
	other := do(r, http.MethodPost, "/designs/d1/like", "bob", "", middleware.HeaderIdempotencyKey, "k-1")
	if other.Code != http.StatusOK || other.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("other actor should not replay")
	}

	// same key reused for a boost on the same design
	svc.boost = func(string, string) (*services.BoostResult, error) {
		t.Fatalf("boost must not run")
		return nil, nil
	}
	w := do(r, http.MethodPost, "/designs/d1/boost", "alice", "", middleware.HeaderIdempotencyKey, "k-1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("key reuse across operations: %d", w.Code)
	}
}

func TestToggleLike_ErrorsAreNotStored(t *testing.T) {
	fail := true
	svc := &stubEngagement{toggle: func(string, string) (*services.LikeResult, error) {
		if fail {
			return nil, services.ErrDesignNotFound
		}
		return &services.LikeResult{Liked: true, LikeCount: 1}, nil
	}}
	store := newMemStore()
	r := newEngagementRouter(New(svc, nil, store))

	if w := do(r, http.MethodPost, "/designs/d1/like", "alice", "", middleware.HeaderIdempotencyKey, "k-2"); w.Code != http.StatusNotFound {
		t.Fatalf("first: %d", w.Code)
	}
	fail = false
	w := do(r, http.MethodPost, "/designs/d1/like", "alice", "", middleware.HeaderIdempotencyKey, "k-2")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("retry after failure must execute: %d", w.Code)
	}
}

func TestSetLike_Binding(t *testing.T) {
	var got []bool
	svc := &stubEngagement{set: func(_, _ string, liked bool) (*services.LikeResult, error) {
		got = append(got, liked)
		return &services.LikeResult{Liked: liked}, nil
	}}
	r := newEngagementRouter(New(svc, nil, nil))

	if w := do(r, http.MethodPut, "/designs/d1/like", "alice", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing liked: %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/designs/d1/like", "alice", `{"liked":"yes"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("wrong type: %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/designs/d1/like", "alice", `{"liked":false}`); w.Code != http.StatusOK {
		t.Fatalf("liked=false: %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/designs/d1/like", "alice", `{"liked":true}`); w.Code != http.StatusOK {
		t.Fatalf("liked=true: %d", w.Code)
	}
	if len(got) != 2 || got[0] || !got[1] {
		t.Fatalf("unexpected desired states %v", got)
	}
}

func TestStateEndpoints(t *testing.T) {
	next := fixedNow.Add(time.Hour)
	svc := &stubEngagement{
		likeState: func(string, string) (*services.LikeState, error) { return &services.LikeState{Liked: true}, nil },
		boostSt: func(string, string) (*services.BoostState, error) {
			return &services.BoostState{Boosted: true, UserBoostCount: 2, CanBoost: false, NextAvailableAt: &next}, nil
		},
	}
	r := newEngagementRouter(New(svc, nil, nil))

	w := do(r, http.MethodGet, "/designs/d1/like", "alice", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"liked":true`) {
		t.Fatalf("like state: %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodGet, "/designs/d1/boost", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("boost state: %d", w.Code)
	}
	var st services.BoostState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Boosted || st.UserBoostCount != 2 || st.CanBoost || st.NextAvailableAt == nil || !st.NextAvailableAt.Equal(next) {
		t.Fatalf("unexpected state %+v", st)
	}
	if w := do(r, http.MethodGet, "/designs/d1/boost", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous boost state: %d", w.Code)
	}
}
