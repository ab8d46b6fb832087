package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// memStore is a minimal in-memory UpdateStore for tests.
type memStore struct {
	mu      sync.Mutex
	updates [][]byte
}

func (s *memStore) Append(update []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, append([]byte(nil), update...))
	return uint64(len(s.updates)), nil
}

func (s *memStore) Since(cursor uint64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor >= uint64(len(s.updates)) {
		return nil, nil
	}
	out := make([][]byte, len(s.updates)-int(cursor))
	copy(out, s.updates[cursor:])
	return out, nil
}

func TestRouter_PostThenGetUpdates(t *testing.T) {
	store := &memStore{}
	router := NewRouter(&RouterConfig{Store: store})
	srv := httptest.NewServer(router)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/updates", "application/octet-stream", bytes.NewReader([]byte(fmt.Sprintf("update-%d", i))))
		if err != nil {
			t.Fatalf("POST /updates: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST /updates status = %d, want 200", resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/updates?since=1")
	if err != nil {
		t.Fatalf("GET /updates: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /updates status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(&RouterConfig{Store: &memStore{}})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_Ready_NoStore(t *testing.T) {
	router := NewRouter(&RouterConfig{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRouter_PeerAuth_RejectsMissingToken(t *testing.T) {
	router := NewRouter(&RouterConfig{
		Store:       &memStore{},
		RequireAuth: true,
		PeerToken:   "epat_secrettoken",
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/updates", "application/octet-stream", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("POST /updates: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRouter_PeerAuth_AcceptsValidToken(t *testing.T) {
	router := NewRouter(&RouterConfig{
		Store:       &memStore{},
		RequireAuth: true,
		PeerToken:   "epat_secrettoken",
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/updates", bytes.NewReader([]byte("x")))
	req.Header.Set("Authorization", "Bearer epat_secrettoken")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /updates: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Chain(panicky, Recover(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestID_SetsHeader(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
}
