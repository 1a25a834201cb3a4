package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"boardsync/internal/api"
	"boardsync/internal/directory"
	"boardsync/internal/models"
	"boardsync/internal/registry"
	"boardsync/internal/session"
	"boardsync/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := api.NewHandlers(zap.NewNop().Sugar(), session.NewHub(), registry.New(), store.NewMemStore(), nil, []byte("test-secret"))
	server := httptest.NewServer(New(h))
	t.Cleanup(server.Close)
	return server
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(t)

	for _, path := range []string{"/api/v1/healthz", "/api/v1/readyz"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("%s request failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestJoinRoomRoute(t *testing.T) {
	server := newTestServer(t)

	body, _ := json.Marshal(models.JoinRequest{RoomID: "abcd"})
	resp, err := http.Post(server.URL+"/api/v1/rooms/join", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var desc models.RoomDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.RoomID != "abcd" || desc.Token == "" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestRoomInfoRoute(t *testing.T) {
	server := newTestServer(t)

	body, _ := json.Marshal(models.JoinRequest{RoomID: "abcd"})
	resp, err := http.Post(server.URL+"/api/v1/rooms/join", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/rooms/abcd")
	if err != nil {
		t.Fatalf("info request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info models.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.RoomID != "abcd" || info.Participants != 0 {
		t.Fatalf("unexpected info: %+v", info)
	}

	resp, err = http.Get(server.URL + "/api/v1/rooms/nope")
	if err != nil {
		t.Fatalf("info request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", resp.StatusCode)
	}
}

func TestRoomInfoAnsweredByDirectory(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dir := directory.New(rdb, time.Hour)

	h := api.NewHandlers(zap.NewNop().Sugar(), session.NewHub(), registry.New(), store.NewMemStore(), dir, []byte("test-secret"))
	server := httptest.NewServer(New(h))
	t.Cleanup(server.Close)

	body, _ := json.Marshal(models.JoinRequest{RoomID: "abcd"})
	resp, err := http.Post(server.URL+"/api/v1/rooms/join", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	resp.Body.Close()

	if err := dir.SetParticipants(context.Background(), "abcd", 2); err != nil {
		t.Fatalf("set participants: %v", err)
	}

	resp, err = http.Get(server.URL + "/api/v1/rooms/abcd")
	if err != nil {
		t.Fatalf("info request failed: %v", err)
	}
	defer resp.Body.Close()
	var info models.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Participants != 2 {
		t.Fatalf("directory count must win: %+v", info)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
