package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestRunReturnsListenError(t *testing.T) {
	origListen := listenAndServe
	origExit := exitFunc
	t.Cleanup(func() {
		listenAndServe = origListen
		exitFunc = origExit
	})

	listenAndServe = func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler")
		}
		if server.Addr != ":9090" {
			t.Fatalf("expected addr :9090, got %s", server.Addr)
		}
		return errors.New("boom")
	}
	exitFunc = func(error) {}

	t.Setenv("PORT", "9090")
	t.Setenv("MONGO_URI", "")
	t.Setenv("REDIS_ADDR", "")

	if err := run(context.TODO()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestMainCompletes(t *testing.T) {
	origListen := listenAndServe
	origExit := exitFunc
	t.Cleanup(func() {
		listenAndServe = origListen
		exitFunc = origExit
	})

	listenAndServe = func(*http.Server) error { return nil }
	exitFunc = func(error) { t.Fatal("exitFunc should not be called") }

	t.Setenv("PORT", "9091")
	t.Setenv("MONGO_URI", "")
	t.Setenv("REDIS_ADDR", "")

	main()
}

func TestRunRejectsBadSweepSchedule(t *testing.T) {
	origListen := listenAndServe
	t.Cleanup(func() { listenAndServe = origListen })
	listenAndServe = func(*http.Server) error {
		t.Fatal("server should not start with a bad schedule")
		return nil
	}

	t.Setenv("PORT", "9092")
	t.Setenv("MONGO_URI", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ROOM_SWEEP_SCHEDULE", "not-a-schedule")

	if err := run(context.TODO()); err == nil {
		t.Fatal("expected schedule error")
	}
}
