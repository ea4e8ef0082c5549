package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groundtruth/internal/config"
	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"

	"github.com/gorilla/websocket"
)

func setupHub(t *testing.T) *HubService {
	t.Helper()

	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	return NewHubService(log, metrics.New())
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := setupHub(t)

	done := make(chan struct{})
	go func() {
		// Run is not started, so the queue fills up and the rest is dropped.
		for i := 0; i < 200; i++ {
			hub.Broadcast("s1", []byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}

func TestStopEndsRun(t *testing.T) {
	hub := setupHub(t)

	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()

	hub.Broadcast("nobody", []byte(`{}`))
	hub.Stop()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Unregister after Stop must not hang.
	unregistered := make(chan struct{})
	go func() {
		hub.Unregister("s1", nil)
		close(unregistered)
	}()
	select {
	case <-unregistered:
	case <-time.After(2 * time.Second):
		t.Fatal("Unregister blocked after Stop")
	}

	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("Expected no clients, got %d", n)
	}
}

func TestSnapshotPrecedesLaterUpdates(t *testing.T) {
	hub := setupHub(t)
	go hub.Run()
	defer hub.Stop()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// An update landing while the snapshot is taken must still reach the viewer.
		hub.Register("s1", conn, func() ([]byte, error) {
			hub.Broadcast("s1", []byte(`after`))
			return []byte(`snapshot`), nil
		})
		defer hub.Unregister("s1", conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	for _, want := range []string{"snapshot", "after"} {
		_, got, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Reading %q failed: %v", want, err)
		}
		if string(got) != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
	if n := hub.GetClientCount(); n != 1 {
		t.Errorf("Expected 1 viewer, got %d", n)
	}
}
