package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const listBody = `{
	"data": [
		{"attributes": {
			"identifier": "a1",
			"name": "Survival",
			"status": "running",
			"allocation": {"ip": "198.51.100.7", "port": 25565},
			"limits": {"memory": 4096, "disk": 10240, "cpu": 200}
		}}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second), srv
}

func TestListServers(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listBody))
	})

	servers, err := client.ListServers(context.Background(), "secret-key")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("bad auth header: %q", gotAuth)
	}
	if gotPath != "/api/client" {
		t.Fatalf("bad path: %q", gotPath)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
	s := servers[0]
	if s.Identifier != "a1" || s.Status != "running" || s.Allocation.Port != 25565 || s.Limits.MemoryMB != 4096 {
		t.Fatalf("decoded server mismatch: %+v", s)
	}
}

func TestGetUsage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/client/servers/a1/resources" {
			t.Errorf("bad path: %q", r.URL.Path)
		}
		w.Write([]byte(`{"attributes": {"current_state": "running", "cpu_absolute": 42.5, "memory_bytes": 1024, "disk_bytes": 2048}}`))
	})

	usage, err := client.GetUsage(context.Background(), "key", "a1")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.State != "running" || usage.CPUPercent != 42.5 || usage.MemoryBytes != 1024 {
		t.Fatalf("decoded usage mismatch: %+v", usage)
	}
}

func TestSendPowerPostsSignal(t *testing.T) {
	var gotMethod, gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.SendPower(context.Background(), "key", "a1", "start"); err != nil {
		t.Fatalf("power: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if !strings.Contains(gotBody, `"signal":"start"`) {
		t.Fatalf("signal not in body: %s", gotBody)
	}
}

func TestMissingCredentialShortCircuits(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	if _, err := client.ListServers(context.Background(), ""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if err := client.SendPower(context.Background(), "", "a1", "start"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if requests != 0 {
		t.Fatalf("no network attempt expected, saw %d requests", requests)
	}
}

func TestNon2xxBecomesTransportError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>definitely not json</html>"))
	})

	_, err := client.ListServers(context.Background(), "key")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusBadGateway {
		t.Fatalf("status is %d", te.Status)
	}
	if !strings.Contains(te.Body, "not json") {
		t.Fatalf("body excerpt missing: %q", te.Body)
	}
}

func TestErrorBodyIsTruncated(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 4096)))
	})

	_, err := client.GetServer(context.Background(), "key", "a1")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if len(te.Body) > maxErrorBody {
		t.Fatalf("body not truncated: %d bytes", len(te.Body))
	}
}

func TestNetworkFailureBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(srv.URL, time.Second)
	srv.Close()

	_, err := client.ListServers(context.Background(), "key")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != 0 {
		t.Fatalf("network failure should carry no HTTP status, got %d", te.Status)
	}
}
