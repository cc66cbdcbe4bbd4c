package httpkit

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewClient_StampsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithTimeout(5 * time.Second))
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if !strings.HasPrefix(gotUA, "jarvis/") {
		t.Errorf("User-Agent = %q, want jarvis/ prefix", gotUA)
	}
}

func TestNewClient_RequestHeaderWins(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1.0")

	resp, err := NewClient().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if gotUA != "custom/1.0" {
		t.Errorf("User-Agent = %q, want custom/1.0", gotUA)
	}
}

func TestReadErrorBody(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("upstream exploded with a very long message"))
	if got := ReadErrorBody(rc, 16); got != "upstream explode" {
		t.Errorf("ReadErrorBody = %q", got)
	}
	if got := ReadErrorBody(nil, 16); got != "" {
		t.Errorf("ReadErrorBody(nil) = %q, want empty", got)
	}
}

func TestDialFailure(t *testing.T) {
	refused := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	if !dialFailure(refused) {
		t.Error("connection refused should be retryable")
	}
	reset := &net.OpError{Op: "read", Err: syscall.ECONNRESET}
	if dialFailure(reset) {
		t.Error("connection reset must not be retryable")
	}
	if dialFailure(io.EOF) {
		t.Error("io.EOF should not be retryable")
	}
}
