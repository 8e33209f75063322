package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientUsesTimeout(t *testing.T) {
	client := NewClient(45 * time.Second)
	if client.Timeout() != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout())
	}
	if NewClient(0).Timeout() != DefaultTimeout {
		t.Fatalf("zero timeout should fall back to default")
	}
}

func TestOpenReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "encode-hub/") {
			t.Errorf("unexpected user agent %q", ua)
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	resp, err := WithHTTPClient(srv.Client()).Open(context.Background(), srv.URL+"/a.txt")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", body)
	}
	if resp.Size != int64(len("payload")) {
		t.Fatalf("unexpected size %d", resp.Size)
	}
}

func TestOpenTranslatesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := WithHTTPClient(srv.Client()).Open(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, ErrNotRetrievable) {
		t.Fatalf("expected ErrNotRetrievable, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestOpenWrapsNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(time.Second).Open(context.Background(), url+"/gone")
	if !errors.Is(err, ErrNotRetrievable) {
		t.Fatalf("expected ErrNotRetrievable for closed server, got %v", err)
	}
}
