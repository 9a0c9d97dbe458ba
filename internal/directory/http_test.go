package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPClient(HTTPClientOptions{}); err == nil {
		t.Fatalf("expected error when base URL is empty")
	}
}

func TestHTTPClientGetProfile(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/users/7":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"first_name":"Jane","last_name":"Doe","headshot_ref":"jane.jpg","roles":["loan_officer","Administrator"]}`))
		case "/users/8":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database offline"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL + "/", Token: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	ctx := context.Background()

	profile, err := client.GetProfile(ctx, 7)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if profile.DisplayName() != "Jane Doe" || profile.HeadshotRef != "jane.jpg" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}

	admin, err := client.IsAdministrator(ctx, 7)
	if err != nil || !admin {
		t.Fatalf("expected user 7 to be administrator, got %v (%v)", admin, err)
	}

	if _, err := client.GetProfile(ctx, 99); !eris.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	admin, err = client.IsAdministrator(ctx, 99)
	if err != nil || admin {
		t.Fatalf("expected unknown user not to be administrator, got %v (%v)", admin, err)
	}

	if _, err := client.GetProfile(ctx, 8); err == nil || eris.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestHTTPClientIsGroupMember(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/groups/3/members/5" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}
	ctx := context.Background()

	member, err := client.IsGroupMember(ctx, 3, 5)
	if err != nil || !member {
		t.Fatalf("expected membership, got %v (%v)", member, err)
	}

	member, err = client.IsGroupMember(ctx, 3, 6)
	if err != nil || member {
		t.Fatalf("expected no membership, got %v (%v)", member, err)
	}
}

func TestHTTPClientHonoursContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.GetProfile(ctx, 1); err == nil {
		t.Fatalf("expected timeout error")
	}
}
