package worldid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sampleProof() Proof {
	return Proof{
		MerkleRoot:     "0xroot",
		NullifierHash:  "0x1111111111111111111111111111111111111111111111111111111111111111",
		Proof:          "0xproof",
		CredentialType: "orb",
		Action:         "poll-completion",
		Signal:         "7",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestVerifySuccess(t *testing.T) {
	var gotAuth string
	var gotProof Proof
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotProof); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	if err := client.Verify(context.Background(), sampleProof()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotProof.NullifierHash != sampleProof().NullifierHash {
		t.Fatalf("proof not forwarded: %#v", gotProof)
	}
}

func TestVerifyRejectedProof(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid merkle root"})
	})

	err := client.Verify(context.Background(), sampleProof())
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid merkle root") {
		t.Fatalf("upstream detail missing from error: %v", err)
	}
}

func TestVerifyUnsuccessfulBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false})
	})

	if err := client.Verify(context.Background(), sampleProof()); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof, got %v", err)
	}
}

func TestVerifyUpstreamFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.Verify(context.Background(), sampleProof())
	if err == nil || errors.Is(err, ErrInvalidProof) {
		t.Fatalf("5xx must not map to an invalid proof, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}
