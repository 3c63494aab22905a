// Package worldid calls the Worldcoin developer API to verify proofs of
// personhood. Proof generation happens in the client widget; this is the
// server-side pass-through check only.
package worldid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://developer.worldcoin.org/api/v1/verify"

const maxErrorBodyBytes = 32 << 10 // 32 KiB

// ErrInvalidProof reports a proof the Worldcoin API rejected.
var ErrInvalidProof = errors.New("invalid World ID proof")

// Proof is the zero-knowledge proof bundle produced by the World ID widget.
type Proof struct {
	MerkleRoot     string `json:"merkle_root"`
	NullifierHash  string `json:"nullifier_hash"`
	Proof          string `json:"proof"`
	CredentialType string `json:"credential_type"`
	Action         string `json:"action"`
	Signal         string `json:"signal,omitempty"`
}

// Config holds client configuration.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client verifies proofs against the Worldcoin API.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Worldcoin API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("World ID API key required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		apiURL: apiURL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Verify submits the proof for verification. Rejected proofs return
// ErrInvalidProof; transport and upstream failures return plain errors.
func (c *Client) Verify(ctx context.Context, proof Proof) error {
	body, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("marshal proof: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		if resp.StatusCode < 500 {
			if msg != "" {
				return fmt.Errorf("%w: %s", ErrInvalidProof, msg)
			}
			return ErrInvalidProof
		}
		return fmt.Errorf("worldcoin API error %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !result.Success {
		return ErrInvalidProof
	}
	return nil
}

// readErrorMessage extracts a human message from an error response body.
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return strings.TrimSpace(string(body))
}
