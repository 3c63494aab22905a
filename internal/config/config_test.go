package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POLL_ESCROW_CONTRACT_ADDRESS", "0xEscrow")
	t.Setenv("FIRESTORE_PROJECT_ID", "poll-in-cash")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("POLLSYNC_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Chain.RPCURL != "https://sepolia.base.org" {
		t.Fatalf("rpc url = %q", cfg.Chain.RPCURL)
	}
	if cfg.Chain.Timeout != 30*time.Second {
		t.Fatalf("chain timeout = %v", cfg.Chain.Timeout)
	}
	if cfg.Chain.ContractAddress != "0xEscrow" {
		t.Fatalf("contract = %q", cfg.Chain.ContractAddress)
	}
	if cfg.WorldID.APIKey != "" {
		t.Fatalf("world id key should default empty")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log config: %+v", cfg.Log)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("cors origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadMissingContractAddress(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "poll-in-cash")
	t.Setenv("POLL_ESCROW_CONTRACT_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing contract address")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestLoadFileOverride(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "pollsync.yaml")
	override := `
server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5s
chain:
  rpc_url: https://mainnet.base.org
  contract_address: "0xOverride"
  timeout: 10s
`
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}
	t.Setenv("POLLSYNC_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Chain.ContractAddress != "0xOverride" {
		t.Fatalf("contract = %q", cfg.Chain.ContractAddress)
	}
	if cfg.Chain.Timeout != 10*time.Second {
		t.Fatalf("chain timeout = %v", cfg.Chain.Timeout)
	}
	// Unset sections keep their environment values.
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("cors origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadMissingOverrideFile(t *testing.T) {
	setRequired(t)
	t.Setenv("POLLSYNC_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing override file")
	}
}
