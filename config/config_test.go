package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/schemarest/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 15s

database:
  driver: "sqlite"
  dsn: ":memory:"

schemas:
  dir: "testdata/schemas"

client:
  retries: 5
  retry_delay: 250ms
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %s, want :memory:", cfg.Database.DSN)
	}
	if cfg.Schemas.Dir != "testdata/schemas" {
		t.Errorf("Schemas.Dir = %s, want testdata/schemas", cfg.Schemas.Dir)
	}
	if cfg.Client.Retries != 5 {
		t.Errorf("Client.Retries = %d, want 5", cfg.Client.Retries)
	}
	if cfg.Client.RetryDelay != 250*time.Millisecond {
		t.Errorf("Client.RetryDelay = %v, want 250ms", cfg.Client.RetryDelay)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
database:
  driver: "sqlite"
  dsn: "test.db"
`

	cfg := writeAndLoad(t, content)

	// Check defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Schemas.Dir != "schemas" {
		t.Errorf("default Schemas.Dir = %s, want schemas", cfg.Schemas.Dir)
	}
	if cfg.Client.Retries != 3 {
		t.Errorf("default Client.Retries = %d, want 3", cfg.Client.Retries)
	}
	if cfg.Client.RetryDelay != 500*time.Millisecond {
		t.Errorf("default Client.RetryDelay = %v, want 500ms", cfg.Client.RetryDelay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_SCHEMAS_DIR", "/etc/schemarest/schemas")
	defer os.Unsetenv("TEST_SCHEMAS_DIR")

	content := `
schemas:
  dir: "${TEST_SCHEMAS_DIR}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Schemas.Dir != "/etc/schemarest/schemas" {
		t.Errorf("Schemas.Dir = %s, want /etc/schemarest/schemas", cfg.Schemas.Dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("SCHEMAREST_DATABASE_DRIVER", "memory")
	os.Setenv("SCHEMAREST_SERVER_PORT", "9999")
	defer os.Unsetenv("SCHEMAREST_DATABASE_DRIVER")
	defer os.Unsetenv("SCHEMAREST_SERVER_PORT")

	content := `
database:
  driver: "sqlite"
  dsn: "test.db"

server:
  port: 8081
`

	cfg := writeAndLoad(t, content)

	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %s, want memory (env override)", cfg.Database.Driver)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	content := `
database:
  driver: "postgres"
  dsn: "test.db"
`

	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for invalid database.driver")
	}
}

func TestLoad_MissingDSN(t *testing.T) {
	os.Setenv("SCHEMAREST_DATABASE_DSN", "")
	defer os.Unsetenv("SCHEMAREST_DATABASE_DSN")

	content := `
database:
  driver: "bolt"
  dsn: ""
`

	// bolt needs a path; the sqlite default DSN must not leak in
	cfg, err := writeAndLoadErr(t, content)
	if err == nil && cfg.Database.DSN == "" {
		t.Fatal("expected error for bolt driver without dsn")
	}
}

func TestLoad_MemoryDriverNeedsNoDSN(t *testing.T) {
	content := `
database:
  driver: "memory"
`

	cfg := writeAndLoad(t, content)
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %s, want memory", cfg.Database.Driver)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	content := `
database:
  driver: "memory"

logging:
  level: "loud"
`

	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for invalid logging.level")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	os.Setenv("SCHEMAREST_DATABASE_DRIVER", "memory")
	defer os.Unsetenv("SCHEMAREST_DATABASE_DRIVER")

	cfg, err := config.LoadWithFallback("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %s, want memory", cfg.Database.Driver)
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.Load(path)
}
