package database

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Host != "db" || cfg.Port != 5432 || cfg.Name != "defaultdb" {
		t.Errorf("unexpected connection defaults: %+v", cfg)
	}
	if cfg.PoolSize != 10 || cfg.MaxOverflow != 10 || cfg.PoolTimeout != 30 || cfg.PoolRecycle != 1800 {
		t.Errorf("unexpected pool defaults: %+v", cfg)
	}
	if cfg.Driver != "postgresql+asyncpg" {
		t.Errorf("unexpected default driver %q", cfg.Driver)
	}
	if !cfg.PoolPrePing || cfg.Autocommit || cfg.Echo {
		t.Errorf("unexpected flag defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestPoolHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxOpenConns() != 20 {
		t.Errorf("MaxOpenConns = %d, want 20", cfg.MaxOpenConns())
	}
	if cfg.PoolTimeoutDuration() != 30*time.Second {
		t.Errorf("PoolTimeoutDuration = %v", cfg.PoolTimeoutDuration())
	}
	if cfg.ConnMaxLifetime() != 30*time.Minute {
		t.Errorf("ConnMaxLifetime = %v", cfg.ConnMaxLifetime())
	}
	cfg.PoolRecycle = -1
	if cfg.ConnMaxLifetime() != 0 {
		t.Error("negative recycle should disable lifetime")
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DefaultConfig()
	want := "postgresql+asyncpg://user:password@db:5432/defaultdb"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString = %q, want %q", got, want)
	}
}

func TestConnectionURLEscapesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss:w/rd"

	u := cfg.ConnectionURL()
	if u.Host != "db:5432" || u.Path != "/defaultdb" {
		t.Errorf("unexpected url parts: %s", u)
	}
	if pw, _ := u.User.Password(); pw != "p@ss:w/rd" {
		t.Errorf("password did not round trip: %q", pw)
	}
	if strings.Contains(u.String(), "p@ss:w/rd") {
		t.Errorf("password should be escaped in %s", u.String())
	}
	if strings.Contains(cfg.RedactedURL(), "p%40ss") {
		t.Errorf("redacted url leaks password: %s", cfg.RedactedURL())
	}
}

func TestDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "postgresql+asyncpg"
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://user:password@db:5432/defaultdb") {
		t.Errorf("unexpected dsn %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("dsn missing sslmode: %s", dsn)
	}

	cfg.Driver = "sqlite"
	cfg.Name = "/tmp/app.db"
	if cfg.DSN() != "/tmp/app.db" {
		t.Errorf("sqlite dsn should be the file path, got %s", cfg.DSN())
	}
}

func TestDialect(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{"postgres", DialectPostgres, false},
		{"postgresql+asyncpg", DialectPostgres, false},
		{"PGX", DialectPostgres, false},
		{"sqlite", DialectSQLite, false},
		{"sqlite3+pysqlite", DialectSQLite, false},
		{"mysql+pymysql", "", true},
	}
	for _, tt := range tests {
		cfg := Config{Driver: tt.driver}
		got, err := cfg.Dialect()
		if (err != nil) != tt.wantErr {
			t.Errorf("Dialect(%q) error = %v", tt.driver, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Dialect(%q) = %q, want %q", tt.driver, got, tt.want)
		}
	}
}

func TestDialector(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.Dialector()
	if err != nil {
		t.Fatalf("Dialector: %v", err)
	}
	if d.Name() != "postgres" {
		t.Errorf("expected postgres dialector, got %s", d.Name())
	}

	cfg.Driver = "sqlite"
	d, err = cfg.Dialector()
	if err != nil {
		t.Fatalf("Dialector: %v", err)
	}
	if d.Name() != "sqlite" {
		t.Errorf("expected sqlite dialector, got %s", d.Name())
	}
}
