package main

import (
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/erazemk/inventar/internal/config"
	"github.com/erazemk/inventar/internal/db"
	"github.com/erazemk/inventar/internal/model"
	"github.com/erazemk/inventar/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		DBPath:          "inventar.sqlite3",
		Addr:            ":8080",
		AdminUser:       "Admin",
		LogMaxSizeMB:    1,
		TokenTTL:        1,
		ShutdownTimeout: 1,
		MaxUploadBytes:  1,
		ImageMaxDim:     1,
		ImageQuality:    80,
	}
}

func TestParseFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig()
	if err := parseFlags(cfg, []string{"-d", "/tmp/x.sqlite3", "-addr", "127.0.0.1:9999", "-u", "root"}); err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.DBPath != "/tmp/x.sqlite3" || cfg.Addr != "127.0.0.1:9999" || cfg.AdminUser != "root" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestParseFlagsRejectsExtraArgs(t *testing.T) {
	if err := parseFlags(testConfig(), []string{"serve"}); err == nil {
		t.Error("expected error for positional argument")
	}
	if err := parseFlags(testConfig(), []string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
	if err := parseFlags(testConfig(), []string{"-user", ""}); err == nil {
		t.Error("expected validation error for empty admin user")
	}
}

func TestEnsureAdminRunsOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := ensureAdmin(ctx, database, "Admin"); err != nil {
		t.Fatalf("ensureAdmin: %v", err)
	}
	if err := ensureAdmin(ctx, database, "Other"); err != nil {
		t.Fatalf("second ensureAdmin: %v", err)
	}

	users, err := store.ListUsers(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Username != "Admin" || users[0].Role != model.RoleAdmin {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 || a == b {
		t.Errorf("unexpected passwords %q %q", a, b)
	}
}
