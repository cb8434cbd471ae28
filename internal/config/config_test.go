package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/config"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ADVISOR_CONFIG", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.PendingTTL != 5*time.Minute {
		t.Errorf("expected 5m TTL, got %s", cfg.PendingTTL)
	}
	if cfg.ThresholdDays != 5 || cfg.TopAlternatives != 3 {
		t.Errorf("unexpected advisory defaults %d/%d", cfg.ThresholdDays, cfg.TopAlternatives)
	}
	if cfg.RowStatus != "Activo" {
		t.Errorf("expected Activo, got %s", cfg.RowStatus)
	}
	if cfg.Sheets.Range != "Compras!A:G" {
		t.Errorf("unexpected range %s", cfg.Sheets.Range)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ADVISOR_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("PENDING_TTL", "90s")
	t.Setenv("EXEMPT_CARDS", "DEBITO,EFECTIVO")
	t.Setenv("SHEETS_SPREADSHEET_ID", "abc")
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected 9090, got %d", cfg.Port)
	}
	if cfg.PendingTTL != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.PendingTTL)
	}
	if len(cfg.ExemptCards) != 2 || cfg.ExemptCards[1] != "EFECTIVO" {
		t.Errorf("unexpected exempt cards %v", cfg.ExemptCards)
	}
	if cfg.Sheets.SpreadsheetID != "abc" {
		t.Errorf("expected spreadsheet abc, got %q", cfg.Sheets.SpreadsheetID)
	}
	if !cfg.AuthDisabled {
		t.Error("expected auth disabled")
	}
}

func TestLoad_NoBuiltInJWTSecret(t *testing.T) {
	t.Setenv("ADVISOR_CONFIG", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_DISABLED", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.JWTSecret != "" {
		t.Fatalf("expected no default secret, got %q", cfg.JWTSecret)
	}
	if err := cfg.Validate(); !errors.Is(err, config.ErrMissingJWTSecret) {
		t.Errorf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestValidate_JWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"secret set", config.Config{JWTSecret: "s3cr3t"}, false},
		{"auth disabled without secret", config.Config{AuthDisabled: true}, false},
		{"no secret", config.Config{}, true},
		{"blank secret", config.Config{JWTSecret: "   "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && !errors.Is(err, config.ErrMissingJWTSecret) {
				t.Errorf("expected ErrMissingJWTSecret, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoad_ConfigFileWithCards(t *testing.T) {
	path := writeFile(t, "advisor.toml", `
threshold_days = 7

[[cards]]
id = "NU"
cut_day = 6
due_day = 26

[[cards]]
id = "BBVA"
cut_day = 15
due_day = 5
due_offset = 1
`)
	t.Setenv("ADVISOR_CONFIG", path)
	t.Setenv("CARD_CYCLES", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ThresholdDays != 7 {
		t.Errorf("expected 7, got %d", cfg.ThresholdDays)
	}

	cycles, err := cfg.CycleConfigs()
	if err != nil {
		t.Fatalf("cycles: %v", err)
	}
	want := []domain.CycleConfig{
		{CardID: "NU", CutDay: 6, DueDay: 26},
		{CardID: "BBVA", CutDay: 15, DueDay: 5, DueOffset: 1},
	}
	if len(cycles) != len(want) {
		t.Fatalf("expected %d cards, got %d", len(want), len(cycles))
	}
	for i := range want {
		if cycles[i] != want[i] {
			t.Errorf("card %d: expected %+v, got %+v", i, want[i], cycles[i])
		}
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("ADVISOR_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestCycleConfigs_InlineWins(t *testing.T) {
	cfg := &config.Config{
		CardCycles: "nu:6:26, bbva:15:5:1",
		Cards:      []domain.CycleConfig{{CardID: "IGNORED", CutDay: 1, DueDay: 2}},
	}
	cycles, err := cfg.CycleConfigs()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cycles) != 2 || cycles[0].CardID != "nu" || cycles[1].DueOffset != 1 {
		t.Errorf("unexpected cycles %+v", cycles)
	}
}

func TestParseCardCycles_Rejects(t *testing.T) {
	for _, in := range []string{"NU:6", "NU:x:26", "NU:6:26:0:9"} {
		_, err := config.ParseCardCycles(in)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("%q: expected ErrValidation, got %v", in, err)
		}
	}
}

func TestLoadCatalog_KeepsFileOrder(t *testing.T) {
	path := writeFile(t, "cards.yaml", `
cards:
  - id: ZETA
    cut_day: 1
    due_day: 20
  - id: ALFA
    cut_day: 2
    due_day: 21
`)
	cycles, err := config.LoadCatalog(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cycles) != 2 || cycles[0].CardID != "ZETA" || cycles[1].CardID != "ALFA" {
		t.Errorf("unexpected order %+v", cycles)
	}
}

func TestLocation(t *testing.T) {
	cfg := &config.Config{TimeZone: "America/Bogota"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if loc.String() != "America/Bogota" {
		t.Errorf("unexpected location %s", loc)
	}

	if _, err := (&config.Config{TimeZone: "Mars/Olympus"}).Location(); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := writeFile(t, ".env", "DOTENV_PROBE=from-file\nDOTENV_KEEP=from-file\n")
	t.Setenv("DOTENV_PROBE", "")
	t.Setenv("DOTENV_KEEP", "from-env")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("DOTENV_PROBE"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
	if got := os.Getenv("DOTENV_KEEP"); got != "from-env" {
		t.Errorf("env must win, got %q", got)
	}
}
