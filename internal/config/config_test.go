package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBDriver != "sqlite" || cfg.DBDSN != "parlay.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TurnLimit != 7*time.Minute || cfg.CollectionWindow != 3*time.Second || cfg.TickInterval != time.Second {
		t.Fatalf("unexpected floor defaults: %+v", cfg)
	}
	if cfg.MaxContentLength != 20000 {
		t.Fatalf("max content length = %d, want 20000", cfg.MaxContentLength)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PARLAY_ADDR", ":9090")
	t.Setenv("PARLAY_DB_DRIVER", "postgres")
	t.Setenv("PARLAY_DB_DSN", "postgres://localhost/parlay")
	t.Setenv("PARLAY_TURN_LIMIT", "90s")
	t.Setenv("PARLAY_COLLECTION_WINDOW", "0s")
	t.Setenv("PARLAY_WARNING_WINDOW", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.DBDriver != "postgres" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	fc := cfg.Floor()
	if fc.TurnLimit != 90*time.Second || fc.CollectionWindow != 0 || fc.Windows.Warning != 2*time.Minute {
		t.Fatalf("floor config = %+v", fc)
	}

	opts := cfg.RunnerOptions()
	if opts.Floor != fc || opts.TickInterval != time.Second || opts.RetainEnded != time.Hour {
		t.Fatalf("runner options = %+v", opts)
	}
	if opts.Now == nil {
		t.Fatalf("runner options should keep a clock")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"unparsable duration", "PARLAY_TURN_LIMIT", "soon", "parse env"},
		{"unknown driver", "PARLAY_DB_DRIVER", "mysql", "DB_DRIVER"},
		{"zero tick", "PARLAY_TICK_INTERVAL", "0s", "TICK_INTERVAL"},
		{"negative window", "PARLAY_OPENING_WINDOW", "-1m", "window"},
		{"negative content length", "PARLAY_MAX_CONTENT_LENGTH", "-5", "MAX_CONTENT_LENGTH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
