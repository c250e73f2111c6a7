package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsNoProtocolOverrides(t *testing.T) {
	cfgs, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(cfgs) != 0 {
		t.Errorf("expected no protocol configs, got %+v", cfgs)
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[mail.pop3]
host = "pop.example.com"
port = 110
apop.enable = true

[mail.smtp]
host = "smtp.example.com"
starttls.required = true
ehlo = "client.example.com"
`
	path := createTempConfig(t, content)

	cfgs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	pop3, ok := cfgs["pop3"]
	if !ok {
		t.Fatal("expected a pop3 protocol config")
	}
	if got := pop3.Host(); got != "pop.example.com" {
		t.Errorf("pop3 host = %q", got)
	}
	if got := pop3.Port(); got != 110 {
		t.Errorf("pop3 port = %d", got)
	}
	if !pop3.Bool("apop.enable", false) {
		t.Error("expected apop.enable = true")
	}

	smtp, ok := cfgs["smtp"]
	if !ok {
		t.Fatal("expected an smtp protocol config")
	}
	if !smtp.Bool("starttls.required", false) {
		t.Error("expected smtp starttls.required = true")
	}
	if got := smtp.String("ehlo", ""); got != "client.example.com" {
		t.Errorf("smtp ehlo = %q", got)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[mail.pop3
host = "broken
`
	path := createTempConfig(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadUnknownKeysArePreservedButIgnorableByCallers(t *testing.T) {
	content := `
[mail.nntp]
host = "news.example.com"
some.unrecognised.key = "whatever"
`
	path := createTempConfig(t, content)

	cfgs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	nntp := cfgs["nntp"]
	if got := nntp.Host(); got != "news.example.com" {
		t.Errorf("nntp host = %q", got)
	}
	// Unknown keys are simply never read by name; presence must not error.
	_ = nntp.String("some.unrecognised.key", "")
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}
