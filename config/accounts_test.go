package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAccounts_DefaultsAndIDs(t *testing.T) {
	path := writeAccounts(t, `{
		"accounts": [
			{"username": "u1", "password": "p1"},
			{"id": "second", "username": "u2", "password": "p2", "enabled": false}
		]
	}`)

	cfg := Load()
	accounts, err := LoadAccounts(path, cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("account count = %d, want 2", len(accounts))
	}
	if accounts[0].ID != "u1" {
		t.Errorf("missing id should inherit username, got %q", accounts[0].ID)
	}
	if !accounts[0].Enabled {
		t.Error("omitted enabled flag must default to true")
	}
	if accounts[1].ID != "second" || accounts[1].Enabled {
		t.Errorf("explicit fields not honored: %+v", accounts[1])
	}
}

func TestLoadAccounts_SettingsOverrides(t *testing.T) {
	path := writeAccounts(t, `{
		"accounts": [{"username": "u1", "password": "p1"}],
		"settings": {"headless": true, "download_base_dir": "/data/wedi"}
	}`)

	cfg := Load()
	if _, err := LoadAccounts(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Browser.Headless {
		t.Error("settings.headless should override the config")
	}
	if cfg.Browser.DownloadDir != "/data/wedi" || cfg.Query.DownloadDir != "/data/wedi" || cfg.Export.Dir != "/data/wedi" {
		t.Errorf("download_base_dir not applied: %q / %q / %q",
			cfg.Browser.DownloadDir, cfg.Query.DownloadDir, cfg.Export.Dir)
	}
}

func TestLoadAccounts_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing password", `{"accounts": [{"username": "u1"}]}`},
		{"missing username", `{"accounts": [{"password": "p1"}]}`},
		{"no accounts", `{"accounts": []}`},
		{"bad json", `{accounts}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAccounts(t, tt.content)
			if _, err := LoadAccounts(path, Load()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadAccounts_MissingFile(t *testing.T) {
	if _, err := LoadAccounts(filepath.Join(t.TempDir(), "nope.json"), Load()); err == nil {
		t.Error("expected an error for a missing file")
	}
}
