package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/use-agent/wedi/models"
)

// AccountsFile mirrors the on-disk accounts.json layout.
type AccountsFile struct {
	Accounts []fileAccount    `json:"accounts"`
	Settings AccountsSettings `json:"settings"`
}

// fileAccount keeps Enabled as a pointer so that an omitted flag defaults to
// true, matching the original accounts.json contract.
type fileAccount struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// AccountsSettings are optional per-file overrides of the runtime config.
type AccountsSettings struct {
	Headless        *bool  `json:"headless,omitempty"`
	DownloadBaseDir string `json:"download_base_dir,omitempty"`
}

// LoadAccounts reads and validates the accounts file. Accounts with an empty
// ID inherit their username as ID. Settings overrides are applied to cfg.
func LoadAccounts(path string, cfg *Config) ([]models.AccountCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("accounts file %q: %w", path, err)
	}

	var f AccountsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("accounts file %q: invalid JSON: %w", path, err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %q: no accounts defined", path)
	}

	accounts := make([]models.AccountCredential, 0, len(f.Accounts))
	for i, fa := range f.Accounts {
		if fa.Username == "" || fa.Password == "" {
			return nil, fmt.Errorf("accounts file %q: account %d missing username or password", path, i)
		}
		id := fa.ID
		if id == "" {
			id = fa.Username
		}
		enabled := true
		if fa.Enabled != nil {
			enabled = *fa.Enabled
		}
		accounts = append(accounts, models.AccountCredential{
			ID:       id,
			Username: fa.Username,
			Password: fa.Password,
			Enabled:  enabled,
		})
	}

	if f.Settings.Headless != nil {
		cfg.Browser.Headless = *f.Settings.Headless
	}
	if f.Settings.DownloadBaseDir != "" {
		cfg.Browser.DownloadDir = f.Settings.DownloadBaseDir
		cfg.Query.DownloadDir = f.Settings.DownloadBaseDir
		cfg.Export.Dir = f.Settings.DownloadBaseDir
	}

	return accounts, nil
}
