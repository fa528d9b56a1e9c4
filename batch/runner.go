package batch

import (
	"context"
	"log/slog"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/captcha"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/export"
	"github.com/use-agent/wedi/login"
	"github.com/use-agent/wedi/models"
	"github.com/use-agent/wedi/report"
)

// NewRunner wires the whole pipeline from configuration and returns the
// entry point the CLI and the service share: load accounts, run the
// batch, persist the report. The CAPTCHA resolver outlives individual
// runs so per-account strategy memory carries across them.
func NewRunner(base *config.Config) func(ctx context.Context, doc models.DocumentType, qcfg config.QueryConfig) (*models.BatchReport, error) {
	resolver := captcha.NewResolver()

	return func(ctx context.Context, doc models.DocumentType, qcfg config.QueryConfig) (*models.BatchReport, error) {
		cfg := *base
		cfg.Query = qcfg

		accounts, err := config.LoadAccounts(cfg.Batch.AccountsFile, &cfg)
		if err != nil {
			return nil, err
		}

		exporter, err := export.NewWriter(cfg.Export.Dir)
		if err != nil {
			return nil, err
		}

		sessions := func(acct models.AccountCredential) (*browser.Session, error) {
			drv, err := browser.NewRod(cfg.Browser)
			if err != nil {
				return nil, err
			}
			return browser.NewSession(drv), nil
		}
		loginCtl := login.NewController(cfg.Browser.PortalURL, cfg.Login, cfg.Browser.PageTimeout, resolver)

		orch := New(&cfg, sessions, loginCtl, exporter)
		rep, runErr := orch.Run(ctx, doc, accounts)

		if rep != nil {
			report.Log(rep)
			if rw, err := report.NewWriter(cfg.Export.ReportsDir); err != nil {
				slog.Warn("reports dir unavailable", "error", err)
			} else if path, err := rw.Write(rep); err != nil {
				slog.Warn("report not persisted", "error", err)
			} else {
				slog.Info("report persisted", "path", path)
			}
		}
		return rep, runErr
	}
}
