// Package batch drives one document type across many portal accounts,
// each inside its own isolated browser session.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/export"
	"github.com/use-agent/wedi/login"
	"github.com/use-agent/wedi/models"
	"github.com/use-agent/wedi/query"
)

// SessionFactory opens a fresh browser session for one account. Every
// account gets its own session; nothing browser-side is shared.
type SessionFactory func(acct models.AccountCredential) (*browser.Session, error)

// Orchestrator runs a batch over the enabled accounts and assembles the
// report. One account's failure never stops the rest.
type Orchestrator struct {
	cfg      *config.Config
	sessions SessionFactory
	login    *login.Controller
	exporter *export.Writer
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, sessions SessionFactory, loginCtl *login.Controller, exporter *export.Writer) *Orchestrator {
	return &Orchestrator{cfg: cfg, sessions: sessions, login: loginCtl, exporter: exporter}
}

// Run processes every account for the given document type and returns
// the batch report: one outcome per account, in input order. The error
// return is reserved for batch-level aborts (context cancellation);
// per-account failures land in the report instead.
func (o *Orchestrator) Run(ctx context.Context, doc models.DocumentType, accounts []models.AccountCredential) (*models.BatchReport, error) {
	enabled := make([]models.AccountCredential, 0, len(accounts))
	for _, a := range accounts {
		if a.Enabled {
			enabled = append(enabled, a)
		} else {
			slog.Info("account disabled, skipping", "account", a.ID)
		}
	}
	accounts = enabled

	report := &models.BatchReport{
		StartedAt: time.Now(),
		Document:  doc,
		Outcomes:  make([]models.AccountOutcome, len(accounts)),
	}
	slog.Info("batch started", "document", doc, "accounts", len(accounts),
		"concurrency", o.cfg.Batch.Concurrency)

	var err error
	if o.cfg.Batch.Concurrency > 1 {
		err = o.runConcurrent(ctx, doc, accounts, report)
	} else {
		err = o.runSequential(ctx, doc, accounts, report)
	}
	report.FinishedAt = time.Now()
	if err != nil {
		return report, err
	}

	slog.Info("batch finished", "document", doc,
		"succeeded", report.Succeeded(), "failed", report.Failed(),
		"records", report.TotalRecords(),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, doc models.DocumentType, accounts []models.AccountCredential, report *models.BatchReport) error {
	for i, acct := range accounts {
		if i > 0 && o.cfg.Batch.AccountDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.Batch.AccountDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Outcomes[i] = o.runAccount(ctx, doc, acct)
	}
	return nil
}

func (o *Orchestrator) runConcurrent(ctx context.Context, doc models.DocumentType, accounts []models.AccountCredential, report *models.BatchReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Batch.Concurrency)
	for i, acct := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Outcomes[i] = o.runAccount(gctx, doc, acct)
			return nil
		})
	}
	return g.Wait()
}

// runAccount takes one account through the full pipeline: session, login,
// navigation, search, filter, extract, export. Any step's failure becomes
// a failed outcome; the session is closed either way.
func (o *Orchestrator) runAccount(ctx context.Context, doc models.DocumentType, acct models.AccountCredential) models.AccountOutcome {
	started := time.Now()
	outcome := models.AccountOutcome{AccountID: acct.ID, Status: models.StatusFailed}
	defer func() {
		outcome.DurationMs = time.Since(started).Milliseconds()
	}()

	sess, err := o.sessions(acct)
	if err != nil {
		outcome.ErrorSummary = err.Error()
		slog.Error("session open failed", "account", acct.ID, "error", err)
		return outcome
	}
	sess.SetAccount(acct.ID)
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("session close failed", "account", acct.ID, "error", err)
		}
	}()

	records, err := o.process(ctx, doc, sess, acct)
	if err != nil {
		outcome.ErrorSummary = err.Error()
		slog.Error("account failed", "account", acct.ID, "error", err)
		return outcome
	}

	path, err := o.exporter.Write(acct.ID, records)
	if err != nil {
		outcome.ErrorSummary = err.Error()
		slog.Error("export failed", "account", acct.ID, "error", err)
		return outcome
	}

	outcome.Status = models.StatusSuccess
	outcome.RecordCount = len(records)
	outcome.ExportPath = path
	slog.Info("account done", "account", acct.ID, "records", len(records), "export", path)
	return outcome
}

func (o *Orchestrator) process(ctx context.Context, doc models.DocumentType, sess *browser.Session, acct models.AccountCredential) ([]models.ExtractedRecord, error) {
	if err := o.login.Login(ctx, sess, acct); err != nil {
		return nil, err
	}

	scope, err := query.Navigate(sess, o.cfg.Query.NavTimeout)
	if err != nil {
		return nil, err
	}

	exec, err := query.New(doc)
	if err != nil {
		return nil, err
	}
	plan, err := exec.BuildPlan(o.cfg.Query)
	if err != nil {
		return nil, err
	}

	entries, err := exec.Search(scope, plan)
	if err != nil {
		return nil, err
	}
	filtered := query.Filter(entries, plan.Predicate)
	slog.Info("listing filtered", "account", acct.ID,
		"listed", len(entries), "relevant", len(filtered))

	// One entry's failure skips that entry, not the account.
	records := make([]models.ExtractedRecord, 0, len(filtered))
	for _, entry := range filtered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := exec.Extract(scope, entry, plan)
		if err != nil {
			slog.Warn("entry extraction failed, skipping",
				"account", acct.ID, "entry", entry.Title, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
