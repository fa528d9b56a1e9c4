// Command wedi runs one batch from the terminal: every enabled account in
// the accounts file is logged in, queried, and exported, then the summary
// is printed and the process exits non-zero if any account failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/wedi/batch"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

func main() {
	cfg := config.Load()

	docFlag := flag.String("type", string(models.DocPayment), "document type: payment, freight or unpaid")
	startFlag := flag.String("start", "", "start date (YYYYMMDD, or YYYYMM for freight)")
	endFlag := flag.String("end", "", "end date (YYYYMMDD, or YYYYMM for freight)")
	accountsFlag := flag.String("accounts", "", "accounts file path (overrides WEDI_ACCOUNTS_FILE)")
	headlessFlag := flag.Bool("headless", cfg.Browser.Headless, "run the browser headless")
	flag.Parse()

	if !envSet("WEDI_LOG_FORMAT") {
		cfg.Log.Format = "text"
	}
	initLogger(cfg.Log)

	doc := models.DocumentType(*docFlag)
	if !doc.Valid() {
		fmt.Fprintf(os.Stderr, "unknown document type %q: want payment, freight or unpaid\n", *docFlag)
		os.Exit(2)
	}

	if *accountsFlag != "" {
		cfg.Batch.AccountsFile = *accountsFlag
	}
	cfg.Browser.Headless = *headlessFlag
	if *headlessFlag && !envSet("WEDI_MANUAL_CAPTCHA") {
		// Headless has no window to type a CAPTCHA into.
		cfg.Login.ManualCaptcha = false
	}
	qcfg := cfg.Query
	if *startFlag != "" {
		qcfg.StartDate = *startFlag
	}
	if *endFlag != "" {
		qcfg.EndDate = *endFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := batch.NewRunner(cfg)
	report, err := run(ctx, doc, qcfg)
	if err != nil {
		slog.Error("batch aborted", "error", err)
		os.Exit(1)
	}
	if report.Failed() > 0 {
		os.Exit(1)
	}
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// initLogger configures slog based on the LogConfig. The CLI defaults to
// the text handler; JSON is for the service.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
