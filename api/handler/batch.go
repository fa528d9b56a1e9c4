package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
	"github.com/use-agent/wedi/webhook"
)

// Runner executes one batch for a document type with per-run query
// parameters. The command wires it to the orchestrator; tests stub it.
type Runner func(ctx context.Context, doc models.DocumentType, qcfg config.QueryConfig) (*models.BatchReport, error)

// runStore holds all in-flight and completed batch runs.
var runStore sync.Map

// running counts in-flight batches. Runs own the whole browser host, so
// only one is admitted at a time.
var running atomic.Int32

func init() {
	// Background goroutine to expire runs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			runStore.Range(func(key, value any) bool {
				job := value.(*models.RunJob)
				if job.CreatedAt < cutoff {
					runStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// RunningBatches reports the number of in-flight batch runs.
func RunningBatches() int {
	return int(running.Load())
}

// PostRun returns a handler for POST /api/v1/batch/run.
// It validates the request, registers a run job, and launches the batch
// in the background.
func PostRun(run Runner, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid request body: " + err.Error(),
				},
			})
			return
		}
		if !req.Document.Valid() {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "document must be one of: payment, freight, unpaid",
				},
			})
			return
		}

		if !running.CompareAndSwap(0, 1) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "a batch run is already in progress",
				},
			})
			return
		}

		jobID := "run-" + randomID()
		job := models.NewRunJob(jobID)
		runStore.Store(jobID, job)

		qcfg := cfg.Query
		if req.StartDate != "" {
			qcfg.StartDate = req.StartDate
		}
		if req.EndDate != "" {
			qcfg.EndDate = req.EndDate
		}

		go executeRun(run, job, req.Document, qcfg, cfg.Webhook)

		c.JSON(http.StatusOK, models.RunResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetRun returns a handler for GET /api/v1/batch/:id.
func GetRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := runStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch run not found",
				},
			})
			return
		}

		job := val.(*models.RunJob)
		status, report, errDetail := job.State()
		c.JSON(http.StatusOK, models.RunStatusResponse{
			ID:     job.ID,
			Status: status,
			Report: report,
			Error:  errDetail,
		})
	}
}

// executeRun drives one background batch and records its terminal state.
func executeRun(run Runner, job *models.RunJob, doc models.DocumentType, qcfg config.QueryConfig, whcfg config.WebhookConfig) {
	defer running.Add(-1)

	var status string
	var errDetail *models.ErrorDetail

	report, err := run(context.Background(), doc, qcfg)
	if err != nil {
		portalErr, ok := err.(*models.PortalError)
		if !ok {
			portalErr = models.NewPortalError(models.ErrCodeInternal, err.Error(), err)
		}
		errDetail = portalErr.ToDetail()
		status = "failed"
	} else {
		switch {
		case report.Failed() == len(report.Outcomes) && len(report.Outcomes) > 0:
			status = "failed"
		case report.Failed() > 0:
			status = "partial"
		default:
			status = "completed"
		}
	}
	job.Finish(status, report, errDetail)

	slog.Info("batch run finished", "id", job.ID, "status", status)

	if whcfg.URL != "" {
		event := "batch.completed"
		if status == "failed" {
			event = "batch.failed"
		}
		webhook.DeliverAsync(whcfg.URL, whcfg.Secret, &webhook.Event{
			Type:      event,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      report,
		})
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
