package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

func testRouter(run Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := &config.Config{}
	r.POST("/batch/run", PostRun(run, cfg))
	r.GET("/batch/:id", GetRun())
	return r
}

func stubRunner(report *models.BatchReport, err error) Runner {
	return func(ctx context.Context, doc models.DocumentType, qcfg config.QueryConfig) (*models.BatchReport, error) {
		return report, err
	}
}

func TestPostRun_RejectsUnknownDocument(t *testing.T) {
	r := testRouter(stubRunner(nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/batch/run", strings.NewReader(`{"document":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("unexpected error payload: %+v", resp)
	}
}

func TestPostRun_RunsBatchAndReportsStatus(t *testing.T) {
	report := &models.BatchReport{
		Document: models.DocPayment,
		Outcomes: []models.AccountOutcome{
			{AccountID: "a1", Status: models.StatusSuccess, RecordCount: 2},
		},
	}
	r := testRouter(stubRunner(report, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/batch/run", strings.NewReader(`{"document":"payment","start_date":"20250101"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var posted models.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &posted); err != nil {
		t.Fatal(err)
	}
	if posted.ID == "" || posted.Status != "processing" {
		t.Fatalf("unexpected run response: %+v", posted)
	}

	// The run executes in the background; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/batch/"+posted.ID, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var status models.RunStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		if status.Status != "processing" {
			if status.Status != "completed" {
				t.Fatalf("terminal status = %s, want completed", status.Status)
			}
			if status.Report == nil || status.Report.TotalRecords() != 2 {
				t.Fatalf("report not attached: %+v", status)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("run never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGetRun_UnknownID(t *testing.T) {
	r := testRouter(stubRunner(nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/batch/run-doesnotexist", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
