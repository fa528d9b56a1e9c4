package models

import (
	"sync"
	"testing"
)

func TestRunJob_StateVisibleToConcurrentPolls(t *testing.T) {
	job := NewRunJob("run-1")

	if status, report, errDetail := job.State(); status != "processing" || report != nil || errDetail != nil {
		t.Fatalf("fresh job state = %q/%v/%v, want processing with no results", status, report, errDetail)
	}

	// Poll from several goroutines while the run goroutine finishes, the
	// way GetRun races executeRun in service mode.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				status, report, _ := job.State()
				if status == "processing" {
					continue
				}
				if status != "completed" {
					t.Errorf("terminal status = %q, want completed", status)
				}
				if report == nil || len(report.Outcomes) != 1 {
					t.Errorf("terminal report not visible with the status: %+v", report)
				}
				return
			}
		}()
	}

	job.Finish("completed", &BatchReport{Outcomes: []AccountOutcome{{AccountID: "a1"}}}, nil)
	wg.Wait()
}
