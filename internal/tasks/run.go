package tasks

import "time"

// RunRecord is the outcome of one execution, applied to a task with
// ApplyRun.
type RunRecord struct {
	Status Status
	At     time.Time
	Result *RunResult
	Error  *RunError
	Steps  []Step
}

// ApplyRun stores rec as the latest run of t. A successful run clears the
// previous error; a failed run keeps the previous result.
func (t *Task) ApplyRun(rec RunRecord) {
	t.LastStatus = rec.Status
	switch rec.Status {
	case StatusRunning:
		return
	case StatusSuccess:
		t.LastError = nil
	}

	at := rec.At
	t.LastRun = &at
	if rec.Result != nil {
		t.LastResult = rec.Result
	}
	if rec.Error != nil {
		t.LastError = rec.Error
	}
	if rec.Steps != nil {
		t.Steps = rec.Steps
	}
}
