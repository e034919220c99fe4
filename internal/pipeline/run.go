package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// runTimeLayout keys diagnostics directories; it sorts lexically.
const runTimeLayout = "20060102T150405.000"

// RunContext identifies one mining invocation. It is created per call and
// passed explicitly to everything that logs on behalf of the run.
type RunContext struct {
	ReceiptID string    `json:"receipt_id"`
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
}

// NewRun starts a run for receiptID.
func NewRun(receiptID string) RunContext {
	return RunContext{
		ReceiptID: receiptID,
		RunID:     uuid.NewString(),
		Started:   time.Now(),
	}
}

// Key names the run in diagnostics output: receipt ID and start time.
func (r RunContext) Key() string {
	return sanitize(r.ReceiptID) + "_" + r.Started.Format(runTimeLayout)
}
