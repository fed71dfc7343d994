// ABOUTME: Background handler that summarises intake photos into condition notes.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/store"
)

// QueuePhotoAnalysis is the queue name for intake photo analysis tasks.
const QueuePhotoAnalysis = "photo_analysis"

// PhotoAnalysisPayload is enqueued at job intake when photos were attached.
type PhotoAnalysisPayload struct {
	JobID  uuid.UUID `json:"job_id"`
	Photos []string  `json:"photos"`
}

// Analyzer produces a condition summary from intake photo references. The
// production implementation calls out to an inspection service; tests use the
// built-in heuristic one.
type Analyzer interface {
	Analyze(ctx context.Context, photos []string) (string, error)
}

// HeuristicAnalyzer is the default Analyzer. It does no image processing and
// simply records what was received, so intake is never blocked on the
// inspection service being configured.
type HeuristicAnalyzer struct{}

func (HeuristicAnalyzer) Analyze(_ context.Context, photos []string) (string, error) {
	return fmt.Sprintf("Intake photos on file (%d): %s",
		len(photos), strings.Join(photos, ", ")), nil
}

// PhotoAnalysisHandler returns the Handler for QueuePhotoAnalysis. It runs the
// analyzer and writes the summary into the job's condition notes. The update
// runs with platform scope: the worker has no request identity, and the task
// row pins the exact job to touch.
func PhotoAnalysisHandler(s *store.Store, a Analyzer) Handler {
	return func(ctx context.Context, payload []byte) error {
		var p PhotoAnalysisPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode photo analysis payload: %w", err)
		}
		if len(p.Photos) == 0 {
			return nil
		}

		summary, err := a.Analyze(ctx, p.Photos)
		if err != nil {
			return fmt.Errorf("analyze photos: %w", err)
		}

		return s.RunSystem(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobByID(ctx, tx, p.JobID)
			if err != nil {
				return err
			}
			if job == nil {
				// Job deleted between enqueue and execution; nothing to do.
				return nil
			}
			notes := job.ConditionNotes
			if notes != "" {
				notes += "\n"
			}
			return store.UpdateConditionNotes(ctx, tx, p.JobID, notes+summary)
		})
	}
}
