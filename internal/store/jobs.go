// ABOUTME: Repair job queries: intake, lookup, status transitions, assignment.
// ABOUTME: History is an append-only jsonb array updated in the same transaction.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JobStatus is one of the seven workshop stages a job moves through.
type JobStatus string

// Workshop stages, in the usual (but not enforced-linear) order.
const (
	StatusIntake          JobStatus = "Intake"
	StatusDiagnosis       JobStatus = "Diagnosis"
	StatusInProgress      JobStatus = "In Progress"
	StatusWaitingForParts JobStatus = "Waiting for Parts"
	StatusQualityCheck    JobStatus = "Quality Check"
	StatusCompleted       JobStatus = "Completed"
	StatusReadyForPickup  JobStatus = "Ready for Pickup"
)

// ParseJobStatus validates a status string from a request body.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case StatusIntake, StatusDiagnosis, StatusInProgress, StatusWaitingForParts,
		StatusQualityCheck, StatusCompleted, StatusReadyForPickup:
		return JobStatus(s), nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// HistoryEntry is one audit record in a job's history array.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

// Job is a machine repair job record.
type Job struct {
	ID                   uuid.UUID
	OrgID                uuid.UUID
	Code                 string // short human-facing job code, e.g. "7KQ2"
	CustomerID           uuid.UUID
	Status               JobStatus
	MachineMake          string
	MachineModel         string
	MachineSerial        string
	MachineType          string
	ConditionNotes       string
	KnownIssues          string
	CustomerRequirements string
	ServiceTypes         []string
	BookingDate          *time.Time
	Photos               []string
	AssignedMechanic     uuid.NullUUID
	History              []HistoryEntry
	CreatedAt            time.Time
}

const jobColumns = `id, organisation_id, code, customer_id, status,
	machine_make, machine_model, machine_serial, machine_type, condition_notes,
	known_issues, customer_requirements, service_types, booking_date, photos,
	assigned_mechanic, history, created_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var history []byte
	err := row.Scan(&j.ID, &j.OrgID, &j.Code, &j.CustomerID, &j.Status,
		&j.MachineMake, &j.MachineModel, &j.MachineSerial, &j.MachineType,
		&j.ConditionNotes, &j.KnownIssues, &j.CustomerRequirements,
		&j.ServiceTypes, &j.BookingDate, &j.Photos,
		&j.AssignedMechanic, &history, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &j.History); err != nil {
		return nil, fmt.Errorf("decode job history: %w", err)
	}
	return &j, nil
}

// jobCodeAlphabet is base-36 uppercase; 4 characters give ~1.7M codes per org.
const jobCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewJobCode generates a random 4-character job code.
func NewJobCode() (string, error) {
	code := make([]byte, 4)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(jobCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate job code: %w", err)
		}
		code[i] = jobCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// JobParams holds the fields captured at intake.
type JobParams struct {
	CustomerID           uuid.UUID
	MachineMake          string
	MachineModel         string
	MachineSerial        string
	MachineType          string
	ConditionNotes       string
	KnownIssues          string
	CustomerRequirements string
	ServiceTypes         []string
	BookingDate          *time.Time
	Photos               []string
}

// CreateJob inserts a new job at Intake status with a generated code and the
// given initial history entry. Code collisions within an org are re-rolled a
// few times before giving up; the unique constraint remains the backstop.
func CreateJob(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, p JobParams, entry HistoryEntry) (*Job, error) {
	history, err := json.Marshal([]HistoryEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("create job: encode history: %w", err)
	}

	var code string
	for attempt := 0; attempt < 5; attempt++ {
		code, err = NewJobCode()
		if err != nil {
			return nil, err
		}
		var taken bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE code = $1)`, code).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("create job: check code: %w", err)
		}
		if !taken {
			break
		}
		code = ""
	}
	if code == "" {
		return nil, errors.New("create job: could not generate a free job code")
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO jobs (organisation_id, code, customer_id, status,
			machine_make, machine_model, machine_serial, machine_type, condition_notes,
			known_issues, customer_requirements, service_types, booking_date, photos, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+jobColumns,
		orgID, code, p.CustomerID, StatusIntake,
		p.MachineMake, p.MachineModel, p.MachineSerial, p.MachineType, p.ConditionNotes,
		p.KnownIssues, p.CustomerRequirements, p.ServiceTypes, p.BookingDate, p.Photos, history)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

// GetJobByCode returns the job with the given code, or (nil, nil) if absent
// or hidden by policy.
func GetJobByCode(ctx context.Context, tx pgx.Tx, code string) (*Job, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE code = $1`, code)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// GetJobByID returns the job with the given id, or (nil, nil) if absent or
// hidden by policy.
func GetJobByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Job, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns jobs in the current scope, newest first. When assignedTo
// is valid only jobs assigned to that mechanic are returned — the handler
// passes this for mechanics, whose reach is narrower than their org.
func ListJobs(ctx context.Context, tx pgx.Tx, assignedTo uuid.NullUUID) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if assignedTo.Valid {
		query += ` WHERE assigned_mechanic = $1`
		args = append(args, assignedTo.UUID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: scan: %w", err)
		}
		result = append(result, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return result, nil
}

// UpdateJobStatus moves a job to status and appends entry to its history.
// When onlyAssignedTo is valid, the update additionally requires the job to
// be assigned to that mechanic. Returns (nil, nil) when no row was updated.
func UpdateJobStatus(ctx context.Context, tx pgx.Tx, code string, status JobStatus, onlyAssignedTo uuid.NullUUID, entry HistoryEntry) (*Job, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("update job status: encode history: %w", err)
	}

	query := `
		UPDATE jobs SET status = $1, history = history || $2::jsonb, updated_at = now()
		WHERE code = $3`
	args := []any{status, entryJSON, code}
	if onlyAssignedTo.Valid {
		query += ` AND assigned_mechanic = $4`
		args = append(args, onlyAssignedTo.UUID)
	}
	query += ` RETURNING ` + jobColumns

	j, err := scanJob(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	return j, nil
}

// AssignMechanic assigns the job to mechanicID and appends entry to its
// history. Returns (nil, nil) when no row was updated.
func AssignMechanic(ctx context.Context, tx pgx.Tx, code string, mechanicID uuid.UUID, entry HistoryEntry) (*Job, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("assign mechanic: encode history: %w", err)
	}
	row := tx.QueryRow(ctx, `
		UPDATE jobs SET assigned_mechanic = $1, history = history || $2::jsonb, updated_at = now()
		WHERE code = $3
		RETURNING `+jobColumns,
		mechanicID, entryJSON, code)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("assign mechanic: %w", err)
	}
	return j, nil
}

// UpdateConditionNotes replaces a job's machine condition notes. Used by the
// background photo-analysis worker under RunSystem.
func UpdateConditionNotes(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, notes string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET condition_notes = $1, updated_at = now() WHERE id = $2`,
		notes, jobID)
	if err != nil {
		return fmt.Errorf("update condition notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
