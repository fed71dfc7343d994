// ABOUTME: HTTP handlers for repair jobs: intake, lookup, status moves, assignment.
// ABOUTME: Mechanics are additionally restricted to jobs assigned to them.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/auth"
	"github.com/fixbay/workshop-ops/internal/rbac"
	"github.com/fixbay/workshop-ops/internal/store"
	"github.com/fixbay/workshop-ops/internal/worker"
)

// errNotAMechanic flows out of the assign transaction to produce a 400
// instead of the generic store-error mapping.
var errNotAMechanic = errors.New("not a mechanic account")

type jobBody struct {
	ID                   string               `json:"id"`
	Code                 string               `json:"code"`
	CustomerID           string               `json:"customer_id"`
	Status               string               `json:"status"`
	MachineMake          string               `json:"machine_make"`
	MachineModel         string               `json:"machine_model"`
	MachineSerial        string               `json:"machine_serial"`
	MachineType          string               `json:"machine_type"`
	ConditionNotes       string               `json:"condition_notes"`
	KnownIssues          string               `json:"known_issues"`
	CustomerRequirements string               `json:"customer_requirements"`
	ServiceTypes         []string             `json:"service_types"`
	BookingDate          *string              `json:"booking_date,omitempty"`
	Photos               []string             `json:"photos"`
	AssignedMechanic     *string              `json:"assigned_mechanic,omitempty"`
	History              []store.HistoryEntry `json:"history"`
	CreatedAt            time.Time            `json:"created_at"`
}

func toJobBody(j store.Job) jobBody {
	b := jobBody{
		ID:                   j.ID.String(),
		Code:                 j.Code,
		CustomerID:           j.CustomerID.String(),
		Status:               string(j.Status),
		MachineMake:          j.MachineMake,
		MachineModel:         j.MachineModel,
		MachineSerial:        j.MachineSerial,
		MachineType:          j.MachineType,
		ConditionNotes:       j.ConditionNotes,
		KnownIssues:          j.KnownIssues,
		CustomerRequirements: j.CustomerRequirements,
		ServiceTypes:         j.ServiceTypes,
		Photos:               j.Photos,
		History:              j.History,
		CreatedAt:            j.CreatedAt,
	}
	if j.BookingDate != nil {
		d := j.BookingDate.Format("2006-01-02")
		b.BookingDate = &d
	}
	if j.AssignedMechanic.Valid {
		m := j.AssignedMechanic.UUID.String()
		b.AssignedMechanic = &m
	}
	return b
}

// historyEntry builds an audit record attributed to the caller. The display
// name comes from the caller's own staff row, looked up in the same scoped
// transaction.
func historyEntry(r *http.Request, tx pgx.Tx, id auth.Identity, action string) (store.HistoryEntry, error) {
	name := ""
	user, err := store.GetUserByID(r.Context(), tx, id.UserID)
	if err != nil {
		return store.HistoryEntry{}, err
	}
	if user != nil {
		name = user.Name
	}
	return store.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		UserID:    id.UserID,
		UserName:  name,
	}, nil
}

// mechanicFilter returns the assignment filter for list/read queries: valid
// (the caller's own id) for mechanics, invalid (no filter) for everyone else.
func mechanicFilter(id auth.Identity) uuid.NullUUID {
	if id.Role == rbac.RoleMechanic {
		return uuid.NullUUID{UUID: id.UserID, Valid: true}
	}
	return uuid.NullUUID{}
}

// createJobHandler handles POST /api/v1/jobs. When intake photos are attached,
// a photo-analysis task is enqueued in the same transaction, so a rolled back
// intake leaves no orphan task.
func (srv *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if !id.OrgID.Valid {
		writeError(w, r, http.StatusBadRequest, "no organisation scope")
		return
	}

	var req struct {
		CustomerID           string   `json:"customer_id"`
		MachineMake          string   `json:"machine_make"`
		MachineModel         string   `json:"machine_model"`
		MachineSerial        string   `json:"machine_serial"`
		MachineType          string   `json:"machine_type"`
		ConditionNotes       string   `json:"condition_notes"`
		KnownIssues          string   `json:"known_issues"`
		CustomerRequirements string   `json:"customer_requirements"`
		ServiceTypes         []string `json:"service_types"`
		BookingDate          *string  `json:"booking_date"`
		Photos               []string `json:"photos"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "customer_id must be a UUID")
		return
	}
	var bookingDate *time.Time
	if req.BookingDate != nil {
		d, err := time.Parse("2006-01-02", *req.BookingDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "booking_date must be YYYY-MM-DD")
			return
		}
		bookingDate = &d
	}

	var created *store.Job
	err = srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		customer, txErr := store.GetCustomer(r.Context(), tx, customerID.String())
		if txErr != nil {
			return txErr
		}
		if customer == nil {
			return store.ErrNotFound
		}

		entry, txErr := historyEntry(r, tx, id, "Job created")
		if txErr != nil {
			return txErr
		}
		created, txErr = store.CreateJob(r.Context(), tx, id.OrgID.UUID, store.JobParams{
			CustomerID:           customerID,
			MachineMake:          req.MachineMake,
			MachineModel:         req.MachineModel,
			MachineSerial:        req.MachineSerial,
			MachineType:          req.MachineType,
			ConditionNotes:       req.ConditionNotes,
			KnownIssues:          req.KnownIssues,
			CustomerRequirements: req.CustomerRequirements,
			ServiceTypes:         req.ServiceTypes,
			BookingDate:          bookingDate,
			Photos:               req.Photos,
		}, entry)
		if txErr != nil {
			return txErr
		}

		if len(req.Photos) > 0 {
			return store.EnqueueTask(r.Context(), tx, worker.QueuePhotoAnalysis,
				worker.PhotoAnalysisPayload{JobID: created.ID, Photos: req.Photos})
		}
		return nil
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toJobBody(*created))
}

// listJobsHandler handles GET /api/v1/jobs.
func (srv *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var jobs []store.Job
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		jobs, txErr = store.ListJobs(r.Context(), tx, mechanicFilter(id))
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}

	result := make([]jobBody, 0, len(jobs))
	for _, j := range jobs {
		result = append(result, toJobBody(j))
	}
	writeJSON(w, r, http.StatusOK, result)
}

// getJobHandler handles GET /api/v1/jobs/{code}. A mechanic asking about a
// job not assigned to them gets the same 404 as for a nonexistent code.
func (srv *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	code := chi.URLParam(r, "code")

	var job *store.Job
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		job, txErr = store.GetJobByCode(r.Context(), tx, code)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	if job == nil {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if filter := mechanicFilter(id); filter.Valid &&
		(!job.AssignedMechanic.Valid || job.AssignedMechanic.UUID != filter.UUID) {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, r, http.StatusOK, toJobBody(*job))
}

// updateJobStatusHandler handles PATCH /api/v1/jobs/{code}/status.
func (srv *Server) updateJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	code := chi.URLParam(r, "code")

	var req struct {
		Status string `json:"status"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	status, err := store.ParseJobStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown job status")
		return
	}

	var updated *store.Job
	err = srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		entry, txErr := historyEntry(r, tx, id, "Status changed to "+string(status))
		if txErr != nil {
			return txErr
		}
		updated, txErr = store.UpdateJobStatus(r.Context(), tx, code, status, mechanicFilter(id), entry)
		if txErr != nil {
			return txErr
		}
		if updated == nil {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toJobBody(*updated))
}

// assignJobHandler handles POST /api/v1/jobs/{code}/assign.
func (srv *Server) assignJobHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	code := chi.URLParam(r, "code")

	var req struct {
		MechanicID string `json:"mechanic_id"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	mechanicID, err := uuid.Parse(req.MechanicID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "mechanic_id must be a UUID")
		return
	}

	var updated *store.Job
	err = srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		mechanic, txErr := store.GetUserByID(r.Context(), tx, mechanicID)
		if txErr != nil {
			return txErr
		}
		if mechanic == nil {
			return store.ErrNotFound
		}
		if mechanic.Role != rbac.RoleMechanic.String() {
			return errNotAMechanic
		}

		entry, txErr := historyEntry(r, tx, id, "Assigned to "+mechanic.Name)
		if txErr != nil {
			return txErr
		}
		updated, txErr = store.AssignMechanic(r.Context(), tx, code, mechanicID, entry)
		if txErr != nil {
			return txErr
		}
		if updated == nil {
			return store.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, errNotAMechanic) {
		writeError(w, r, http.StatusBadRequest, "mechanic_id is not a mechanic account")
		return
	}
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toJobBody(*updated))
}
