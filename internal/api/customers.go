// ABOUTME: HTTP handlers for customer accounts: create, search, get, update.
// ABOUTME: All queries run inside RunScoped; RLS limits visibility to the caller's org.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/store"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 100
)

type customerBody struct {
	ID            string  `json:"id"`
	AccountNumber string  `json:"account_number"`
	AccountType   string  `json:"account_type"`
	Name          string  `json:"name"`
	CompanyName   *string `json:"company_name,omitempty"`
	Address       string  `json:"address"`
	Postcode      string  `json:"postcode"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
}

func toCustomerBody(c store.Customer) customerBody {
	return customerBody{
		ID:            c.ID.String(),
		AccountNumber: c.AccountNumber,
		AccountType:   c.AccountType,
		Name:          c.Name,
		CompanyName:   c.CompanyName,
		Address:       c.Address,
		Postcode:      c.Postcode,
		Email:         c.Email,
		Phone:         c.Phone,
	}
}

type customerRequest struct {
	AccountNumber string  `json:"account_number"`
	AccountType   string  `json:"account_type"`
	Name          string  `json:"name"`
	CompanyName   *string `json:"company_name"`
	Address       string  `json:"address"`
	Postcode      string  `json:"postcode"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
}

func (req *customerRequest) validate() string {
	if req.AccountType != "Personal" && req.AccountType != "Business" {
		return "account_type must be Personal or Business"
	}
	if req.Name == "" {
		return "name is required"
	}
	return ""
}

func (req *customerRequest) params() store.CustomerParams {
	return store.CustomerParams{
		AccountNumber: req.AccountNumber,
		AccountType:   req.AccountType,
		Name:          req.Name,
		CompanyName:   req.CompanyName,
		Address:       req.Address,
		Postcode:      req.Postcode,
		Email:         req.Email,
		Phone:         req.Phone,
	}
}

// createCustomerHandler handles POST /api/v1/customers.
func (srv *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if !id.OrgID.Valid {
		writeError(w, r, http.StatusBadRequest, "no organisation scope")
		return
	}

	var req customerRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.AccountNumber == "" {
		writeError(w, r, http.StatusBadRequest, "account_number is required")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	var created *store.Customer
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		created, txErr = store.CreateCustomer(r.Context(), tx, id.OrgID.UUID, req.params())
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCustomerBody(*created))
}

// searchCustomersHandler handles GET /api/v1/customers?q=...&limit=...
func (srv *Server) searchCustomersHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	var customers []store.Customer
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		customers, txErr = store.SearchCustomers(r.Context(), tx, r.URL.Query().Get("q"), limit)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}

	result := make([]customerBody, 0, len(customers))
	for _, c := range customers {
		result = append(result, toCustomerBody(c))
	}
	writeJSON(w, r, http.StatusOK, result)
}

// getCustomerHandler handles GET /api/v1/customers/{ref}, where ref is either
// a customer UUID or an account number.
func (srv *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	ref := chi.URLParam(r, "ref")

	var customer *store.Customer
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		customer, txErr = store.GetCustomer(r.Context(), tx, ref)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	if customer == nil {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, r, http.StatusOK, toCustomerBody(*customer))
}

// updateCustomerHandler handles PUT /api/v1/customers/{ref}. The account
// number is immutable and ignored if present in the body.
func (srv *Server) updateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	ref := chi.URLParam(r, "ref")

	var req customerRequest
	if !readJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	var updated *store.Customer
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		existing, txErr := store.GetCustomer(r.Context(), tx, ref)
		if txErr != nil {
			return txErr
		}
		if existing == nil {
			return store.ErrNotFound
		}
		updated, txErr = store.UpdateCustomer(r.Context(), tx, existing.ID, req.params())
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
	writeJSON(w, r, http.StatusOK, toCustomerBody(*updated))
}
