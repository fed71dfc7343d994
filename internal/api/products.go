// ABOUTME: HTTP handlers for the product catalogue: create and lookup by code.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/fixbay/workshop-ops/internal/store"
)

type productBody struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Make          string  `json:"make"`
	Model         string  `json:"model"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	WarrantyYears int     `json:"warranty_years"`
}

func toProductBody(p store.Product) productBody {
	return productBody{
		ID:            p.ID.String(),
		Code:          p.Code,
		Make:          p.Make,
		Model:         p.Model,
		Type:          p.Type,
		Price:         p.Price,
		WarrantyYears: p.WarrantyYears,
	}
}

// createProductHandler handles POST /api/v1/products.
func (srv *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if !id.OrgID.Valid {
		writeError(w, r, http.StatusBadRequest, "no organisation scope")
		return
	}

	var req struct {
		Code          string  `json:"code"`
		Make          string  `json:"make"`
		Model         string  `json:"model"`
		Type          string  `json:"type"`
		Price         float64 `json:"price"`
		WarrantyYears int     `json:"warranty_years"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}
	if req.Price < 0 {
		writeError(w, r, http.StatusBadRequest, "price must not be negative")
		return
	}

	var created *store.Product
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		created, txErr = store.CreateProduct(r.Context(), tx, id.OrgID.UUID, store.ProductParams{
			Code:          req.Code,
			Make:          req.Make,
			Model:         req.Model,
			Type:          req.Type,
			Price:         req.Price,
			WarrantyYears: req.WarrantyYears,
		})
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toProductBody(*created))
}

// getProductHandler handles GET /api/v1/products/{code}.
func (srv *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	code := chi.URLParam(r, "code")

	var product *store.Product
	err := srv.store.RunScoped(r.Context(), id, func(tx pgx.Tx) error {
		var txErr error
		product, txErr = store.GetProductByCode(r.Context(), tx, code)
		return txErr
	})
	if err != nil {
		storeError(w, r, err)
		return
	}
	if product == nil {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, r, http.StatusOK, toProductBody(*product))
}
