package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lychee-technology/sweet"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report := s.health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeSuccess(w, status, report)
}

// handleCreateSchema handles POST /api/v1/schema with a multipart "file".
func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	content, status, err := readUpload(w, r, s.config.Server.MaxUploadBytes)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	rec, err := s.manager.CreateSchema(r.Context(), content)
	if err != nil {
		writeSweetError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, rec)
}

// handleListSchemas handles GET /api/v1/schema
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	records, err := s.manager.ListSchemas(r.Context())
	if err != nil {
		writeSweetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, records)
}

// handleGetSchema handles GET /api/v1/schema/{id_or_name}
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelector(r.PathValue("key"))
	if err != nil {
		writeSweetError(w, err)
		return
	}

	rec, err := s.manager.ReadSchema(r.Context(), sel)
	if err != nil {
		writeSweetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rec)
}

// handleDeleteSchema handles DELETE /api/v1/schema/{id_or_name}
func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	s.applyFlag(w, r, s.manager.DeleteSchema, "Schema deleted successfully")
}

// handleToggleSchema handles POST /api/v1/schema/{id_or_name}/toggle
func (s *Server) handleToggleSchema(w http.ResponseWriter, r *http.Request) {
	s.applyFlag(w, r, s.manager.ToggleSchema, "Schema toggled successfully")
}

// handleActivateSchema handles POST /api/v1/schema/{id_or_name}/activate
func (s *Server) handleActivateSchema(w http.ResponseWriter, r *http.Request) {
	s.applyFlag(w, r, s.manager.ActivateSchema, "Schema activated successfully")
}

type flagOperation func(ctx context.Context, sel sweet.SchemaSelector) (bool, error)

func (s *Server) applyFlag(w http.ResponseWriter, r *http.Request, op flagOperation, detail string) {
	sel, err := parseSelector(r.PathValue("key"))
	if err != nil {
		writeSweetError(w, err)
		return
	}

	applied, err := op(r.Context(), sel)
	if err != nil {
		writeSweetError(w, err)
		return
	}
	if !applied {
		writeError(w, http.StatusNotFound, "Schema not found")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"detail": detail})
}

// tableRequest is the optional JSON body of the materialization endpoints.
type tableRequest struct {
	Schemas  []string      `json:"schemas,omitempty"`
	Dialect  sweet.Dialect `json:"dialect,omitempty"`
	IDColumn *string       `json:"id_column,omitempty"`
}

func (s *Server) materializeOptions(req tableRequest) sweet.MaterializeOptions {
	opts := sweet.MaterializeOptions{Dialect: req.Dialect, IDColumn: s.config.Server.DefaultIDColumn}
	if req.IDColumn != nil {
		opts.IDColumn = *req.IDColumn
	}
	return opts
}

// handleCreateTable handles POST /api/v1/schema/{id_or_name}/table
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelector(r.PathValue("key"))
	if err != nil {
		writeSweetError(w, err)
		return
	}

	var req tableRequest
	if err := readOptionalJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	model, err := s.manager.CreateTableFromSchema(r.Context(), sel, s.materializeOptions(req))
	if err != nil {
		writeSweetError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, model)
}

// handleCreateTables handles POST /api/v1/tables
func (s *Server) handleCreateTables(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := readJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	if len(req.Schemas) == 0 {
		writeError(w, http.StatusBadRequest, "schemas must not be empty")
		return
	}

	sels := make([]sweet.SchemaSelector, 0, len(req.Schemas))
	for _, key := range req.Schemas {
		sel, err := parseSelector(key)
		if err != nil {
			writeSweetError(w, err)
			return
		}
		sels = append(sels, sel)
	}

	models, err := s.manager.CreateTablesFromSchemas(r.Context(), sels, s.materializeOptions(req))
	if err != nil {
		writeSweetError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, models)
}
