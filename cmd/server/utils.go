package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/sweet"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// parseSelector resolves an {id_or_name} path segment. A key that parses as
// an integer selects by id, anything else by name.
func parseSelector(key string) (sweet.SchemaSelector, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return sweet.SchemaSelector{}, sweet.NewSelectorError()
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return sweet.ByID(id), nil
	}
	return sweet.ByName(key), nil
}

// APIResponse is the standard error response format
type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, data)
}

// statusForError maps a manager error to its HTTP status.
func statusForError(err error) int {
	se, ok := sweet.AsSweetError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch se.Type {
	case sweet.ErrorTypeInput, sweet.ErrorTypeValidation, sweet.ErrorTypeReference:
		return http.StatusBadRequest
	case sweet.ErrorTypeFormat:
		return http.StatusUnprocessableEntity
	case sweet.ErrorTypeNotFound:
		return http.StatusNotFound
	case sweet.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeSweetError writes err with its code and details. Internal failures
// are logged and reported without their cause.
func writeSweetError(w http.ResponseWriter, err error) error {
	status := statusForError(err)
	se, ok := sweet.AsSweetError(err)
	if !ok {
		zap.S().Errorw("unexpected handler error", "error", err)
		return writeError(w, status, "internal server error")
	}
	if status == http.StatusInternalServerError {
		zap.S().Errorw("schema operation failed", "code", se.Code, "error", err)
	}
	resp := APIResponse{
		Success: false,
		Error:   se.Message,
		Code:    se.Code,
		Field:   se.Field,
	}
	if len(se.Details) > 0 {
		resp.Details = se.Details
	}
	return writeJSON(w, status, resp)
}

var allowedUploadExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// readUpload reads the multipart "file" field. On failure it returns the
// status the caller should answer with.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, int, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", maxBytes)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("file is required")
	}
	defer file.Close()

	if !allowedUploadExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("Invalid file. Use JSON or YAML")
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("read upload: %v", err)
	}
	if len(content) == 0 {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("Empty file")
	}
	return content, http.StatusOK, nil
}

// readJSONBody reads and decodes JSON from request body
func readJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// readOptionalJSONBody is readJSONBody that accepts an empty body.
func readOptionalJSONBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := readJSONBody(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging tags each request with an id and logs its outcome.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		zap.S().Infow("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
