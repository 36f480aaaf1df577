// Package handlers exposes the services over the JSON HTTP API
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/middlewares"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
	"github.com/onlinecourse/backend/internal/storage"
	"github.com/onlinecourse/backend/internal/validation"
)

// maxMultipartMemory matches the request size limit of the API
const maxMultipartMemory = 10 << 20

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

var errInvalidBody = errors.New("invalid request body")

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// HandleServiceError maps a service error to a status code and writes it.
// Unexpected errors are logged and hidden behind a generic message that carries the
// request id, so a user report can be matched to the log line.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, message := statusForError(err)
	requestID := middlewares.GetRequestID(r.Context())
	if status < http.StatusInternalServerError {
		h.Logger.Debug("request rejected",
			zap.String("request_id", requestID),
			zap.String("action", action),
			zap.Int("status", status),
			zap.Error(err),
		)
		h.RespondError(w, status, message)
		return
	}

	h.Logger.Error("failed to "+action, zap.String("request_id", requestID), zap.Error(err))
	body := map[string]string{"error": message}
	if requestID != "" {
		body["requestId"] = requestID
	}
	h.RespondJSON(w, status, body)
}

func statusForError(err error) (int, string) {
	var validationErr *validation.Error
	var fieldErr *services.FieldError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, fieldErr.Message
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrCourseFree), errors.Is(err, models.ErrUnsupported):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidToken),
		errors.Is(err, models.ErrInvalidSignature):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, models.ErrPaymentRequired):
		return http.StatusPaymentRequired, rootMessage(err)
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrNotEnrolled):
		return http.StatusForbidden, rootMessage(err)
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, notFoundMessage(err)
	case errors.Is(err, models.ErrAlreadyEnrolled),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrSlugTaken),
		errors.Is(err, models.ErrPaymentNotPending),
		errors.Is(err, models.ErrPaymentExpired):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, models.ErrProviderNotEnabled),
		errors.Is(err, storage.ErrImagesDisabled),
		errors.Is(err, storage.ErrVideosDisabled):
		return http.StatusServiceUnavailable, rootMessage(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage returns the message of the innermost wrapped error so
// internal context never leaks to clients
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// notFoundMessage turns "failed to x: course not found: not found" into "course not found"
func notFoundMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+models.ErrNotFound.Error())
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}

// decodeJSON reads the body into dst and validates it
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return validation.Struct(dst)
}

// parseIDParam parses a positive integer URL parameter
func parseIDParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parsePagination reads page and count query parameters. Zero values let the service apply defaults.
func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	return max(page, 0), max(count, 0)
}

// queryInt reads an optional integer query parameter
func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formUpload extracts an optional image file from a parsed multipart form.
// The returned closer must be called once the upload has been consumed.
func formUpload(r *http.Request, field string) (*services.Upload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read %s file", errInvalidBody, field)
	}
	if header.Size == 0 {
		file.Close()
		return nil, nil, nil
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExtensions[ext] {
		file.Close()
		return nil, nil, &services.FieldError{Field: field, Message: "unsupported image type " + ext}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &services.Upload{Data: file, Extension: ext, ContentType: contentType}, file, nil
}

// formJSON decodes a JSON document sent in the "data" field of a multipart form
func formJSON(r *http.Request, dst any) error {
	raw := r.FormValue("data")
	if raw == "" {
		return errInvalidBody
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return errInvalidBody
	}
	return validation.Struct(dst)
}

func closeUpload(c io.Closer) {
	if c != nil {
		c.Close()
	}
}
