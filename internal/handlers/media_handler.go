package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
)

// MediaService is the interface that wraps methods for the media grid.
type MediaService interface {
	// Method List returns every grid cell ordered by row and column.
	List(ctx context.Context) ([]models.MediaItem, error)
	// Method Create adds a grid cell. "file" parameter is uploaded to image storage; when nil the request must carry an asset URL.
	Create(ctx context.Context, req *models.CreateMediaItemRequest, file *services.Upload) (*models.MediaItem, error)
	// Method Update moves, resizes or renames a grid cell.
	Update(ctx context.Context, id int, req *models.UpdateMediaItemRequest) (*models.MediaItem, error)
	// Method Delete removes a grid cell together with its uploaded asset.
	Delete(ctx context.Context, id int) error
}

// MediaHandler handles media grid HTTP requests
type MediaHandler struct {
	BaseHandler
	mediaService MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		mediaService: mediaService,
	}
}

// RegisterRoutes registers the public media route
// Note: This assumes the router is already scoped to /api/v1
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/media", h.List)
}

// RegisterAdminRoutes registers media grid management routes
// Note: This assumes the router is already scoped to /api/v1/admin and guarded by the admin role
func (h *MediaHandler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/media", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /media
// @Summary Media grid
// @Tags media
// @Produce json
// @Success 200 {array} models.MediaItem
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media [get]
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.mediaService.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "list media")
		return
	}

	h.RespondJSON(w, http.StatusOK, items)
}

// Create handles POST /admin/media
// @Summary Create media grid cell
// @Description Send JSON with an assetUrl, or multipart/form-data with a JSON "data" field and a "file" image
// @Tags admin
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateMediaItemRequest true "Grid cell"
// @Param file formData file false "Image to upload"
// @Success 201 {object} models.MediaItem
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 503 {object} map[string]string "Image storage not configured"
// @Router /admin/media [post]
func (h *MediaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMediaItemRequest
	var file *services.Upload

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			h.RespondError(w, http.StatusBadRequest, "failed to parse request")
			return
		}
		if err := formJSON(r, &req); err != nil {
			h.HandleServiceError(w, r, err, "create media item")
			return
		}
		upload, closer, err := formUpload(r, "file")
		if err != nil {
			h.HandleServiceError(w, r, err, "create media item")
			return
		}
		defer closeUpload(closer)
		file = upload
	} else if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "create media item")
		return
	}

	item, err := h.mediaService.Create(r.Context(), &req, file)
	if err != nil {
		h.HandleServiceError(w, r, err, "create media item")
		return
	}

	h.RespondJSON(w, http.StatusCreated, item)
}

// Update handles PATCH /admin/media/{id}
// @Summary Update media grid cell
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Media item ID"
// @Param request body models.UpdateMediaItemRequest true "Fields to change"
// @Success 200 {object} models.MediaItem
// @Failure 404 {object} map[string]string "Media item not found"
// @Router /admin/media/{id} [patch]
func (h *MediaHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateMediaItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update media item")
		return
	}

	item, err := h.mediaService.Update(r.Context(), id, &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "update media item")
		return
	}

	h.RespondJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /admin/media/{id}
// @Summary Delete media grid cell
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "Media item ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Media item not found"
// @Router /admin/media/{id} [delete]
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.mediaService.Delete(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err, "delete media item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
