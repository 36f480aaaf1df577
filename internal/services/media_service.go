package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
)

// MediaRepository is the interface that wraps methods for media_items table data access
type MediaRepository interface {
	Create(ctx context.Context, item *models.MediaItem) error
	GetByID(ctx context.Context, id int) (*models.MediaItem, error)
	List(ctx context.Context) ([]models.MediaItem, error)
	Update(ctx context.Context, item *models.MediaItem) error
	Delete(ctx context.Context, id int) error
}

// mediaService implements the landing page media grid
type mediaService struct {
	repo   MediaRepository
	images ImageUploader
	logger *zap.Logger
}

// NewMediaService creates a new media service
func NewMediaService(repo MediaRepository, images ImageUploader, logger *zap.Logger) *mediaService {
	return &mediaService{
		repo:   repo,
		images: images,
		logger: logger,
	}
}

// List returns the grid ordered by row then column
func (s *mediaService) List(ctx context.Context) ([]models.MediaItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.MediaItem{}
	}
	return items, nil
}

// Create adds a grid cell. The asset is either uploaded or referenced by URL.
func (s *mediaService) Create(ctx context.Context, req *models.CreateMediaItemRequest, file *Upload) (*models.MediaItem, error) {
	item := &models.MediaItem{
		Title:      strings.TrimSpace(req.Title),
		AssetURL:   req.AssetURL,
		MediaType:  req.MediaType,
		GridRow:    req.GridRow,
		GridColumn: req.GridColumn,
		RowSpan:    max(req.RowSpan, 1),
		ColSpan:    max(req.ColSpan, 1),
	}

	if file != nil {
		path, url, err := s.images.Upload("media", file.Extension, file.ContentType, file.Data)
		if err != nil {
			return nil, err
		}
		item.StoragePath = path
		item.AssetURL = url
	}
	if item.AssetURL == "" {
		return nil, &FieldError{Field: "assetUrl", Message: "assetUrl or file is required"}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		// Do not leave an orphaned upload behind
		if item.StoragePath != "" {
			if delErr := s.images.Delete(item.StoragePath); delErr != nil {
				s.logger.Warn("failed to remove uploaded media", zap.String("path", item.StoragePath), zap.Error(delErr))
			}
		}
		return nil, err
	}
	return item, nil
}

// Update moves, resizes or renames a grid cell
func (s *mediaService) Update(ctx context.Context, id int, req *models.UpdateMediaItemRequest) (*models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		item.Title = strings.TrimSpace(*req.Title)
	}
	if req.GridRow != nil {
		item.GridRow = *req.GridRow
	}
	if req.GridColumn != nil {
		item.GridColumn = *req.GridColumn
	}
	if req.RowSpan != nil {
		item.RowSpan = *req.RowSpan
	}
	if req.ColSpan != nil {
		item.ColSpan = *req.ColSpan
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes a grid cell and its uploaded asset
func (s *mediaService) Delete(ctx context.Context, id int) error {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if item.StoragePath != "" {
		if err := s.images.Delete(item.StoragePath); err != nil {
			s.logger.Warn("failed to remove media asset", zap.Int("media_id", id), zap.Error(err))
		}
	}
	return nil
}
