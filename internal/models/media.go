package models

import "time"

// MediaType is the kind of asset in a grid cell
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaItem is a positioned cell of the landing page grid
type MediaItem struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	AssetURL    string    `json:"assetUrl"`
	StoragePath string    `json:"-"` // object path when the asset lives in our bucket
	MediaType   MediaType `json:"mediaType"`
	GridRow     int       `json:"gridRow"`
	GridColumn  int       `json:"gridColumn"`
	RowSpan     int       `json:"rowSpan"`
	ColSpan     int       `json:"colSpan"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateMediaItemRequest represents a new grid cell; AssetURL is used when no file is uploaded
type CreateMediaItemRequest struct {
	Title      string    `json:"title" validate:"max=255"`
	AssetURL   string    `json:"assetUrl" validate:"omitempty,url"`
	MediaType  MediaType `json:"mediaType" validate:"required,oneof=image video"`
	GridRow    int       `json:"gridRow" validate:"gte=0"`
	GridColumn int       `json:"gridColumn" validate:"gte=0"`
	RowSpan    int       `json:"rowSpan" validate:"gte=0,lte=12"`
	ColSpan    int       `json:"colSpan" validate:"gte=0,lte=12"`
}

// UpdateMediaItemRequest represents a partial grid cell update
type UpdateMediaItemRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,max=255"`
	GridRow    *int    `json:"gridRow,omitempty" validate:"omitempty,gte=0"`
	GridColumn *int    `json:"gridColumn,omitempty" validate:"omitempty,gte=0"`
	RowSpan    *int    `json:"rowSpan,omitempty" validate:"omitempty,gte=1,lte=12"`
	ColSpan    *int    `json:"colSpan,omitempty" validate:"omitempty,gte=1,lte=12"`
}
