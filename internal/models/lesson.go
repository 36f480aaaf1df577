package models

// Lesson represents a single video lesson
type Lesson struct {
	ID              int    `json:"id"`
	CourseID        int    `json:"courseId"`
	SubCourseID     *int   `json:"subCourseId,omitempty"`
	Title           string `json:"title"`
	VideoID         string `json:"videoId,omitempty"`
	VideoURL        string `json:"videoUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	Position        int    `json:"position"`
	IsPreview       bool   `json:"isPreview"`
}

// LessonView is a lesson as shown to a learner. VideoURL is blank unless the lesson is
// a preview or the viewer is enrolled.
type LessonView struct {
	ID              int    `json:"id"`
	SubCourseID     *int   `json:"subCourseId,omitempty"`
	Title           string `json:"title"`
	VideoURL        string `json:"videoUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	Position        int    `json:"position"`
	IsPreview       bool   `json:"isPreview"`
	Completed       bool   `json:"completed"`
}

// CreateLessonRequest represents a request to create a lesson
type CreateLessonRequest struct {
	CourseID        int    `json:"courseId" validate:"required,gt=0"`
	SubCourseID     *int   `json:"subCourseId,omitempty" validate:"omitempty,gt=0"`
	Title           string `json:"title" validate:"required,max=255"`
	DurationSeconds int    `json:"durationSeconds" validate:"gte=0"`
	Position        int    `json:"position" validate:"gte=0"`
	IsPreview       bool   `json:"isPreview"`
}

// UpdateLessonRequest represents a partial lesson update
type UpdateLessonRequest struct {
	SubCourseID     *int    `json:"subCourseId,omitempty" validate:"omitempty,gte=0"` // 0 detaches the lesson
	Title           *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	DurationSeconds *int    `json:"durationSeconds,omitempty" validate:"omitempty,gte=0"`
	Position        *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
	IsPreview       *bool   `json:"isPreview,omitempty"`
}

// AttachVideoRequest links an uploaded CDN video to a lesson
type AttachVideoRequest struct {
	VideoID string `json:"videoId" validate:"required,max=64"`
}

// CreateUploadTicketRequest asks for a resumable upload ticket
type CreateUploadTicketRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// UploadTicket authorizes a browser to upload one video directly to the CDN
type UploadTicket struct {
	VideoID   string `json:"videoId"`
	LibraryID string `json:"libraryId"`
	ExpiresAt int64  `json:"expiresAt"`
	Signature string `json:"signature"`
	Endpoint  string `json:"endpoint"`
	EmbedURL  string `json:"embedUrl"`
}
