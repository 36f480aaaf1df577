package models

import "time"

// CourseLevel is the difficulty of a course
type CourseLevel string

const (
	CourseLevelBeginner     CourseLevel = "beginner"
	CourseLevelIntermediate CourseLevel = "intermediate"
	CourseLevelAdvanced     CourseLevel = "advanced"
)

// Course represents a sellable course
type Course struct {
	ID           int         `json:"id"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Price        int64       `json:"price"` // whole MNT
	Category     string      `json:"category"`
	Level        CourseLevel `json:"level"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	IsPublished  bool        `json:"isPublished"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// CourseListItem represents a course in catalog listings
type CourseListItem struct {
	ID           int         `json:"id"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Price        int64       `json:"price"`
	Category     string      `json:"category"`
	Level        CourseLevel `json:"level"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	IsPublished  bool        `json:"isPublished"`
	LessonCount  int         `json:"lessonCount"`
}

// CourseFilter narrows course listings
type CourseFilter struct {
	Category           string
	Level              CourseLevel
	Search             string
	Page               int
	Count              int
	IncludeUnpublished bool
}

// SubCourseWithLessons is a section of a course detail page
type SubCourseWithLessons struct {
	SubCourse
	Lessons []LessonView `json:"lessons"`
}

// CourseDetailResponse is a course with its curriculum
type CourseDetailResponse struct {
	Course
	SubCourses   []SubCourseWithLessons `json:"subCourses"`
	Lessons      []LessonView           `json:"lessons"` // lessons outside any sub-course
	TotalLessons int                    `json:"totalLessons"`
	Enrolled     bool                   `json:"enrolled"`
	Progress     int                    `json:"progress"`
}

// CreateCourseRequest represents a request to create a course
type CreateCourseRequest struct {
	Slug        string      `json:"slug" validate:"omitempty,max=255"`
	Title       string      `json:"title" validate:"required,max=255"`
	Description string      `json:"description"`
	Price       int64       `json:"price" validate:"gte=0"`
	Category    string      `json:"category" validate:"max=100"`
	Level       CourseLevel `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	IsPublished bool        `json:"isPublished"`
}

// UpdateCourseRequest represents a partial course update
type UpdateCourseRequest struct {
	Slug        *string      `json:"slug,omitempty" validate:"omitempty,max=255"`
	Title       *string      `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string      `json:"description,omitempty"`
	Price       *int64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	Category    *string      `json:"category,omitempty" validate:"omitempty,max=100"`
	Level       *CourseLevel `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	IsPublished *bool        `json:"isPublished,omitempty"`
}

// ListResponse is a page of items
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Count int `json:"count"`
}
