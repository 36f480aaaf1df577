package models

// SubCourse groups lessons inside a course
type SubCourse struct {
	ID       int    `json:"id"`
	CourseID int    `json:"courseId"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// CreateSubCourseRequest represents a request to create a sub-course
type CreateSubCourseRequest struct {
	CourseID int    `json:"courseId" validate:"required,gt=0"`
	Title    string `json:"title" validate:"required,max=255"`
	Position int    `json:"position" validate:"gte=0"`
}

// UpdateSubCourseRequest represents a partial sub-course update
type UpdateSubCourseRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Position *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
}
