package models

import "time"

// Enrollment records that a user owns a course
type Enrollment struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	CourseID  int       `json:"courseId"`
	PaymentID *int      `json:"paymentId,omitempty"` // nil for admin grants
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnrollmentListItem is an enrolled course with the learner's progress
type EnrollmentListItem struct {
	CourseID         int       `json:"courseId"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	ThumbnailURL     string    `json:"thumbnailUrl,omitempty"`
	Progress         int       `json:"progress"`
	CompletedLessons []int     `json:"completedLessons"`
	EnrolledAt       time.Time `json:"enrolledAt"`
}

// EnrollmentStatusResponse tells whether the caller owns a course
type EnrollmentStatusResponse struct {
	Enrolled bool `json:"enrolled"`
	Progress int  `json:"progress"`
}

// LessonProgressResponse is returned after toggling a lesson completion
type LessonProgressResponse struct {
	CourseID         int   `json:"courseId"`
	Progress         int   `json:"progress"`
	CompletedLessons []int `json:"completedLessons"`
}

// AdminEnrollmentItem is an enrollment row in the admin console
type AdminEnrollmentItem struct {
	Enrollment
	UserEmail   string `json:"userEmail"`
	CourseTitle string `json:"courseTitle"`
}

// EnrollmentFilter narrows admin enrollment listings
type EnrollmentFilter struct {
	UserID   int
	CourseID int
	Page     int
	Count    int
}

// GrantEnrollmentRequest enrolls a user without payment
type GrantEnrollmentRequest struct {
	UserID   int `json:"userId" validate:"required,gt=0"`
	CourseID int `json:"courseId" validate:"required,gt=0"`
}

// CalculateProgress returns the whole percentage of completed lessons
func CalculateProgress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}
