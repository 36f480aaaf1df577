package models

// DashboardStats summarises the platform for the admin console
type DashboardStats struct {
	Users             int   `json:"users"`
	Courses           int   `json:"courses"`
	PublishedCourses  int   `json:"publishedCourses"`
	Enrollments       int   `json:"enrollments"`
	CompletedPayments int   `json:"completedPayments"`
	PendingPayments   int   `json:"pendingPayments"`
	Revenue           int64 `json:"revenue"`
}
