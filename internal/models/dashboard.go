package models

// AdminDashboardStats summarises the whole school.
type AdminDashboardStats struct {
	TotalStudents   int     `db:"total_students" json:"total_students"`
	TotalTeachers   int     `db:"total_teachers" json:"total_teachers"`
	TotalParents    int     `db:"total_parents" json:"total_parents"`
	TotalClasses    int     `db:"total_classes" json:"total_classes"`
	PendingGrades   int     `db:"pending_grades" json:"pending_grades"`
	FeesCollected   float64 `db:"fees_collected" json:"fees_collected"`
	AttendanceToday int     `db:"attendance_today" json:"attendance_today"`
	UnreadMessages  int     `json:"unread_messages"`
}

// TeacherDashboardStats summarises a teacher's workload.
type TeacherDashboardStats struct {
	TotalClasses    int `db:"total_classes" json:"total_classes"`
	TotalSubjects   int `db:"total_subjects" json:"total_subjects"`
	TotalStudents   int `db:"total_students" json:"total_students"`
	DraftGrades     int `db:"draft_grades" json:"draft_grades"`
	AttendanceToday int `db:"attendance_today" json:"attendance_today"`
	UnreadMessages  int `json:"unread_messages"`
}

// ParentDashboardStats summarises a parent's children.
type ParentDashboardStats struct {
	TotalChildren    int       `json:"total_children"`
	ResultsAvailable int       `json:"results_available"`
	Announcements    int       `json:"announcements"`
	FeeBalance       float64   `json:"fee_balance"`
	Children         []Student `json:"children"`
	UnreadMessages   int       `json:"unread_messages"`
}
