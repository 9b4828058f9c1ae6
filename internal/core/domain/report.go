package domain

// Analytics report shapes served to the dashboard. All fields carry JSON
// tags because these types cross the HTTP API unchanged.

// ProgressSummary is the headline view of one class.
type ProgressSummary struct {
	TotalStudents    int64    `json:"total_students"`
	TotalAssignments int64    `json:"total_assignments"`
	TotalRecords     int64    `json:"total_progressions"`
	AvgGrade         *float64 `json:"avg_grade"`

	// CompletionRate is records / (students * assignments).
	CompletionRate float64 `json:"completion_rate"`
}

// AssignmentCompletion ranks one assignment by how many students finished it.
type AssignmentCompletion struct {
	AssignmentID   string   `json:"assignment_id"`
	Name           string   `json:"name"`
	Type           string   `json:"assignment_type"`
	Completions    int64    `json:"completions"`
	CompletionRate float64  `json:"completion_rate"`
	AvgGrade       *float64 `json:"avg_grade"`
}

// CompletionMetrics aggregates per-assignment completion across a class.
type CompletionMetrics struct {
	TotalAssignments         int64                  `json:"total_assignments"`
	ZeroCompletionCount      int64                  `json:"assignments_with_zero_completions"`
	AvgStudentsPerAssignment float64                `json:"avg_students_per_assignment"`
	Assignments              []AssignmentCompletion `json:"assignments"`
}

// BlockerAssignment is an assignment with unusually low completion,
// a candidate difficulty spike in the course material.
type BlockerAssignment struct {
	AssignmentID   string   `json:"assignment_id"`
	Name           string   `json:"name"`
	Section        *string  `json:"section"`
	CompletionRate float64  `json:"completion_rate"`
	AvgGrade       *float64 `json:"avg_grade"`
	Completions    int64    `json:"completions"`
	TotalStudents  int64    `json:"total_students"`
}

// Risk tiers for StudentHealth, keyed off completion percentage.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// RiskFor buckets a completion fraction into a risk tier.
func RiskFor(completionPct float64) string {
	switch {
	case completionPct < 0.25:
		return RiskCritical
	case completionPct < 0.50:
		return RiskHigh
	case completionPct < 0.75:
		return RiskMedium
	default:
		return RiskLow
	}
}

// StudentHealth scores one student's standing in the class.
type StudentHealth struct {
	StudentID        string   `json:"student_id"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Email            string   `json:"email"`
	Completed        int64    `json:"completed"`
	TotalAssignments int64    `json:"total_assignments"`
	CompletionPct    float64  `json:"completion_pct"`
	AvgGrade         *float64 `json:"avg_grade"`
	Risk             string   `json:"risk"`
}

// WeeklyProgress is one point of the class completion time series.
type WeeklyProgress struct {
	// Week is an ISO-style year-week label ("2025-07").
	Week       string `json:"week"`
	Completed  int64  `json:"completed"`
	Cumulative int64  `json:"cumulative"`
}

// StudentActivity captures recency of engagement for gap detection.
type StudentActivity struct {
	StudentID        string  `json:"student_id"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Email            string  `json:"email"`
	Night            *string `json:"night"`
	LastActivity     *string `json:"last_activity"`
	DaysInactive     *int64  `json:"days_inactive"`
	TotalCompletions int64   `json:"total_completions"`
	TotalAssignments int64   `json:"total_assignments"`
}

// SectionProgress tracks how far the class has moved through one section.
type SectionProgress struct {
	Section           string `json:"section"`
	TotalStudents     int64  `json:"total_students"`
	StudentsStarted   int64  `json:"students_started"`
	StudentsCompleted int64  `json:"students_completed"`
}
