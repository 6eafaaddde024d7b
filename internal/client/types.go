package client

import (
	"net/url"
	"strconv"
	"time"
)

// ListOptions selects a result page. Canvas paginates with Link headers,
// which this client does not follow; callers page explicitly.
type ListOptions struct {
	Page    int
	PerPage int
}

func (o ListOptions) apply(q url.Values) {
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(o.PerPage))
	}
}

// Account is a Canvas account or sub-account.
type Account struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	UUID            string `json:"uuid,omitempty"`
	ParentAccountID *int64 `json:"parent_account_id"`
	RootAccountID   *int64 `json:"root_account_id"`
	WorkflowState   string `json:"workflow_state,omitempty"`
	DefaultTimeZone string `json:"default_time_zone,omitempty"`
}

// Term is a Canvas enrollment term.
type Term struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	StartAt       *time.Time `json:"start_at"`
	EndAt         *time.Time `json:"end_at"`
	WorkflowState string     `json:"workflow_state,omitempty"`
	SISTermID     *string    `json:"sis_term_id"`
}

// Course is a Canvas course.
type Course struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	AccountID        int64      `json:"account_id"`
	UUID             string     `json:"uuid,omitempty"`
	CourseCode       string     `json:"course_code,omitempty"`
	SISCourseID      *string    `json:"sis_course_id"`
	WorkflowState    string     `json:"workflow_state,omitempty"`
	EnrollmentTermID int64      `json:"enrollment_term_id,omitempty"`
	StartAt          *time.Time `json:"start_at"`
	EndAt            *time.Time `json:"end_at"`
	TotalStudents    int        `json:"total_students,omitempty"`
	SyllabusBody     string     `json:"syllabus_body,omitempty"`
	IsPublic         bool       `json:"is_public,omitempty"`
	Term             *Term      `json:"term,omitempty"`
}

// User is a Canvas user.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	ShortName    string     `json:"short_name,omitempty"`
	SortableName string     `json:"sortable_name,omitempty"`
	SISUserID    *string    `json:"sis_user_id"`
	LoginID      string     `json:"login_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	CreatedAt    *time.Time `json:"created_at"`
}

// UserProfile is a Canvas user's profile.
type UserProfile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name,omitempty"`
	SortableName string `json:"sortable_name,omitempty"`
	Title        string `json:"title,omitempty"`
	Bio          string `json:"bio,omitempty"`
	PrimaryEmail string `json:"primary_email,omitempty"`
	LoginID      string `json:"login_id,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	TimeZone     string `json:"time_zone,omitempty"`
	Locale       string `json:"locale,omitempty"`
}

// Grades carries the score fields embedded in an enrollment.
type Grades struct {
	CurrentScore *float64 `json:"current_score"`
	FinalScore   *float64 `json:"final_score"`
	CurrentGrade *string  `json:"current_grade"`
	FinalGrade   *string  `json:"final_grade"`
}

// Enrollment links a user to a course in a role.
type Enrollment struct {
	ID              int64   `json:"id"`
	CourseID        int64   `json:"course_id"`
	CourseSectionID int64   `json:"course_section_id,omitempty"`
	UserID          int64   `json:"user_id"`
	Type            string  `json:"type"`
	Role            string  `json:"role,omitempty"`
	EnrollmentState string  `json:"enrollment_state,omitempty"`
	Grades          *Grades `json:"grades,omitempty"`
	User            *User   `json:"user,omitempty"`
}

// Assignment is a Canvas assignment.
type Assignment struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	DueAt           *time.Time `json:"due_at"`
	LockAt          *time.Time `json:"lock_at"`
	UnlockAt        *time.Time `json:"unlock_at"`
	PointsPossible  float64    `json:"points_possible"`
	GradingType     string     `json:"grading_type,omitempty"`
	SubmissionTypes []string   `json:"submission_types,omitempty"`
	Published       bool       `json:"published"`
	Position        int        `json:"position,omitempty"`
	WorkflowState   string     `json:"workflow_state,omitempty"`
	HTMLURL         string     `json:"html_url,omitempty"`
}

// Submission is a student's submission for an assignment.
type Submission struct {
	ID             int64      `json:"id"`
	AssignmentID   int64      `json:"assignment_id"`
	UserID         int64      `json:"user_id"`
	Attempt        int        `json:"attempt,omitempty"`
	Body           string     `json:"body,omitempty"`
	Grade          *string    `json:"grade"`
	Score          *float64   `json:"score"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	GradedAt       *time.Time `json:"graded_at"`
	WorkflowState  string     `json:"workflow_state,omitempty"`
	Late           bool       `json:"late,omitempty"`
	Missing        bool       `json:"missing,omitempty"`
	Excused        bool       `json:"excused,omitempty"`
	SubmissionType string     `json:"submission_type,omitempty"`
	PreviewURL     string     `json:"preview_url,omitempty"`
}

// Module is a Canvas course module.
type Module struct {
	ID                        int64        `json:"id"`
	Name                      string       `json:"name"`
	Position                  int          `json:"position,omitempty"`
	UnlockAt                  *time.Time   `json:"unlock_at"`
	RequireSequentialProgress bool         `json:"require_sequential_progress,omitempty"`
	Published                 bool         `json:"published"`
	ItemsCount                int          `json:"items_count,omitempty"`
	Items                     []ModuleItem `json:"items,omitempty"`
}

// ModuleItem is one entry inside a module.
type ModuleItem struct {
	ID        int64  `json:"id"`
	ModuleID  int64  `json:"module_id,omitempty"`
	Position  int    `json:"position,omitempty"`
	Title     string `json:"title"`
	Type      string `json:"type,omitempty"`
	ContentID int64  `json:"content_id,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
	Published bool   `json:"published"`
}

// Page is a Canvas wiki page. Pages are addressed by URL slug, not id.
type Page struct {
	PageID       int64      `json:"page_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
	Published    bool       `json:"published"`
	FrontPage    bool       `json:"front_page,omitempty"`
	EditingRoles string     `json:"editing_roles,omitempty"`
}

// Section is a Canvas course section.
type Section struct {
	ID            int64      `json:"id"`
	CourseID      int64      `json:"course_id"`
	Name          string     `json:"name"`
	SISSectionID  *string    `json:"sis_section_id"`
	StartAt       *time.Time `json:"start_at"`
	EndAt         *time.Time `json:"end_at"`
	TotalStudents int        `json:"total_students,omitempty"`
}
