package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// CoursesService accesses courses.
type CoursesService struct {
	client *Client
}

// ListCoursesParams filters course listings.
type ListCoursesParams struct {
	// EnrollmentType restricts to courses where the user holds this role:
	// teacher, student, ta, observer, or designer.
	EnrollmentType string

	// EnrollmentState restricts by the user's enrollment state: active,
	// invited_or_pending, or completed.
	EnrollmentState string

	// State restricts by course state: unpublished, available, completed,
	// or deleted.
	State []string

	// Include requests embedded data such as term, total_students, or
	// syllabus_body.
	Include []string

	// SearchTerm filters by partial name or code. Only honored on account
	// listings.
	SearchTerm string

	ListOptions
}

func (p *ListCoursesParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	if p.EnrollmentType != "" {
		q.Set("enrollment_type", p.EnrollmentType)
	}
	if p.EnrollmentState != "" {
		q.Set("enrollment_state", p.EnrollmentState)
	}
	for _, state := range p.State {
		q.Add("state[]", state)
	}
	for _, inc := range p.Include {
		q.Add("include[]", inc)
	}
	if p.SearchTerm != "" {
		q.Set("search_term", p.SearchTerm)
	}
	p.ListOptions.apply(q)
	return q
}

// List returns the current user's courses.
func (s *CoursesService) List(ctx context.Context, params *ListCoursesParams) ([]Course, error) {
	var out []Course
	if err := s.client.Get(ctx, "courses", params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForAccount returns an account's courses.
func (s *CoursesService) ListForAccount(ctx context.Context, accountID int64, params *ListCoursesParams) ([]Course, error) {
	var out []Course
	path := fmt.Sprintf("accounts/%d/courses", accountID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one course, with the given includes embedded.
func (s *CoursesService) Get(ctx context.Context, courseID int64, include ...string) (*Course, error) {
	q := url.Values{}
	for _, inc := range include {
		q.Add("include[]", inc)
	}
	var out Course
	if err := s.client.Get(ctx, fmt.Sprintf("courses/%d", courseID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CourseParams are the mutable course attributes for Create and Update.
type CourseParams struct {
	Name         string     `json:"name,omitempty"`
	CourseCode   string     `json:"course_code,omitempty"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	License      string     `json:"license,omitempty"`
	IsPublic     *bool      `json:"is_public,omitempty"`
	SyllabusBody string     `json:"syllabus_body,omitempty"`
	TermID       int64      `json:"term_id,omitempty"`
	SISCourseID  string     `json:"sis_course_id,omitempty"`

	// Event triggers a state change on Update: claim, offer, conclude,
	// delete, or undelete.
	Event string `json:"event,omitempty"`
}

type courseEnvelope struct {
	Course *CourseParams `json:"course"`
	Offer  bool          `json:"offer,omitempty"`
}

// Create creates a course under an account. offer publishes it
// immediately.
func (s *CoursesService) Create(ctx context.Context, accountID int64, params *CourseParams, offer bool) (*Course, error) {
	var out Course
	path := fmt.Sprintf("accounts/%d/courses", accountID)
	if err := s.client.Post(ctx, path, courseEnvelope{Course: params, Offer: offer}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a course.
func (s *CoursesService) Update(ctx context.Context, courseID int64, params *CourseParams) (*Course, error) {
	var out Course
	path := fmt.Sprintf("courses/%d", courseID)
	if err := s.client.Put(ctx, path, courseEnvelope{Course: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes or ends a course; event is delete or conclude.
func (s *CoursesService) Delete(ctx context.Context, courseID int64, event string) error {
	if event == "" {
		event = "delete"
	}
	q := url.Values{"event": {event}}
	return s.client.Delete(ctx, fmt.Sprintf("courses/%d", courseID), q, nil)
}
