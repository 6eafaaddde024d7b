package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// EnrollmentsService accesses the links between users and courses.
type EnrollmentsService struct {
	client *Client
}

// ListEnrollmentsParams filters enrollment listings.
type ListEnrollmentsParams struct {
	// Type restricts to enrollment classes such as StudentEnrollment or
	// TeacherEnrollment.
	Type []string

	// State restricts by enrollment state: active, invited, and so on.
	State []string

	// UserID restricts a course listing to one user's enrollments.
	UserID int64

	// Include requests embedded data such as grades or user.
	Include []string

	ListOptions
}

func (p *ListEnrollmentsParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	for _, t := range p.Type {
		q.Add("type[]", t)
	}
	for _, state := range p.State {
		q.Add("state[]", state)
	}
	if p.UserID > 0 {
		q.Set("user_id", strconv.FormatInt(p.UserID, 10))
	}
	for _, inc := range p.Include {
		q.Add("include[]", inc)
	}
	p.ListOptions.apply(q)
	return q
}

// ListForCourse returns a course's enrollments.
func (s *EnrollmentsService) ListForCourse(ctx context.Context, courseID int64, params *ListEnrollmentsParams) ([]Enrollment, error) {
	var out []Enrollment
	path := fmt.Sprintf("courses/%d/enrollments", courseID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns a user's enrollments across courses.
func (s *EnrollmentsService) ListForUser(ctx context.Context, userID int64, params *ListEnrollmentsParams) ([]Enrollment, error) {
	var out []Enrollment
	path := fmt.Sprintf("users/%d/enrollments", userID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEnrollmentParams enrolls a user in a course.
type CreateEnrollmentParams struct {
	UserID                         int64  `json:"user_id"`
	Type                           string `json:"type"`
	EnrollmentState                string `json:"enrollment_state,omitempty"`
	CourseSectionID                int64  `json:"course_section_id,omitempty"`
	LimitPrivilegesToCourseSection bool   `json:"limit_privileges_to_course_section,omitempty"`
	Notify                         *bool  `json:"notify,omitempty"`
}

type enrollmentEnvelope struct {
	Enrollment *CreateEnrollmentParams `json:"enrollment"`
}

// Create enrolls a user in a course.
func (s *EnrollmentsService) Create(ctx context.Context, courseID int64, params *CreateEnrollmentParams) (*Enrollment, error) {
	var out Enrollment
	path := fmt.Sprintf("courses/%d/enrollments", courseID)
	if err := s.client.Post(ctx, path, enrollmentEnvelope{Enrollment: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conclude ends an enrollment. task is conclude, delete, inactivate, or
// deactivate; empty means conclude.
func (s *EnrollmentsService) Conclude(ctx context.Context, courseID, enrollmentID int64, task string) (*Enrollment, error) {
	if task == "" {
		task = "conclude"
	}
	q := url.Values{"task": {task}}
	var out Enrollment
	path := fmt.Sprintf("courses/%d/enrollments/%d", courseID, enrollmentID)
	if err := s.client.Delete(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
