package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// AssignmentsService accesses a course's assignments.
type AssignmentsService struct {
	client *Client
}

// ListAssignmentsParams filters assignment listings.
type ListAssignmentsParams struct {
	// Include requests embedded data such as submission or all_dates.
	Include []string

	// SearchTerm filters by partial assignment name.
	SearchTerm string

	// Bucket restricts by schedule: past, overdue, undated, ungraded,
	// unsubmitted, upcoming, or future.
	Bucket string

	// OrderBy sorts by position, name, or due_at.
	OrderBy string

	ListOptions
}

func (p *ListAssignmentsParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	for _, inc := range p.Include {
		q.Add("include[]", inc)
	}
	if p.SearchTerm != "" {
		q.Set("search_term", p.SearchTerm)
	}
	if p.Bucket != "" {
		q.Set("bucket", p.Bucket)
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}
	p.ListOptions.apply(q)
	return q
}

// List returns a course's assignments.
func (s *AssignmentsService) List(ctx context.Context, courseID int64, params *ListAssignmentsParams) ([]Assignment, error) {
	var out []Assignment
	path := fmt.Sprintf("courses/%d/assignments", courseID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one assignment.
func (s *AssignmentsService) Get(ctx context.Context, courseID, assignmentID int64, include ...string) (*Assignment, error) {
	q := url.Values{}
	for _, inc := range include {
		q.Add("include[]", inc)
	}
	var out Assignment
	path := fmt.Sprintf("courses/%d/assignments/%d", courseID, assignmentID)
	if err := s.client.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignmentParams are the mutable assignment attributes for Create and
// Update.
type AssignmentParams struct {
	Name            string     `json:"name,omitempty"`
	Description     string     `json:"description,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	LockAt          *time.Time `json:"lock_at,omitempty"`
	UnlockAt        *time.Time `json:"unlock_at,omitempty"`
	PointsPossible  *float64   `json:"points_possible,omitempty"`
	GradingType     string     `json:"grading_type,omitempty"`
	SubmissionTypes []string   `json:"submission_types,omitempty"`
	Published       *bool      `json:"published,omitempty"`
	Position        int        `json:"position,omitempty"`
}

type assignmentEnvelope struct {
	Assignment *AssignmentParams `json:"assignment"`
}

// Create adds an assignment to a course.
func (s *AssignmentsService) Create(ctx context.Context, courseID int64, params *AssignmentParams) (*Assignment, error) {
	var out Assignment
	path := fmt.Sprintf("courses/%d/assignments", courseID)
	if err := s.client.Post(ctx, path, assignmentEnvelope{Assignment: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies an assignment.
func (s *AssignmentsService) Update(ctx context.Context, courseID, assignmentID int64, params *AssignmentParams) (*Assignment, error) {
	var out Assignment
	path := fmt.Sprintf("courses/%d/assignments/%d", courseID, assignmentID)
	if err := s.client.Put(ctx, path, assignmentEnvelope{Assignment: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an assignment.
func (s *AssignmentsService) Delete(ctx context.Context, courseID, assignmentID int64) error {
	path := fmt.Sprintf("courses/%d/assignments/%d", courseID, assignmentID)
	return s.client.Delete(ctx, path, nil, nil)
}
