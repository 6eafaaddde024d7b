package client

import (
	"context"
	"fmt"
	"net/url"
)

// SubmissionsService accesses assignment submissions and grading.
type SubmissionsService struct {
	client *Client
}

// ListSubmissionsParams filters submission listings.
type ListSubmissionsParams struct {
	// Include requests embedded data such as submission_comments,
	// rubric_assessment, or user.
	Include []string

	// WorkflowState restricts to submitted, unsubmitted, graded, or
	// pending_review.
	WorkflowState string

	ListOptions
}

func (p *ListSubmissionsParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	for _, inc := range p.Include {
		q.Add("include[]", inc)
	}
	if p.WorkflowState != "" {
		q.Set("workflow_state", p.WorkflowState)
	}
	p.ListOptions.apply(q)
	return q
}

// List returns an assignment's submissions.
func (s *SubmissionsService) List(ctx context.Context, courseID, assignmentID int64, params *ListSubmissionsParams) ([]Submission, error) {
	var out []Submission
	path := fmt.Sprintf("courses/%d/assignments/%d/submissions", courseID, assignmentID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one student's submission for an assignment.
func (s *SubmissionsService) Get(ctx context.Context, courseID, assignmentID, userID int64, include ...string) (*Submission, error) {
	q := url.Values{}
	for _, inc := range include {
		q.Add("include[]", inc)
	}
	var out Submission
	path := fmt.Sprintf("courses/%d/assignments/%d/submissions/%d", courseID, assignmentID, userID)
	if err := s.client.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GradeSubmissionParams grades one submission, optionally leaving a
// comment.
type GradeSubmissionParams struct {
	// PostedGrade accepts the forms Canvas does: points ("8"), percentage
	// ("80%"), letter ("B+"), or pass/fail ("pass").
	PostedGrade string

	// Excuse marks the assignment excused for this student.
	Excuse *bool

	// Comment adds a text comment alongside the grade.
	Comment string
}

type gradePayload struct {
	PostedGrade string `json:"posted_grade,omitempty"`
	Excuse      *bool  `json:"excuse,omitempty"`
}

type commentPayload struct {
	TextComment string `json:"text_comment"`
}

type gradeEnvelope struct {
	Submission gradePayload    `json:"submission"`
	Comment    *commentPayload `json:"comment,omitempty"`
}

// Grade records a grade for one student's submission.
func (s *SubmissionsService) Grade(ctx context.Context, courseID, assignmentID, userID int64, params *GradeSubmissionParams) (*Submission, error) {
	if params == nil {
		params = &GradeSubmissionParams{}
	}
	envelope := gradeEnvelope{
		Submission: gradePayload{PostedGrade: params.PostedGrade, Excuse: params.Excuse},
	}
	if params.Comment != "" {
		envelope.Comment = &commentPayload{TextComment: params.Comment}
	}

	var out Submission
	path := fmt.Sprintf("courses/%d/assignments/%d/submissions/%d", courseID, assignmentID, userID)
	if err := s.client.Put(ctx, path, envelope, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
