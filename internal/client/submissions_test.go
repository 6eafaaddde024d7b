package client

import (
	"context"
	"net/http"
	"testing"
)

func TestSubmissionsService_List(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`[{"id":55,"assignment_id":201,"user_id":7,"workflow_state":"submitted"}]`)
	c := o.client(t)

	submissions, err := c.Submissions.List(context.Background(), 101, 201, &ListSubmissionsParams{
		Include:       []string{"user"},
		WorkflowState: "submitted",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(submissions) != 1 || submissions[0].AssignmentID != 201 {
		t.Errorf("submissions = %+v, want the decoded fixture", submissions)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/assignments/201/submissions" {
		t.Errorf("path = %q, want the submissions listing", rec.Path)
	}
	if rec.Query.Get("include[]") != "user" || rec.Query.Get("workflow_state") != "submitted" {
		t.Errorf("query = %v, want include and workflow_state set", rec.Query)
	}
}

func TestSubmissionsService_Get(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":55,"assignment_id":201,"user_id":7}`)
	c := o.client(t)

	if _, err := c.Submissions.Get(context.Background(), 101, 201, 7, "submission_comments"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/assignments/201/submissions/7" {
		t.Errorf("path = %q, want the student's submission", rec.Path)
	}
	if got := rec.Query.Get("include[]"); got != "submission_comments" {
		t.Errorf("include[] = %q, want submission_comments", got)
	}
}

func TestSubmissionsService_Grade(t *testing.T) {
	excuse := true
	tests := []struct {
		name     string
		params   *GradeSubmissionParams
		wantBody string
	}{
		{
			name:     "grade with comment",
			params:   &GradeSubmissionParams{PostedGrade: "8", Comment: "Nice work"},
			wantBody: `{"submission":{"posted_grade":"8"},"comment":{"text_comment":"Nice work"}}`,
		},
		{
			name:     "percentage grade alone",
			params:   &GradeSubmissionParams{PostedGrade: "95%"},
			wantBody: `{"submission":{"posted_grade":"95%"}}`,
		},
		{
			name:     "excused",
			params:   &GradeSubmissionParams{Excuse: &excuse},
			wantBody: `{"submission":{"excuse":true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrigin(t, http.StatusOK,
				`{"id":55,"assignment_id":201,"user_id":7,"grade":"8","score":8}`)
			c := o.client(t)

			submission, err := c.Submissions.Grade(context.Background(), 101, 201, 7, tt.params)
			if err != nil {
				t.Fatalf("Grade() error = %v", err)
			}
			if submission.Grade == nil || *submission.Grade != "8" {
				t.Errorf("Grade = %v, want decoded grade", submission.Grade)
			}
			if submission.Score == nil || *submission.Score != 8 {
				t.Errorf("Score = %v, want decoded score", submission.Score)
			}

			rec := o.last(t)
			if rec.Method != http.MethodPut || rec.Path != "/api/v1/courses/101/assignments/201/submissions/7" {
				t.Errorf("request = %s %s, want PUT on the submission", rec.Method, rec.Path)
			}
			if rec.Body != tt.wantBody {
				t.Errorf("body = %s, want %s", rec.Body, tt.wantBody)
			}
		})
	}
}
