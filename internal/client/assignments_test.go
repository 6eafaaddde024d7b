package client

import (
	"context"
	"net/http"
	"testing"
)

func TestAssignmentsService_List(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`[{"id":201,"course_id":101,"name":"Lab Report 1","points_possible":10}]`)
	c := o.client(t)

	assignments, err := c.Assignments.List(context.Background(), 101, &ListAssignmentsParams{
		Include: []string{"submission"},
		Bucket:  "upcoming",
		OrderBy: "due_at",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(assignments) != 1 || assignments[0].PointsPossible != 10 {
		t.Errorf("assignments = %+v, want the decoded fixture", assignments)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/assignments" {
		t.Errorf("path = %q, want /api/v1/courses/101/assignments", rec.Path)
	}
	if rec.Query.Get("include[]") != "submission" ||
		rec.Query.Get("bucket") != "upcoming" ||
		rec.Query.Get("order_by") != "due_at" {
		t.Errorf("query = %v, want include, bucket, and order_by set", rec.Query)
	}
}

func TestAssignmentsService_Get(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":201,"name":"Lab Report 1"}`)
	c := o.client(t)

	if _, err := c.Assignments.Get(context.Background(), 101, 201, "submission"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/assignments/201" {
		t.Errorf("path = %q, want the assignment detail", rec.Path)
	}
	if got := rec.Query.Get("include[]"); got != "submission" {
		t.Errorf("include[] = %q, want submission", got)
	}
}

func TestAssignmentsService_Create(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":210,"name":"Essay 1","points_possible":20}`)
	c := o.client(t)

	points := 20.0
	published := true
	assignment, err := c.Assignments.Create(context.Background(), 101, &AssignmentParams{
		Name:            "Essay 1",
		PointsPossible:  &points,
		SubmissionTypes: []string{"online_text_entry"},
		Published:       &published,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if assignment.ID != 210 {
		t.Errorf("assignment.ID = %d, want 210", assignment.ID)
	}

	rec := o.last(t)
	if rec.Method != http.MethodPost || rec.Path != "/api/v1/courses/101/assignments" {
		t.Errorf("request = %s %s, want POST to the course assignments", rec.Method, rec.Path)
	}
	want := `{"assignment":{"name":"Essay 1","points_possible":20,"submission_types":["online_text_entry"],"published":true}}`
	if rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}
}

func TestAssignmentsService_UpdateAndDelete(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":210,"name":"Essay 1 (revised)"}`)
	c := o.client(t)
	ctx := context.Background()

	if _, err := c.Assignments.Update(ctx, 101, 210, &AssignmentParams{Name: "Essay 1 (revised)"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	rec := o.last(t)
	if rec.Method != http.MethodPut || rec.Path != "/api/v1/courses/101/assignments/210" {
		t.Errorf("request = %s %s, want PUT on the assignment", rec.Method, rec.Path)
	}
	if want := `{"assignment":{"name":"Essay 1 (revised)"}}`; rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}

	if err := c.Assignments.Delete(ctx, 101, 210); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	rec = o.last(t)
	if rec.Method != http.MethodDelete || rec.Path != "/api/v1/courses/101/assignments/210" {
		t.Errorf("request = %s %s, want DELETE on the assignment", rec.Method, rec.Path)
	}
}
