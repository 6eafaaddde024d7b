package client

import (
	"context"
	"net/http"
	"reflect"
	"testing"
)

func TestCoursesService_List(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`[{"id":101,"name":"Biology","course_code":"BIO-101"},{"id":102,"name":"Organic Chemistry"}]`)
	c := o.client(t)

	courses, err := c.Courses.List(context.Background(), &ListCoursesParams{
		EnrollmentState: "active",
		State:           []string{"available", "completed"},
		Include:         []string{"term", "total_students"},
		ListOptions:     ListOptions{Page: 2, PerPage: 50},
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(courses) != 2 || courses[0].Name != "Biology" {
		t.Errorf("courses = %+v, want both decoded fixtures", courses)
	}

	rec := o.last(t)
	if rec.Method != http.MethodGet || rec.Path != "/api/v1/courses" {
		t.Errorf("request = %s %s, want GET /api/v1/courses", rec.Method, rec.Path)
	}
	if got := rec.Query.Get("enrollment_state"); got != "active" {
		t.Errorf("enrollment_state = %q, want active", got)
	}
	if got := rec.Query["state[]"]; !reflect.DeepEqual(got, []string{"available", "completed"}) {
		t.Errorf("state[] = %v, want both states", got)
	}
	if got := rec.Query["include[]"]; !reflect.DeepEqual(got, []string{"term", "total_students"}) {
		t.Errorf("include[] = %v, want both includes", got)
	}
	if rec.Query.Get("page") != "2" || rec.Query.Get("per_page") != "50" {
		t.Errorf("pagination query = %v, want page=2 per_page=50", rec.Query)
	}
}

func TestCoursesService_ListForAccount(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `[{"id":101,"name":"Biology"}]`)
	c := o.client(t)

	_, err := c.Courses.ListForAccount(context.Background(), 1, &ListCoursesParams{
		SearchTerm: "bio",
	})
	if err != nil {
		t.Fatalf("ListForAccount() error = %v", err)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/accounts/1/courses" {
		t.Errorf("path = %q, want the account course listing", rec.Path)
	}
	if got := rec.Query.Get("search_term"); got != "bio" {
		t.Errorf("search_term = %q, want bio", got)
	}
}

func TestCoursesService_Get(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`{"id":101,"name":"Biology","term":{"id":1,"name":"Fall 2025"}}`)
	c := o.client(t)

	course, err := c.Courses.Get(context.Background(), 101, "term")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if course.Term == nil || course.Term.Name != "Fall 2025" {
		t.Errorf("course.Term = %+v, want the embedded term", course.Term)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101" {
		t.Errorf("path = %q, want /api/v1/courses/101", rec.Path)
	}
	if got := rec.Query.Get("include[]"); got != "term" {
		t.Errorf("include[] = %q, want term", got)
	}
}

func TestCoursesService_Create(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":1050,"name":"Intro Writing"}`)
	c := o.client(t)

	course, err := c.Courses.Create(context.Background(), 1, &CourseParams{
		Name:       "Intro Writing",
		CourseCode: "WRT-101",
	}, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if course.ID != 1050 {
		t.Errorf("course.ID = %d, want 1050", course.ID)
	}

	rec := o.last(t)
	if rec.Method != http.MethodPost || rec.Path != "/api/v1/accounts/1/courses" {
		t.Errorf("request = %s %s, want POST /api/v1/accounts/1/courses", rec.Method, rec.Path)
	}
	want := `{"course":{"name":"Intro Writing","course_code":"WRT-101"},"offer":true}`
	if rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}
}

func TestCoursesService_Update(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":101,"name":"Renamed"}`)
	c := o.client(t)

	if _, err := c.Courses.Update(context.Background(), 101, &CourseParams{Name: "Renamed"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec := o.last(t)
	if rec.Method != http.MethodPut || rec.Path != "/api/v1/courses/101" {
		t.Errorf("request = %s %s, want PUT /api/v1/courses/101", rec.Method, rec.Path)
	}
	if want := `{"course":{"name":"Renamed"}}`; rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}
}

func TestCoursesService_Delete(t *testing.T) {
	tests := []struct {
		name      string
		event     string
		wantEvent string
	}{
		{"default event", "", "delete"},
		{"conclude", "conclude", "conclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrigin(t, http.StatusOK, `{"delete":true}`)
			c := o.client(t)

			if err := c.Courses.Delete(context.Background(), 101, tt.event); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			rec := o.last(t)
			if rec.Method != http.MethodDelete || rec.Path != "/api/v1/courses/101" {
				t.Errorf("request = %s %s, want DELETE /api/v1/courses/101", rec.Method, rec.Path)
			}
			if got := rec.Query.Get("event"); got != tt.wantEvent {
				t.Errorf("event = %q, want %q", got, tt.wantEvent)
			}
		})
	}
}
