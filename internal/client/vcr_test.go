package client

import (
	"context"
	"testing"

	"github.com/lmskit/canvas-go/internal/testutil"
	"github.com/lmskit/canvas-go/internal/transport"
)

func TestClient_ReplaysRecordedExchanges(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "courses_show")
	defer cleanup()

	c, err := New("https://school.instructure.com",
		WithAPIToken("recorded-token"),
		WithTransport(r),
		WithLogger(quiet()),
		WithBucketStore(transport.NewMemoryBucketStore()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	course, err := c.Courses.Get(ctx, 101)
	if err != nil {
		t.Fatalf("Courses.Get() error = %v", err)
	}
	if course.Name != "Biology" || course.CourseCode != "BIO-101" {
		t.Errorf("course = %+v, want the recorded Biology payload", course)
	}
	if course.StartAt == nil {
		t.Error("course.StartAt should decode from the recorded timestamp")
	}

	self, err := c.Users.Self(ctx)
	if err != nil {
		t.Fatalf("Users.Self() error = %v", err)
	}
	if self.Name != "Ada School" || self.LoginID != "ada@rootland.edu" {
		t.Errorf("self = %+v, want the recorded profile", self)
	}
}
