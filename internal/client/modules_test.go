package client

import (
	"context"
	"net/http"
	"testing"
)

func TestModulesService_ListAndGet(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`[{"id":401,"name":"Week 1","items_count":3,"items":[{"id":4001,"title":"Syllabus","type":"Page"}]}]`)
	c := o.client(t)
	ctx := context.Background()

	modules, err := c.Modules.List(ctx, 101, &ListModulesParams{Include: []string{"items"}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(modules) != 1 || len(modules[0].Items) != 1 || modules[0].Items[0].Title != "Syllabus" {
		t.Errorf("modules = %+v, want embedded items decoded", modules)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/modules" {
		t.Errorf("path = %q, want /api/v1/courses/101/modules", rec.Path)
	}
	if got := rec.Query.Get("include[]"); got != "items" {
		t.Errorf("include[] = %q, want items", got)
	}
}

func TestModulesService_Items(t *testing.T) {
	o := newOrigin(t, http.StatusOK,
		`[{"id":4001,"module_id":401,"position":1,"title":"Syllabus","type":"Page"}]`)
	c := o.client(t)

	items, err := c.Modules.Items(context.Background(), 101, 401, ListOptions{PerPage: 100})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 1 || items[0].Type != "Page" {
		t.Errorf("items = %+v, want the decoded item", items)
	}

	rec := o.last(t)
	if rec.Path != "/api/v1/courses/101/modules/401/items" {
		t.Errorf("path = %q, want the module items listing", rec.Path)
	}
	if got := rec.Query.Get("per_page"); got != "100" {
		t.Errorf("per_page = %q, want 100", got)
	}
}

func TestModulesService_CreateUpdateDelete(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"id":401,"name":"Week 1"}`)
	c := o.client(t)
	ctx := context.Background()

	if _, err := c.Modules.Create(ctx, 101, &ModuleParams{Name: "Week 1", Position: 1}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec := o.last(t)
	if rec.Method != http.MethodPost || rec.Path != "/api/v1/courses/101/modules" {
		t.Errorf("request = %s %s, want POST to the course modules", rec.Method, rec.Path)
	}
	if want := `{"module":{"name":"Week 1","position":1}}`; rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}

	published := true
	if _, err := c.Modules.Update(ctx, 101, 401, &ModuleParams{Published: &published}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	rec = o.last(t)
	if rec.Method != http.MethodPut || rec.Path != "/api/v1/courses/101/modules/401" {
		t.Errorf("request = %s %s, want PUT on the module", rec.Method, rec.Path)
	}
	if want := `{"module":{"published":true}}`; rec.Body != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}

	if err := c.Modules.Delete(ctx, 101, 401); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	rec = o.last(t)
	if rec.Method != http.MethodDelete || rec.Path != "/api/v1/courses/101/modules/401" {
		t.Errorf("request = %s %s, want DELETE on the module", rec.Method, rec.Path)
	}
}
