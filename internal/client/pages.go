package client

import (
	"context"
	"fmt"
	"net/url"
)

// PagesService accesses a course's wiki pages. Pages are addressed by URL
// slug rather than numeric id.
type PagesService struct {
	client *Client
}

// ListPagesParams filters page listings.
type ListPagesParams struct {
	// Sort orders by title, created_at, or updated_at.
	Sort string

	// Order is asc or desc.
	Order string

	// SearchTerm filters by partial title.
	SearchTerm string

	// Published restricts to published or unpublished pages when set.
	Published *bool

	ListOptions
}

func (p *ListPagesParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	if p.SearchTerm != "" {
		q.Set("search_term", p.SearchTerm)
	}
	if p.Published != nil {
		q.Set("published", fmt.Sprintf("%t", *p.Published))
	}
	p.ListOptions.apply(q)
	return q
}

// List returns a course's pages, bodies omitted.
func (s *PagesService) List(ctx context.Context, courseID int64, params *ListPagesParams) ([]Page, error) {
	var out []Page
	path := fmt.Sprintf("courses/%d/pages", courseID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one page by its URL slug.
func (s *PagesService) Get(ctx context.Context, courseID int64, pageURL string) (*Page, error) {
	var out Page
	path := fmt.Sprintf("courses/%d/pages/%s", courseID, url.PathEscape(pageURL))
	if err := s.client.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PageParams are the mutable page attributes for Create and Update.
type PageParams struct {
	Title        string `json:"title,omitempty"`
	Body         string `json:"body,omitempty"`
	Published    *bool  `json:"published,omitempty"`
	FrontPage    *bool  `json:"front_page,omitempty"`
	EditingRoles string `json:"editing_roles,omitempty"`
}

type pageEnvelope struct {
	WikiPage *PageParams `json:"wiki_page"`
}

// Create adds a page to a course.
func (s *PagesService) Create(ctx context.Context, courseID int64, params *PageParams) (*Page, error) {
	var out Page
	path := fmt.Sprintf("courses/%d/pages", courseID)
	if err := s.client.Post(ctx, path, pageEnvelope{WikiPage: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a page.
func (s *PagesService) Update(ctx context.Context, courseID int64, pageURL string, params *PageParams) (*Page, error) {
	var out Page
	path := fmt.Sprintf("courses/%d/pages/%s", courseID, url.PathEscape(pageURL))
	if err := s.client.Put(ctx, path, pageEnvelope{WikiPage: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a page.
func (s *PagesService) Delete(ctx context.Context, courseID int64, pageURL string) error {
	path := fmt.Sprintf("courses/%d/pages/%s", courseID, url.PathEscape(pageURL))
	return s.client.Delete(ctx, path, nil, nil)
}
