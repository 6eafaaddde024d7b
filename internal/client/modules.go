package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// ModulesService accesses a course's modules and their items.
type ModulesService struct {
	client *Client
}

// ListModulesParams filters module listings.
type ListModulesParams struct {
	// Include requests embedded data: items, content_details.
	Include []string

	// SearchTerm filters by partial module name.
	SearchTerm string

	ListOptions
}

func (p *ListModulesParams) values() url.Values {
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
	p.ListOptions.apply(q)
	return q
}

// List returns a course's modules.
func (s *ModulesService) List(ctx context.Context, courseID int64, params *ListModulesParams) ([]Module, error) {
	var out []Module
	path := fmt.Sprintf("courses/%d/modules", courseID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one module.
func (s *ModulesService) Get(ctx context.Context, courseID, moduleID int64, include ...string) (*Module, error) {
	q := url.Values{}
	for _, inc := range include {
		q.Add("include[]", inc)
	}
	var out Module
	path := fmt.Sprintf("courses/%d/modules/%d", courseID, moduleID)
	if err := s.client.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Items returns a module's items.
func (s *ModulesService) Items(ctx context.Context, courseID, moduleID int64, opts ListOptions) ([]ModuleItem, error) {
	q := url.Values{}
	opts.apply(q)
	var out []ModuleItem
	path := fmt.Sprintf("courses/%d/modules/%d/items", courseID, moduleID)
	if err := s.client.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ModuleParams are the mutable module attributes for Create and Update.
type ModuleParams struct {
	Name                      string     `json:"name,omitempty"`
	Position                  int        `json:"position,omitempty"`
	UnlockAt                  *time.Time `json:"unlock_at,omitempty"`
	RequireSequentialProgress *bool      `json:"require_sequential_progress,omitempty"`
	Published                 *bool      `json:"published,omitempty"`
}

type moduleEnvelope struct {
	Module *ModuleParams `json:"module"`
}

// Create adds a module to a course.
func (s *ModulesService) Create(ctx context.Context, courseID int64, params *ModuleParams) (*Module, error) {
	var out Module
	path := fmt.Sprintf("courses/%d/modules", courseID)
	if err := s.client.Post(ctx, path, moduleEnvelope{Module: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a module.
func (s *ModulesService) Update(ctx context.Context, courseID, moduleID int64, params *ModuleParams) (*Module, error) {
	var out Module
	path := fmt.Sprintf("courses/%d/modules/%d", courseID, moduleID)
	if err := s.client.Put(ctx, path, moduleEnvelope{Module: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a module.
func (s *ModulesService) Delete(ctx context.Context, courseID, moduleID int64) error {
	path := fmt.Sprintf("courses/%d/modules/%d", courseID, moduleID)
	return s.client.Delete(ctx, path, nil, nil)
}
