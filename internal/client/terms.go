package client

import (
	"context"
	"fmt"
	"net/url"
)

// TermsService accesses an account's enrollment terms.
type TermsService struct {
	client *Client
}

// ListTermsParams filters term listings.
type ListTermsParams struct {
	// WorkflowState selects term states: active, deleted, or all.
	WorkflowState []string
	ListOptions
}

func (p *ListTermsParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	for _, state := range p.WorkflowState {
		q.Add("workflow_state[]", state)
	}
	p.ListOptions.apply(q)
	return q
}

// List returns an account's terms. Canvas wraps this listing in an
// enrollment_terms envelope, unlike every other collection.
func (s *TermsService) List(ctx context.Context, accountID int64, params *ListTermsParams) ([]Term, error) {
	var out struct {
		EnrollmentTerms []Term `json:"enrollment_terms"`
	}
	path := fmt.Sprintf("accounts/%d/terms", accountID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out.EnrollmentTerms, nil
}

// Get returns one term.
func (s *TermsService) Get(ctx context.Context, accountID, termID int64) (*Term, error) {
	var out Term
	path := fmt.Sprintf("accounts/%d/terms/%d", accountID, termID)
	if err := s.client.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
