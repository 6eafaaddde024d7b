package client

import (
	"context"
	"fmt"
	"net/url"
)

// AccountsService accesses accounts and sub-accounts.
type AccountsService struct {
	client *Client
}

// ListAccountsParams filters account listings.
type ListAccountsParams struct {
	Include []string
	ListOptions
}

func (p *ListAccountsParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	for _, inc := range p.Include {
		q.Add("include[]", inc)
	}
	p.ListOptions.apply(q)
	return q
}

// List returns the accounts the current user can administer.
func (s *AccountsService) List(ctx context.Context, params *ListAccountsParams) ([]Account, error) {
	var out []Account
	if err := s.client.Get(ctx, "accounts", params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one account.
func (s *AccountsService) Get(ctx context.Context, accountID int64) (*Account, error) {
	var out Account
	if err := s.client.Get(ctx, fmt.Sprintf("accounts/%d", accountID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubAccounts returns the accounts directly under accountID.
func (s *AccountsService) SubAccounts(ctx context.Context, accountID int64, params *ListAccountsParams) ([]Account, error) {
	var out []Account
	path := fmt.Sprintf("accounts/%d/sub_accounts", accountID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}
