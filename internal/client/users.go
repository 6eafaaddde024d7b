package client

import (
	"context"
	"fmt"
	"net/url"
)

// UsersService accesses users and their profiles.
type UsersService struct {
	client *Client
}

// ListUsersParams filters account user listings.
type ListUsersParams struct {
	// SearchTerm matches against name, login, and SIS id.
	SearchTerm string

	// Sort orders by username, email, sis_id, or last_login.
	Sort string

	// Order is asc or desc.
	Order string

	ListOptions
}

func (p *ListUsersParams) values() url.Values {
	q := url.Values{}
	if p == nil {
		return q
	}
	if p.SearchTerm != "" {
		q.Set("search_term", p.SearchTerm)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	p.ListOptions.apply(q)
	return q
}

// ListForAccount returns an account's users.
func (s *UsersService) ListForAccount(ctx context.Context, accountID int64, params *ListUsersParams) ([]User, error) {
	var out []User
	path := fmt.Sprintf("accounts/%d/users", accountID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one user.
func (s *UsersService) Get(ctx context.Context, userID int64) (*User, error) {
	var out User
	if err := s.client.Get(ctx, fmt.Sprintf("users/%d", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Self returns the user the credentials belong to.
func (s *UsersService) Self(ctx context.Context) (*User, error) {
	var out User
	if err := s.client.Get(ctx, "users/self", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns a user's profile.
func (s *UsersService) Profile(ctx context.Context, userID int64) (*UserProfile, error) {
	var out UserProfile
	if err := s.client.Get(ctx, fmt.Sprintf("users/%d/profile", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SelfProfile returns the current user's profile.
func (s *UsersService) SelfProfile(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := s.client.Get(ctx, "users/self/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUserParams creates a user together with their login.
type CreateUserParams struct {
	User      UserParams      `json:"user"`
	Pseudonym PseudonymParams `json:"pseudonym"`
}

// UserParams are the user attributes for Create.
type UserParams struct {
	Name         string `json:"name"`
	ShortName    string `json:"short_name,omitempty"`
	SortableName string `json:"sortable_name,omitempty"`
	TimeZone     string `json:"time_zone,omitempty"`
}

// PseudonymParams are the login attributes for Create.
type PseudonymParams struct {
	UniqueID         string `json:"unique_id"`
	Password         string `json:"password,omitempty"`
	SISUserID        string `json:"sis_user_id,omitempty"`
	SendConfirmation bool   `json:"send_confirmation,omitempty"`
}

// Create creates a user under an account.
func (s *UsersService) Create(ctx context.Context, accountID int64, params *CreateUserParams) (*User, error) {
	var out User
	path := fmt.Sprintf("accounts/%d/users", accountID)
	if err := s.client.Post(ctx, path, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
