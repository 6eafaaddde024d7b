package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// SectionsService accesses course sections.
type SectionsService struct {
	client *Client
}

// ListSectionsParams filters section listings.
type ListSectionsParams struct {
	// Include requests embedded data such as students or total_students.
	Include []string

	ListOptions
}

func (p *ListSectionsParams) values() url.Values {
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

// List returns a course's sections.
func (s *SectionsService) List(ctx context.Context, courseID int64, params *ListSectionsParams) ([]Section, error) {
	var out []Section
	path := fmt.Sprintf("courses/%d/sections", courseID)
	if err := s.client.Get(ctx, path, params.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one section.
func (s *SectionsService) Get(ctx context.Context, sectionID int64, include ...string) (*Section, error) {
	q := url.Values{}
	for _, inc := range include {
		q.Add("include[]", inc)
	}
	var out Section
	if err := s.client.Get(ctx, fmt.Sprintf("sections/%d", sectionID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SectionParams are the mutable section attributes for Create and Update.
type SectionParams struct {
	Name         string     `json:"name,omitempty"`
	SISSectionID string     `json:"sis_section_id,omitempty"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
}

type sectionEnvelope struct {
	CourseSection *SectionParams `json:"course_section"`
}

// Create adds a section to a course.
func (s *SectionsService) Create(ctx context.Context, courseID int64, params *SectionParams) (*Section, error) {
	var out Section
	path := fmt.Sprintf("courses/%d/sections", courseID)
	if err := s.client.Post(ctx, path, sectionEnvelope{CourseSection: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update modifies a section.
func (s *SectionsService) Update(ctx context.Context, sectionID int64, params *SectionParams) (*Section, error) {
	var out Section
	path := fmt.Sprintf("sections/%d", sectionID)
	if err := s.client.Put(ctx, path, sectionEnvelope{CourseSection: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a section.
func (s *SectionsService) Delete(ctx context.Context, sectionID int64) error {
	return s.client.Delete(ctx, fmt.Sprintf("sections/%d", sectionID), nil, nil)
}
