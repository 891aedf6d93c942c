package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Index names served by the community search service.
const (
	IndexChapters      = "chapters"
	IndexProjects      = "projects"
	IndexOrganizations = "organizations"
	IndexUsers         = "users"
	IndexEvents        = "events"
)

// DefaultIndexNames is the order suggestions are grouped in when no
// configuration overrides it.
var DefaultIndexNames = []string{
	IndexChapters,
	IndexProjects,
	IndexUsers,
	IndexOrganizations,
	IndexEvents,
}

var ErrUnknownIndex = errors.New("unknown index")

// Hit is a single search hit. The set of implementations is closed: every
// index has exactly one variant below.
type Hit interface {
	// ID is the stable identifier used to build navigation targets.
	ID() string
	DisplayName() string
	// Link is the hit's own URL, if the index returned one.
	Link() string
	isHit()
}

type ChapterHit struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
	Region  string `json:"region,omitempty"`
}

type ProjectHit struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
	Level   string `json:"level,omitempty"`
}

type OrganizationHit struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

type UserHit struct {
	Login   string `json:"login"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Company string `json:"company,omitempty"`
}

type EventHit struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Category  string `json:"category,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

func (h ChapterHit) ID() string          { return h.Key }
func (h ChapterHit) DisplayName() string { return h.Name }
func (h ChapterHit) Link() string        { return h.URL }
func (ChapterHit) isHit()                {}

func (h ProjectHit) ID() string          { return h.Key }
func (h ProjectHit) DisplayName() string { return h.Name }
func (h ProjectHit) Link() string        { return h.URL }
func (ProjectHit) isHit()                {}

func (h OrganizationHit) ID() string { return h.Login }
func (h OrganizationHit) DisplayName() string {
	if h.Name == "" {
		return h.Login
	}
	return h.Name
}
func (h OrganizationHit) Link() string { return h.URL }
func (OrganizationHit) isHit()         {}

func (h UserHit) ID() string { return h.Login }
func (h UserHit) DisplayName() string {
	if h.Name == "" {
		return h.Login
	}
	return h.Name
}
func (h UserHit) Link() string { return h.URL }
func (UserHit) isHit()         {}

func (h EventHit) ID() string          { return h.Key }
func (h EventHit) DisplayName() string { return h.Name }
func (h EventHit) Link() string        { return h.URL }
func (EventHit) isHit()                {}

// DecodeHit builds the variant for indexName from a loosely typed hit object
// as returned by the index service. Fields may carry the service's "idx_"
// prefix and non-string scalar values.
func DecodeHit(indexName string, raw map[string]any) (Hit, error) {
	switch indexName {
	case IndexChapters:
		return ChapterHit{
			Key:     field(raw, "key"),
			Name:    field(raw, "name"),
			URL:     field(raw, "url"),
			Summary: field(raw, "summary"),
			Region:  field(raw, "region"),
		}, nil
	case IndexProjects:
		return ProjectHit{
			Key:     field(raw, "key"),
			Name:    field(raw, "name"),
			URL:     field(raw, "url"),
			Summary: field(raw, "summary"),
			Level:   field(raw, "level"),
		}, nil
	case IndexOrganizations:
		return OrganizationHit{
			Login:       field(raw, "login"),
			Name:        field(raw, "name"),
			URL:         field(raw, "url"),
			Description: field(raw, "description"),
		}, nil
	case IndexUsers:
		return UserHit{
			Login:   field(raw, "login"),
			Name:    field(raw, "name"),
			URL:     field(raw, "url"),
			Company: field(raw, "company"),
		}, nil
	case IndexEvents:
		return EventHit{
			Key:       field(raw, "key"),
			Name:      field(raw, "name"),
			URL:       field(raw, "url"),
			Category:  field(raw, "category"),
			StartDate: field(raw, "start_date"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndex, indexName)
	}
}

func field(raw map[string]any, name string) string {
	for _, key := range []string{name, "idx_" + name} {
		if v, ok := raw[key]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
