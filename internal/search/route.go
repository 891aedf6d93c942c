package search

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrNoRoute      = errors.New("no route for index")
	ErrMissingField = errors.New("hit is missing its routing field")
)

// Navigator performs the side effect of a selection.
type Navigator interface {
	// NavigateTo moves to an in-app route such as /projects/zap.
	NavigateTo(path string) error
	// OpenExternal opens a URL outside the app.
	OpenExternal(url string) error
}

type ActionKind int

const (
	ActionNavigate ActionKind = iota + 1
	ActionOpenExternal
)

func (k ActionKind) String() string {
	switch k {
	case ActionNavigate:
		return "navigate"
	case ActionOpenExternal:
		return "open_external"
	default:
		return "none"
	}
}

// Action is a resolved selection.
type Action struct {
	Kind   ActionKind
	Target string
}

type route func(Hit) (Action, error)

// routes is the fixed routing table, keyed by index name.
var routes = map[string]route{
	IndexChapters: func(h Hit) (Action, error) {
		c, ok := h.(ChapterHit)
		if !ok {
			return Action{}, mismatch(IndexChapters, h)
		}
		return inApp("/chapters/", c.Key)
	},
	IndexProjects: func(h Hit) (Action, error) {
		p, ok := h.(ProjectHit)
		if !ok {
			return Action{}, mismatch(IndexProjects, h)
		}
		return inApp("/projects/", p.Key)
	},
	IndexOrganizations: func(h Hit) (Action, error) {
		o, ok := h.(OrganizationHit)
		if !ok {
			return Action{}, mismatch(IndexOrganizations, h)
		}
		return inApp("/organizations/", o.Login)
	},
	IndexUsers: func(h Hit) (Action, error) {
		u, ok := h.(UserHit)
		if !ok {
			return Action{}, mismatch(IndexUsers, h)
		}
		return inApp("/members/", u.Login)
	},
	IndexEvents: func(h Hit) (Action, error) {
		e, ok := h.(EventHit)
		if !ok {
			return Action{}, mismatch(IndexEvents, h)
		}
		if e.URL == "" {
			return Action{}, fmt.Errorf("%w: event %q has no url", ErrMissingField, e.Name)
		}
		return Action{Kind: ActionOpenExternal, Target: e.URL}, nil
	},
}

// Resolve maps a hit from indexName to its navigation action.
func Resolve(hit Hit, indexName string) (Action, error) {
	r, ok := routes[indexName]
	if !ok {
		return Action{}, fmt.Errorf("%w %q", ErrNoRoute, indexName)
	}
	if hit == nil {
		return Action{}, fmt.Errorf("%w: nil hit", ErrMissingField)
	}
	return r(hit)
}

func inApp(prefix, id string) (Action, error) {
	if id == "" {
		return Action{}, fmt.Errorf("%w: empty identifier under %s", ErrMissingField, prefix)
	}
	return Action{Kind: ActionNavigate, Target: prefix + url.PathEscape(id)}, nil
}

func mismatch(indexName string, h Hit) error {
	return fmt.Errorf("%w: %T is not a %s hit", ErrMissingField, h, indexName)
}

// Perform runs the action against nav.
func (a Action) Perform(nav Navigator) error {
	switch a.Kind {
	case ActionNavigate:
		return nav.NavigateTo(a.Target)
	case ActionOpenExternal:
		return nav.OpenExternal(a.Target)
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}
