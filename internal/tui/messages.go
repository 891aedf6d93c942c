package tui

import "github.com/mgomes/nestfind/internal/search"

// SnapshotMsg carries an engine state change into the program.
type SnapshotMsg struct {
	Snapshot search.Snapshot
}

type SetupSubmitMsg struct {
	BaseURL string
	APIKey  string
	SiteURL string
}

type SetupErrorMsg struct {
	Error string
}
