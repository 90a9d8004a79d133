package ui

import "github.com/dori/tandem/internal/provider"

// Pane is the list that has focus
type Pane int

const (
	PaneProjects Pane = iota
	PaneTasks
)

// String returns the display name for a pane
func (p Pane) String() string {
	switch p {
	case PaneProjects:
		return "Projects"
	case PaneTasks:
		return "Tasks"
	default:
		return "Unknown"
	}
}

// inputPurpose says what the text prompt is collecting
type inputPurpose int

const (
	inputNone inputPurpose = iota
	inputProjectName
	inputTaskTitle
	inputAssignee
)

// Messages for inter-component communication

// LoggedInMsg carries the result of a login attempt
type LoggedInMsg struct {
	Session *provider.Session
	Err     error
}

// LoggedOutMsg is sent after the session has been closed
type LoggedOutMsg struct {
	Err error
}

// SessionChangedMsg is sent whenever the session state changed
type SessionChangedMsg struct{}

// SessionClosedMsg is sent when the session's change stream ends
type SessionClosedMsg struct{}

// OpDoneMsg carries the result of a mutation
type OpDoneMsg struct {
	Status string
	Err    error
}

// ErrorMsg contains an error to display
type ErrorMsg struct {
	Err error
}

// StatusMsg contains a status message to display
type StatusMsg struct {
	Message string
}
