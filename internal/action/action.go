// Package action turns decoded Sentry webhook payloads into typed actions.
//
// Extraction is permissive at the top level: any shape that is not a
// recognized event becomes Unknown. Once a variant is selected, every field it
// needs is required and a missing or mistyped field is an error.
package action

import "fmt"

// Action is the closed set of events the relay understands.
// Dispatch on it with a type switch over IssueCreated and Unknown.
type Action interface {
	fmt.Stringer
	isAction()
}

// IssueCreated is emitted when Sentry reports a new issue.
type IssueCreated struct {
	Title   string
	Project string
	Time    string
	Level   string
}

// Unknown is any payload that does not match a recognized event.
type Unknown struct{}

func (IssueCreated) isAction() {}
func (Unknown) isAction()      {}

// String renders the chat message for a new issue.
func (a IssueCreated) String() string {
	return fmt.Sprintf("%s: issue `%s` created at %s (%s)", a.Project, a.Title, a.Time, a.Level)
}

func (Unknown) String() string {
	return "Unknown action!"
}

// Name returns a short label for logging.
func Name(a Action) string {
	switch a.(type) {
	case IssueCreated:
		return "issue_created"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}
