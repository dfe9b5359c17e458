package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingField matches a FieldError for an absent key.
	ErrMissingField = errors.New("field is missing")
	// ErrFieldType matches a FieldError for a key holding the wrong JSON type.
	ErrFieldType = errors.New("field is of wrong type")
)

// FieldErrorKind distinguishes missing keys from mistyped ones.
type FieldErrorKind int

const (
	Missing FieldErrorKind = iota
	WrongType
)

// FieldError reports a required field that could not be projected.
type FieldError struct {
	Path string
	Kind FieldErrorKind
}

func (e *FieldError) Error() string {
	switch e.Kind {
	case WrongType:
		return fmt.Sprintf("field %s is of wrong type", e.Path)
	default:
		return fmt.Sprintf("field %s is missing", e.Path)
	}
}

// Is lets callers match with errors.Is(err, ErrMissingField) and friends.
func (e *FieldError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == Missing
	case ErrFieldType:
		return e.Kind == WrongType
	}
	return false
}

// Document wraps an arbitrary decoded JSON value. Lookups never panic.
type Document struct {
	root any
}

// NewDocument wraps a value produced by encoding/json.
func NewDocument(v any) Document {
	return Document{root: v}
}

// Parse decodes raw JSON into a Document.
func Parse(body []byte) (Document, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Document{}, err
	}
	return NewDocument(v), nil
}

// ActionName returns the top-level "action" string, if any.
func (d Document) ActionName() (string, bool) {
	obj, ok := d.root.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj["action"].(string)
	return s, ok
}

// Data returns the top-level "data" object, if it is one.
func (d Document) Data() (map[string]any, bool) {
	obj, ok := d.root.(map[string]any)
	if !ok {
		return nil, false
	}
	data, ok := obj["data"].(map[string]any)
	return data, ok
}

// HasIssue reports whether data.issue exists, whatever its value.
func (d Document) HasIssue() bool {
	data, ok := d.Data()
	if !ok {
		return false
	}
	_, ok = data["issue"]
	return ok
}

// IsIssueCreated is the trigger for IssueCreated extraction.
func (d Document) IsIssueCreated() bool {
	name, ok := d.ActionName()
	return ok && name == "created" && d.HasIssue()
}

// Extract derives the Action for a document.
func Extract(doc Document) (Action, error) {
	if !doc.IsIssueCreated() {
		return Unknown{}, nil
	}
	return issueCreated(doc)
}

func issueCreated(doc Document) (Action, error) {
	data, _ := doc.Data()
	issue, ok := data["issue"].(map[string]any)
	if !ok {
		return nil, &FieldError{Path: "issue", Kind: WrongType}
	}

	title, err := stringField(issue, "issue", "title")
	if err != nil {
		return nil, err
	}

	project, ok := issue["project"]
	if !ok {
		return nil, &FieldError{Path: "issue.project", Kind: Missing}
	}
	projectObj, ok := project.(map[string]any)
	if !ok {
		return nil, &FieldError{Path: "issue.project", Kind: WrongType}
	}
	projectName, err := stringField(projectObj, "issue.project", "name")
	if err != nil {
		return nil, err
	}

	lastSeen, err := stringField(issue, "issue", "lastSeen")
	if err != nil {
		return nil, err
	}
	level, err := stringField(issue, "issue", "level")
	if err != nil {
		return nil, err
	}

	return IssueCreated{
		Title:   title,
		Project: projectName,
		Time:    lastSeen,
		Level:   level,
	}, nil
}

func stringField(obj map[string]any, parent, key string) (string, error) {
	path := parent + "." + key
	v, ok := obj[key]
	if !ok {
		return "", &FieldError{Path: path, Kind: Missing}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Path: path, Kind: WrongType}
	}
	return s, nil
}
