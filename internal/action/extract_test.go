package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createdPayload = `{
	"action": "created",
	"data": {
		"issue": {
			"title": "T",
			"project": {"name": "P"},
			"lastSeen": "L",
			"level": "error"
		}
	}
}`

func mustParse(t *testing.T, body string) Document {
	t.Helper()
	doc, err := Parse([]byte(body))
	require.NoError(t, err)
	return doc
}

func TestExtract_IssueCreated(t *testing.T) {
	got, err := Extract(mustParse(t, createdPayload))
	require.NoError(t, err)
	assert.Equal(t, IssueCreated{Title: "T", Project: "P", Time: "L", Level: "error"}, got)
	assert.Equal(t, "P: issue `T` created at L (error)", got.String())
	assert.Equal(t, "issue_created", Name(got))
}

func TestExtract_Unknown(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"no data", `{"action":"created"}`},
		{"data not an object", `{"action":"created","data":"oops"}`},
		{"no issue key", `{"action":"created","data":{"event":{}}}`},
		{"issue resolved", `{"action":"resolved","data":{"issue":{"title":"T"}}}`},
		{"missing action", `{"data":{"issue":{"title":"T"}}}`},
		{"action not a string", `{"action":1,"data":{"issue":{}}}`},
		{"top-level array", `[1,2,3]`},
		{"top-level string", `"created"`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(mustParse(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, Unknown{}, got)
			assert.Equal(t, "Unknown action!", got.String())
		})
	}
}

func TestExtract_FieldErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantPath string
		wantErr  error
	}{
		{
			name:     "missing title",
			body:     `{"action":"created","data":{"issue":{"project":{"name":"P"},"lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.title",
			wantErr:  ErrMissingField,
		},
		{
			name:     "title not a string",
			body:     `{"action":"created","data":{"issue":{"title":42,"project":{"name":"P"},"lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.title",
			wantErr:  ErrFieldType,
		},
		{
			name:     "missing project",
			body:     `{"action":"created","data":{"issue":{"title":"T","lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.project",
			wantErr:  ErrMissingField,
		},
		{
			name:     "project not an object",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":"P","lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.project",
			wantErr:  ErrFieldType,
		},
		{
			name:     "missing project name",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{},"lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.project.name",
			wantErr:  ErrMissingField,
		},
		{
			name:     "project name not a string",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{"name":null},"lastSeen":"L","level":"error"}}}`,
			wantPath: "issue.project.name",
			wantErr:  ErrFieldType,
		},
		{
			name:     "missing lastSeen",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{"name":"P"},"level":"error"}}}`,
			wantPath: "issue.lastSeen",
			wantErr:  ErrMissingField,
		},
		{
			name:     "lastSeen not a string",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{"name":"P"},"lastSeen":1700000000,"level":"error"}}}`,
			wantPath: "issue.lastSeen",
			wantErr:  ErrFieldType,
		},
		{
			name:     "missing level",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{"name":"P"},"lastSeen":"L"}}}`,
			wantPath: "issue.level",
			wantErr:  ErrMissingField,
		},
		{
			name:     "level not a string",
			body:     `{"action":"created","data":{"issue":{"title":"T","project":{"name":"P"},"lastSeen":"L","level":["error"]}}}`,
			wantPath: "issue.level",
			wantErr:  ErrFieldType,
		},
		{
			name:     "issue not an object",
			body:     `{"action":"created","data":{"issue":null}}`,
			wantPath: "issue",
			wantErr:  ErrFieldType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(mustParse(t, tt.body))
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantPath, fe.Path)
			assert.Contains(t, err.Error(), tt.wantPath)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"action":`))
	assert.Error(t, err)
}

func TestDocument_LookupsAreSafe(t *testing.T) {
	doc := NewDocument(nil)

	_, ok := doc.ActionName()
	assert.False(t, ok)
	_, ok = doc.Data()
	assert.False(t, ok)
	assert.False(t, doc.HasIssue())
	assert.False(t, doc.IsIssueCreated())
}
