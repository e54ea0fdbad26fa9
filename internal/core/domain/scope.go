package domain

import "fmt"

// Scope is the (user, project, conversation) triple that controls which
// callers can see a segment. Scopes are supplied by the caller and trusted;
// no authorisation happens inside the engine.
type Scope struct {
	// UserID identifies the owning user. Required.
	UserID string

	// ProjectID identifies the project within the user. Required.
	ProjectID string

	// ConversationID identifies a single conversation. Empty means
	// project-wide: a segment with an empty ConversationID is visible to
	// every conversation in the same (user, project).
	ConversationID string
}

// Validate checks that the scope carries the required identifiers.
func (s Scope) Validate() error {
	if s.UserID == "" || s.ProjectID == "" {
		return fmt.Errorf("%w: scope requires user and project", ErrScopeMismatch)
	}
	return nil
}

// Project returns the scope widened to the whole project, dropping the
// conversation component.
func (s Scope) Project() Scope {
	return Scope{UserID: s.UserID, ProjectID: s.ProjectID}
}

// Covers reports whether a segment stored under s is visible to a caller
// querying with the given scope. A segment in a project-wide scope (empty
// ConversationID) is visible to every conversation of the project; a
// conversation-scoped segment is visible only to that conversation.
func (s Scope) Covers(query Scope) bool {
	if s.UserID != query.UserID || s.ProjectID != query.ProjectID {
		return false
	}
	if s.ConversationID == "" {
		return true
	}
	return s.ConversationID == query.ConversationID
}

// String renders the scope for log output.
func (s Scope) String() string {
	if s.ConversationID == "" {
		return s.UserID + "/" + s.ProjectID
	}
	return s.UserID + "/" + s.ProjectID + "/" + s.ConversationID
}
