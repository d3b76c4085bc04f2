// Package model holds the domain types shared across the site: identities,
// posts and the draft being composed.
package model

import (
	"fmt"
	"strings"
)

// Identity is the opaque caller identity the session runs under. Every
// collection path is scoped to exactly one identity.
type Identity string

type PostID string

// Post is one blog entry as decoded from the store. Author and Timestamp are
// fixed at creation; edits only touch Title and Content.
type Post struct {
	ID      PostID
	Title   string
	Content string
	Author  string

	// Milliseconds since the Unix epoch. Zero when the document carries no
	// usable timestamp.
	Timestamp int64
}

// Draft is the editable subset of a post.
type Draft struct {
	Title   string
	Content string
}

// ValidationError reports a draft field that failed client-side validation.
// Writes that fail validation never reach the store.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

// Validate rejects drafts whose title or content is empty or whitespace-only.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "content"}
	}
	return nil
}
