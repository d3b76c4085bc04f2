// Package view holds the transient UI state of the session: active
// navigation, the draft being composed or edited, and the pending delete
// confirmation. It mediates between user actions and the mutation gateway
// and never touches the store or the snapshot directly.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/dmelim/folio/internal/blog"
	"github.com/dmelim/folio/internal/model"
)

type MainView string

const (
	MainHome MainView = "home"
	MainBlog MainView = "blog"
)

type BlogView string

const (
	BlogPublic BlogView = "public"
	BlogAdmin  BlogView = "admin"
)

type EditMode int

const (
	EditNone EditMode = iota
	EditCreating
	EditExisting
)

type Controller struct {
	gateway *blog.Gateway

	mu       sync.Mutex
	main     MainView
	blogView BlogView

	mode   EditMode
	target model.PostID
	draft  model.Draft

	pending *model.Post

	inlineErr error
	notice    string
}

func NewController(gw *blog.Gateway) *Controller {
	return &Controller{
		gateway:  gw,
		main:     MainHome,
		blogView: BlogPublic,
	}
}

func (c *Controller) SetMainView(v MainView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.main = v
}

func (c *Controller) SetBlogView(v BlogView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blogView = v
}

func (c *Controller) MainView() MainView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main
}

func (c *Controller) BlogView() BlogView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blogView
}

// BeginCreate opens an empty draft, dropping any edit in progress.
func (c *Controller) BeginCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = EditCreating
	c.target = ""
	c.draft = model.Draft{}
	c.inlineErr = nil
}

// BeginEdit loads an existing post's fields into the draft and remembers the
// target, replacing any draft already active.
func (c *Controller) BeginEdit(p model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = EditExisting
	c.target = p.ID
	c.draft = model.Draft{Title: p.Title, Content: p.Content}
	c.inlineErr = nil
}

func (c *Controller) SetDraft(title, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = model.Draft{Title: title, Content: content}
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDraftLocked()
}

// Submit routes the active draft to the matching gateway operation. A
// ValidationError keeps the draft and surfaces inline; a store error keeps
// the draft and records a notice; success resets the draft.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	mode, target, draft := c.mode, c.target, c.draft
	c.mu.Unlock()

	if mode == EditNone {
		return errors.New("no active draft")
	}

	var err error
	if mode == EditExisting {
		err = c.gateway.Update(ctx, target, draft)
	} else {
		err = c.gateway.Create(ctx, draft)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		c.inlineErr = verr
	case err != nil:
		c.notice = err.Error()
	default:
		c.resetDraftLocked()
	}
	return err
}

// RequestDelete arms the confirmation prompt for one post.
func (c *Controller) RequestDelete(p model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &p
}

func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// ConfirmDelete issues the delete and closes the prompt regardless of the
// outcome; a failure is only recorded as a notice.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		return nil
	}

	err := c.gateway.Delete(ctx, pending.ID)
	if err != nil {
		c.mu.Lock()
		c.notice = err.Error()
		c.mu.Unlock()
	}
	return err
}

func (c *Controller) EditState() (EditMode, model.PostID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.target
}

func (c *Controller) Draft() model.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) PendingDelete() (model.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return model.Post{}, false
	}
	return *c.pending, true
}

func (c *Controller) InlineError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inlineErr
}

// Notice returns and clears the last non-fatal notice.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notice
	c.notice = ""
	return n
}

func (c *Controller) resetDraftLocked() {
	c.mode = EditNone
	c.target = ""
	c.draft = model.Draft{}
	c.inlineErr = nil
}
