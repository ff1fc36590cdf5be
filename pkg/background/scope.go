// Package background joins goroutines which share one lifetime.
package background

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Scope - abstract concurrency scope.
// The first member returning an error cancels the scope context for the rest.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewScope - concurrency scope builder. Call cancel to stop all members
// and wait for them.
func NewScope(parent context.Context) (scope *Scope, cancel func() error) {
	ctx, ctxCancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	s := &Scope{
		ctx:    ctx,
		cancel: ctxCancel,
		group:  group,
	}
	return s,
		func() error {
			s.cancel()
			return s.group.Wait()
		}
}

// Context - return background context.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go - launches member of the scope.
func (s *Scope) Go(member func(ctx context.Context) error) {
	s.group.Go(func() error {
		return member(s.ctx)
	})
}

// Wait - blocks until all members are done and returns the first error.
// The scope context is cancelled on return.
func (s *Scope) Wait() error {
	defer s.cancel()
	return s.group.Wait()
}
