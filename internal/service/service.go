// Package service holds the per-entity façades. Every call goes to the remote
// store first and falls back to the local mirror when the remote fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
)

// FallbackFunc is told about every remote failure that was answered by the mirror
type FallbackFunc func(op string, err error)

// Option configures a service
type Option func(*base)

// WithFallback registers fn to hear about degraded operations
func WithFallback(fn FallbackFunc) Option {
	return func(b *base) { b.onFallback = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.log = l }
}

// FallbackError is returned when both the remote store and the mirror failed
type FallbackError struct {
	Op     string
	Remote error
	Local  error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: remote failed (%v) and mirror fallback failed: %v", e.Op, e.Remote, e.Local)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Local, e.Remote}
}

// base is the state shared by the façades
type base struct {
	remote     store.Backend
	local      store.Backend
	onFallback FallbackFunc
	log        *slog.Logger
}

func newBase(remote, local store.Backend, opts []Option) base {
	b := base{remote: remote, local: local}
	for _, opt := range opts {
		opt(&b)
	}
	if b.log == nil {
		b.log = logger.Component("service")
	}
	return b
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// answered reports whether the remote store rejected the call on its merits.
// Such an answer is authoritative and the mirror is not consulted.
func answered(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, model.ErrInvalidTransition)
}

// run calls remote and, when it fails, local. A mirror NotFound is a no-op
// and yields the zero value with a nil error. A remote NotFound or a refused
// transition is returned as is.
func run[T any](ctx context.Context, b *base, op string, remote, local func() (T, error)) (T, error) {
	var zero T

	v, remoteErr := remote()
	if remoteErr == nil {
		return v, nil
	}
	if isCanceled(remoteErr) || ctx.Err() != nil {
		return zero, remoteErr
	}
	if answered(remoteErr) {
		b.log.Debug("remote store refused", "op", op, "err", remoteErr)
		return zero, remoteErr
	}

	b.log.Warn("remote store failed, using mirror", "op", op, "err", remoteErr)
	if b.onFallback != nil {
		b.onFallback(op, remoteErr)
	}

	v, localErr := local()
	if localErr == nil {
		return v, nil
	}
	if errors.Is(localErr, store.ErrNotFound) {
		b.log.Debug("record absent from mirror, skipping", "op", op)
		return zero, nil
	}

	b.log.Error("mirror fallback failed", "op", op, "err", localErr)
	return zero, &FallbackError{Op: op, Remote: remoteErr, Local: localErr}
}

// discard adapts an error-only call to run
func discard(fn func() error) func() (struct{}, error) {
	return func() (struct{}, error) {
		return struct{}{}, fn()
	}
}
