// Package controller implements the turn-taking conversation state machine
// between a local session and a cloud-hosted agent service: thread creation,
// turn submission, the run-to-completion wait protocol, and reconciliation
// of replies into the transcript.
//
// The controller is stateless across calls apart from the shared remote
// client handle; callers own the Session values it operates on.
//
//	ctrl, err := controller.New(client, &cfg)
//	s, err := ctrl.NewSession(ctx)
//	turn, err := ctrl.SubmitTurn(ctx, s, "What's the weather in Boston?")
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/observability"
	"github.com/parleyhq/parley/remote"
	"github.com/parleyhq/parley/session"
)

// failureNotice is the user-safe sentinel appended to the transcript when a
// turn fails. The structured error returned alongside carries the detail.
const failureNotice = "Sorry, something went wrong."

var errRunPending = errors.New("run not yet terminal")

// Option configures a Controller after config-driven initialization.
type Option func(*Controller)

// WithObserver overrides the observers resolved from config.
func WithObserver(o observability.Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller is the single authority for turn submission and completion
// reconciliation. Safe for concurrent use across sessions; concurrent
// submissions on one session are rejected with session.ErrBusy.
type Controller struct {
	client   remote.AgentClient
	cfg      Config
	observer observability.Observer
}

// New creates a Controller from configuration. Defaults are applied for any
// unset config field; AgentRef is required.
func New(client remote.AgentClient, cfg *Config, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("remote agent client is required")
	}

	merged := DefaultConfig()
	merged.Merge(cfg)
	if merged.AgentRef == "" {
		return nil, errors.New("agent_ref is required")
	}

	observer, err := resolveObservers(merged.Observers)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		client:   client,
		cfg:      merged,
		observer: observer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// resolveObservers looks up each configured name in the observability
// registry, fanning out to a MultiObserver when more than one is named.
func resolveObservers(names []string) (observability.Observer, error) {
	if len(names) == 0 {
		return observability.NewSlogObserver(slog.Default()), nil
	}

	resolved := make([]observability.Observer, 0, len(names))
	for _, name := range names {
		o, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("resolve observer %q: %w", name, err)
		}
		resolved = append(resolved, o)
	}
	if len(resolved) == 1 {
		return resolved[0], nil
	}
	return observability.NewMultiObserver(resolved...), nil
}

// NewSession mints a remote thread and returns an idle Session bound to it.
// On failure no session is bound; callers retry.
func (c *Controller) NewSession(ctx context.Context) (*session.Session, error) {
	threadRef, err := c.client.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	s := session.New(threadRef)

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventSessionCreate,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "controller.NewSession",
		Data: map[string]any{
			"session_id": s.ID(),
			"thread_ref": threadRef,
		},
	})

	return s, nil
}

// ResetSession retires the session and mints a fresh one with a new thread
// reference and an empty transcript. Any outstanding wait on the old
// session stops polling and its result is discarded. The old thread is
// abandoned, not deleted remotely.
func (c *Controller) ResetSession(ctx context.Context, s *session.Session) (*session.Session, error) {
	if s != nil {
		s.Close()
		c.observer.OnEvent(ctx, observability.Event{
			Type:      EventSessionReset,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "controller.ResetSession",
			Data:      map[string]any{"session_id": s.ID()},
		})
	}
	return c.NewSession(ctx)
}

// CloseSession retires the session without minting a replacement. Used when
// the hosting UI tears down.
func (c *Controller) CloseSession(s *session.Session) {
	if s == nil || s.Closed() {
		return
	}
	s.Close()
	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventSessionClose,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "controller.CloseSession",
		Data:      map[string]any{"session_id": s.ID()},
	})
}

// SubmitTurn sends one user turn to the session's remote thread, drives the
// run to a terminal status, and reconciles the reply into the transcript.
//
// The user turn is appended optimistically before any remote interaction.
// On failure the transcript receives a generic sentinel assistant turn and
// the structured error is returned for the caller to log; nothing is
// retried. Text that is empty after trimming is a no-op.
func (c *Controller) SubmitTurn(ctx context.Context, s *session.Session, text string) (protocol.Turn, error) {
	return c.submit(ctx, s, text, nil)
}

func (c *Controller) submit(ctx context.Context, s *session.Session, text string, emit func(delta string)) (protocol.Turn, error) {
	if s == nil {
		return protocol.Turn{}, errors.New("session is required")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return protocol.Turn{}, nil
	}

	gen, err := s.Begin(protocol.NewTurn(protocol.RoleUser, text))
	if err != nil {
		return protocol.Turn{}, err
	}

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventTurnSubmit,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "controller.SubmitTurn",
		Data: map[string]any{
			"session_id":  s.ID(),
			"text_length": len(text),
		},
	})

	// One deadline covers the whole turn; closing the session cancels it.
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()
	stop := context.AfterFunc(s.Context(), cancel)
	defer stop()

	threadRef := s.ThreadRef()

	if err := c.client.PostMessage(waitCtx, threadRef, protocol.RoleUser, text); err != nil {
		return c.fail(ctx, s, gen, c.classify(s, err))
	}

	run, streamed, err := c.startRun(waitCtx, s, threadRef, emit)
	if err != nil {
		return c.fail(ctx, s, gen, c.classify(s, err))
	}

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventRunStart,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "controller.SubmitTurn",
		Data: map[string]any{
			"session_id": s.ID(),
			"run_id":     run.ID,
			"status":     string(run.Status),
			"streamed":   streamed,
		},
	})

	run, err = c.waitForRun(waitCtx, threadRef, run)
	if err != nil {
		return c.fail(ctx, s, gen, c.classify(s, err))
	}

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventRunComplete,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "controller.SubmitTurn",
		Data: map[string]any{
			"session_id": s.ID(),
			"run_id":     run.ID,
			"status":     string(run.Status),
		},
	})

	if run.Status == remote.RunFailed {
		return c.fail(ctx, s, gen, fmt.Errorf("%w: %s", ErrRunFailed, run.ErrorDetail))
	}

	msgs, err := c.client.ListMessages(waitCtx, threadRef)
	if err != nil {
		return c.fail(ctx, s, gen, c.classify(s, err))
	}

	reply, ok := latestAssistant(msgs)
	if !ok || reply.ID == s.LastReplyID() {
		if err := s.Release(gen); err != nil {
			return protocol.Turn{}, err
		}
		return protocol.Turn{}, ErrEmptyReply
	}

	turn := protocol.NewTurn(protocol.RoleAssistant, reply.Content)
	if err := s.Resolve(gen, turn, reply.ID); err != nil {
		return protocol.Turn{}, err
	}
	if emit != nil && !streamed {
		emit(turn.Content)
	}

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventTurnReply,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "controller.SubmitTurn",
		Data: map[string]any{
			"session_id":   s.ID(),
			"reply_id":     reply.ID,
			"reply_length": len(turn.Content),
		},
	})

	return turn, nil
}

// waitForRun drives the wait protocol: while the run is queued or running,
// re-fetch its status at the configured poll interval until a terminal
// status, the deadline, or cancellation.
func (c *Controller) waitForRun(ctx context.Context, threadRef string, run remote.RunHandle) (remote.RunHandle, error) {
	if run.Status.Terminal() {
		return run, nil
	}

	latest := run
	backoff := retry.NewConstant(c.cfg.PollInterval())

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		h, err := c.client.GetRun(ctx, threadRef, run.ID)
		if err != nil {
			return err
		}
		latest = h

		c.observer.OnEvent(ctx, observability.Event{
			Type:      EventRunPoll,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "controller.waitForRun",
			Data: map[string]any{
				"run_id": h.ID,
				"status": string(h.Status),
			},
		})

		if !h.Status.Terminal() {
			return retry.RetryableError(errRunPending)
		}
		return nil
	})
	if err != nil {
		return latest, err
	}
	return latest, nil
}

// startRun begins the agent run, preferring the streaming capability when
// the caller wants deltas and the client offers it.
func (c *Controller) startRun(ctx context.Context, s *session.Session, threadRef string, emit func(string)) (remote.RunHandle, bool, error) {
	streamer, ok := c.client.(remote.Streamer)
	if emit == nil || !ok {
		run, err := c.client.StartRun(ctx, threadRef, c.cfg.AgentRef)
		return run, false, err
	}

	run, err := streamer.StreamRun(ctx, threadRef, c.cfg.AgentRef, func(delta string) error {
		if s.Closed() {
			return session.ErrClosed
		}
		emit(delta)
		return nil
	})
	return run, true, err
}

// classify maps a low-level failure to the controller's error taxonomy.
// Session teardown wins over whatever the cancelled call reported.
func (c *Controller) classify(s *session.Session, err error) error {
	switch {
	case s.Closed(), errors.Is(err, session.ErrClosed):
		return session.ErrClosed
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout())
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
}

// fail records the sentinel turn, marks the session failed, and returns the
// structured cause. Stale failures on a retired session are discarded.
func (c *Controller) fail(ctx context.Context, s *session.Session, gen uint64, cause error) (protocol.Turn, error) {
	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventTurnError,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "controller.SubmitTurn",
		Data: map[string]any{
			"session_id": s.ID(),
			"error":      cause.Error(),
		},
	})

	if errors.Is(cause, session.ErrClosed) {
		return protocol.Turn{}, session.ErrClosed
	}

	if err := s.Fail(gen, protocol.NewTurn(protocol.RoleAssistant, failureNotice)); err != nil {
		return protocol.Turn{}, err
	}
	return protocol.Turn{}, cause
}

// latestAssistant returns the most recent assistant-authored message from
// an ascending listing.
func latestAssistant(msgs []protocol.RemoteMessage) (protocol.RemoteMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == protocol.RoleAssistant {
			return msgs[i], true
		}
	}
	return protocol.RemoteMessage{}, false
}
