package controller

import (
	"context"

	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/session"
)

// SubmitTurnStream behaves like SubmitTurn but forwards incremental output
// to emit as it arrives. When the remote client implements remote.Streamer,
// each pushed text delta is an early, non-terminal view of the reply; the
// final turn is still reconciled against the thread listing so the
// no-duplicate guarantee holds. Clients without streaming fall back to the
// poll protocol and emit the complete reply once.
//
// emit is called from the goroutine running SubmitTurnStream and must not
// block indefinitely.
func (c *Controller) SubmitTurnStream(ctx context.Context, s *session.Session, text string, emit func(delta string)) (protocol.Turn, error) {
	if emit == nil {
		return c.submit(ctx, s, text, nil)
	}
	return c.submit(ctx, s, text, emit)
}
