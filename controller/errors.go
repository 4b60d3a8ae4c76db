package controller

import "errors"

var (
	// ErrRemoteUnavailable indicates a transport or auth failure reaching
	// the agent service. The controller never retries; callers decide.
	ErrRemoteUnavailable = errors.New("remote agent service unavailable")

	// ErrRunFailed indicates the remote explicitly reported run failure.
	// The wrapped message carries the remote-provided detail.
	ErrRunFailed = errors.New("agent run failed")

	// ErrTimeout indicates the local wait deadline elapsed before the run
	// reached a terminal status. The remote run may still complete later.
	ErrTimeout = errors.New("run wait deadline exceeded")

	// ErrEmptyReply indicates the run completed but produced no assistant
	// content that is not already in the transcript. Not a remote failure;
	// there is simply nothing new to show.
	ErrEmptyReply = errors.New("run produced no new assistant reply")
)
