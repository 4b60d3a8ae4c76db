package controller

import "time"

const (
	defaultPollIntervalMS = 1000
	defaultTimeoutMS      = 120000
)

// Config holds the turn-taking parameters for a Controller.
type Config struct {
	// PollIntervalMS is the delay between run status fetches while a run
	// is queued or running.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`

	// TimeoutMS bounds the total duration of one submitted turn, from
	// posting the message to reconciling the reply.
	TimeoutMS int `json:"timeout_ms,omitempty"`

	// AgentRef is the opaque identifier of the remote agent runs are
	// started against.
	AgentRef string `json:"agent_ref,omitempty"`

	// Observers names the lifecycle observers to resolve from the
	// observability registry. More than one name fans events out to all
	// of them.
	Observers []string `json:"observers,omitempty"`
}

// DefaultConfig returns a Config with a 1s poll interval, a 120s turn
// deadline, and the "slog" observer. AgentRef has no default and must be
// supplied.
func DefaultConfig() Config {
	return Config{
		PollIntervalMS: defaultPollIntervalMS,
		TimeoutMS:      defaultTimeoutMS,
		Observers:      []string{"slog"},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.PollIntervalMS > 0 {
		c.PollIntervalMS = source.PollIntervalMS
	}
	if source.TimeoutMS > 0 {
		c.TimeoutMS = source.TimeoutMS
	}
	if source.AgentRef != "" {
		c.AgentRef = source.AgentRef
	}
	if len(source.Observers) > 0 {
		c.Observers = append([]string(nil), source.Observers...)
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Timeout returns the turn deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
