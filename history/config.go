package history

// Config holds archive store initialization parameters.
type Config struct {
	Path string `json:"path,omitempty"` // FileStore root directory; empty disables archiving.
}

// DefaultConfig returns the default history configuration (disabled).
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// NewStore creates a Store from configuration. Returns a nil Store when Path
// is empty, indicating archiving is disabled.
func NewStore(cfg *Config) (Store, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return NewFileStore(cfg.Path), nil
}
