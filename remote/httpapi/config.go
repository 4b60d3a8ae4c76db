package httpapi

const defaultAPIVersion = "2025-05-01"

// Config holds connection parameters for the agents REST API.
type Config struct {
	// Endpoint is the API base URL, e.g.
	// https://example.services.ai.azure.com/api/projects/example.
	Endpoint string `json:"endpoint,omitempty"`

	// APIVersion is sent as the api-version query parameter on every call.
	APIVersion string `json:"api_version,omitempty"`
}

// DefaultConfig returns a Config with the default API version. Endpoint has
// no default and must be supplied.
func DefaultConfig() Config {
	return Config{APIVersion: defaultAPIVersion}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.Endpoint != "" {
		c.Endpoint = source.Endpoint
	}
	if source.APIVersion != "" {
		c.APIVersion = source.APIVersion
	}
}
