package render

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Endpoint      string        `mapstructure:"endpoint"`
	// WaitWindow is how long a resumable variant parks the execution.
	WaitWindow time.Duration `mapstructure:"wait_window"`
	// ResumeURLBase, when set, replaces everything but the last path
	// segment of the resume URL sent as metadata.
	ResumeURLBase string `mapstructure:"resume_url_base"`
	CredentialID  string `mapstructure:"credential_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		Endpoint:      DefaultEndpoint,
		WaitWindow:    120 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.WaitWindow <= 0 {
		return fmt.Errorf("wait_window must be positive")
	}
	if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
		return fmt.Errorf("endpoint is not a valid URL: %w", err)
	}
	if c.ResumeURLBase != "" {
		if _, err := url.ParseRequestURI(c.ResumeURLBase); err != nil {
			return fmt.Errorf("resume_url_base is not a valid URL: %w", err)
		}
	}
	return nil
}
