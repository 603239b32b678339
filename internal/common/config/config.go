// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig             `mapstructure:"app"`
	Server        ServerConfig          `mapstructure:"server"`
	Camunda       CamundaConfig         `mapstructure:"camunda"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Credentials   CredentialsConfig     `mapstructure:"credentials"`
	Renderer      RendererConfig        `mapstructure:"renderer"`
	Nodes         map[string]NodeConfig `mapstructure:"nodes"`
	Triggers      []TriggerConfig       `mapstructure:"triggers"`
	Waiting       WaitingConfig         `mapstructure:"waiting"`
	Notifications NotificationConfig    `mapstructure:"notifications"`
	Logging       LoggingConfig         `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the webhook HTTP server. PublicURL is the externally
// reachable base used to build resume URLs.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	PublicURL       string `mapstructure:"public_url"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CredentialsConfig selects where node credentials are stored:
// "memory", "redis" or "postgres".
type CredentialsConfig struct {
	Backend string `mapstructure:"backend"`
	// Seed is loaded into the store at startup, keyed by type then id.
	Seed map[string]map[string]map[string]string `mapstructure:"seed"`
}

// RendererConfig points at the remote rendering service.
type RendererConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// NodeConfig holds the settings applicable to every render node.
type NodeConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TaskType      string `mapstructure:"task_type"` // defaults to outputrocks.<node>
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"`     // milliseconds
	WaitWindow    int    `mapstructure:"wait_window"` // milliseconds
	CredentialID  string `mapstructure:"credential_id"`
	ResumeURLBase string `mapstructure:"resume_url_base"`
}

// TriggerConfig binds a delivery trigger path to a credential and the
// process it starts. Credential ids are case-insensitive.
type TriggerConfig struct {
	Path         string `mapstructure:"path"`
	CredentialID string `mapstructure:"credential_id"`
	ProcessID    string `mapstructure:"process_id"`
}

type WaitingConfig struct {
	Backend     string `mapstructure:"backend"` // "memory" or "redis"
	MessageName string `mapstructure:"message_name"`
	Grace       int    `mapstructure:"grace"` // milliseconds kept after waitTill
}

type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
