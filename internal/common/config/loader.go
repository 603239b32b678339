// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultRendererEndpoint = "https://app.output.rocks/api/renderings"
	DefaultWaitWindow       = 120000
	DefaultMessageName      = "outputrocks-resume"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are usually only present in the environment.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = os.Getenv("PUBLIC_URL")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "outputrocks-nodes"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 32 << 20
	}

	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Credentials.Backend == "" {
		cfg.Credentials.Backend = "memory"
	}

	if cfg.Renderer.Endpoint == "" {
		cfg.Renderer.Endpoint = DefaultRendererEndpoint
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30000
	}

	// Seeded credential ids are map keys, which viper lowercases; references
	// to them are lowercased to match.
	for i := range cfg.Triggers {
		cfg.Triggers[i].CredentialID = strings.ToLower(cfg.Triggers[i].CredentialID)
	}
	for key, node := range cfg.Nodes {
		node.CredentialID = strings.ToLower(node.CredentialID)
		if node.MaxJobsActive == 0 {
			node.MaxJobsActive = 5
		}
		if node.Timeout == 0 {
			node.Timeout = 30000
		}
		if node.WaitWindow == 0 {
			node.WaitWindow = DefaultWaitWindow
		}
		cfg.Nodes[key] = node
	}

	if cfg.Waiting.Backend == "" {
		cfg.Waiting.Backend = "memory"
	}
	if cfg.Waiting.MessageName == "" {
		cfg.Waiting.MessageName = DefaultMessageName
	}
	if cfg.Waiting.Grace == 0 {
		cfg.Waiting.Grace = 60000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Credentials.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis credential backend")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database are required for the postgres credential backend")
		}
	default:
		return fmt.Errorf("credentials.backend %q is not supported", cfg.Credentials.Backend)
	}

	switch cfg.Waiting.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis waiting backend")
		}
	default:
		return fmt.Errorf("waiting.backend %q is not supported", cfg.Waiting.Backend)
	}

	seen := make(map[string]bool, len(cfg.Triggers))
	for i, trigger := range cfg.Triggers {
		if strings.Trim(trigger.Path, "/") == "" {
			return fmt.Errorf("triggers[%d].path is required", i)
		}
		if seen[trigger.Path] {
			return fmt.Errorf("triggers[%d].path %q is registered twice", i, trigger.Path)
		}
		seen[trigger.Path] = true
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetNodeConfig retrieves node configuration with fallback to defaults.
// Viper lowercases map keys, so the lowercased name is tried as well.
func GetNodeConfig(cfg *Config, nodeName string) NodeConfig {
	if node, exists := cfg.Nodes[nodeName]; exists {
		return node
	}
	if node, exists := cfg.Nodes[strings.ToLower(nodeName)]; exists {
		return node
	}
	return NodeConfig{
		Enabled:       false,
		MaxJobsActive: 5,
		Timeout:       30000,
		WaitWindow:    DefaultWaitWindow,
	}
}

// IsNodeEnabled reports whether a node is configured and enabled.
func IsNodeEnabled(cfg *Config, nodeName string) bool {
	return GetNodeConfig(cfg, nodeName).Enabled
}
