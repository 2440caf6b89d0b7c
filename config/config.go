package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	DatabasePath string `yaml:"database_path"`

	Service  ServiceConfig     `yaml:"service"`
	Backend  BackendConfig     `yaml:"backend"`
	Backoff  BackoffConfig     `yaml:"backoff"`
	Poll     PollConfig        `yaml:"poll"`
	Web      WebConfig         `yaml:"web"`
	Cookies  map[string]string `yaml:"cookies"`
	Transfer TransferConfig    `yaml:"transfer"`
	Return   ReturnConfig      `yaml:"return"`
}

// ServiceConfig defines the travel service connection.
type ServiceConfig struct {
	BaseURL   string        `yaml:"base_url"`
	AppID     string        `yaml:"app_id"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Proxy     string        `yaml:"proxy"` // empty means auto-detect from environment
}

// BackendConfig defines the companion backend (stats, version check).
type BackendConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// BackoffConfig bounds the randomized wait between attempts.
type BackoffConfig struct {
	MinSeconds int `yaml:"min_seconds"`
	MaxSeconds int `yaml:"max_seconds"`
}

// PollConfig tunes the short status-polling cycles.
type PollConfig struct {
	TransferAttempts int           `yaml:"transfer_attempts"`
	ReturnAttempts   int           `yaml:"return_attempts"`
	Interval         time.Duration `yaml:"interval"`
}

// WebConfig defines the local read-only status server. Port 0 disables it.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransferConfig names the validated selections of an outbound transfer.
// All fields are display names resolved against the fetched catalog.
type TransferConfig struct {
	SourceArea   string `yaml:"source_area"`
	SourceServer string `yaml:"source_server"`
	Role         string `yaml:"role"`
	TargetArea   string `yaml:"target_area"`
	TargetServer string `yaml:"target_server"`
}

// ReturnConfig tunes the return action. OrderID disambiguates when several
// in-flight orders qualify.
type ReturnConfig struct {
	OrderID string `yaml:"order_id"`
}

// Defaults returns a Config with the service's production settings.
func Defaults() *Config {
	return &Config{
		DatabasePath: "dctravel.db",
		Service: ServiceConfig{
			BaseURL:   "https://ff14bjz.sdo.com",
			AppID:     "100001900",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
			Timeout:   15 * time.Second,
		},
		Backend: BackendConfig{
			Enabled: true,
			BaseURL: "https://ff14dct.233.be/main.php",
		},
		Backoff: BackoffConfig{
			MinSeconds: 61,
			MaxSeconds: 65,
		},
		Poll: PollConfig{
			TransferAttempts: 10,
			ReturnAttempts:   12,
			Interval:         5 * time.Second,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DetectProxy returns the HTTP proxy configured in the environment, if any.
// An explicit Service.Proxy setting takes precedence over this.
func DetectProxy() string {
	for _, key := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "https_proxy"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
