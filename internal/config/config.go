package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envStatePath         = "AIO_STATE_PATH"
	envInstanceName      = "AIO_INSTANCE_NAME"
	envDockerHost        = "AIO_DOCKER_HOST"
	envDockerTimeout     = "AIO_DOCKER_TIMEOUT"
	envRuntimeCacheTTL   = "AIO_RUNTIME_CACHE_TTL"
	envNodeHost          = "AIO_NODE_HOST"
	envNodePort          = "AIO_NODE_PORT"
	envNodeFallbackPorts = "AIO_NODE_FALLBACK_PORTS"
	envNodeProbe         = "AIO_NODE_PROBE"
	envPortTimeout       = "AIO_PORT_TIMEOUT"
	envPortRetryInterval = "AIO_PORT_RETRY_INTERVAL"
	envPollInterval      = "AIO_POLL_INTERVAL"
	envWatchDebounce     = "AIO_WATCH_DEBOUNCE"
	envLogLevel          = "AIO_LOG_LEVEL"
	envHealthPort        = "AIO_HEALTH_PORT"
	envMetricsPort       = "AIO_METRICS_PORT"
	envSlackWebhookURL   = "AIO_SLACK_WEBHOOK_URL"
	envWebhookURL        = "AIO_WEBHOOK_URL"
	envWebhookTemplate   = "AIO_WEBHOOK_TEMPLATE"
	envDryRun            = "AIO_DRY_RUN"
	envCatalogFile       = "AIO_CATALOG_FILE"
	envComposeFile       = "AIO_COMPOSE_FILE"
	envWizardURL         = "AIO_WIZARD_URL"
	envDashboardURL      = "AIO_DASHBOARD_URL"
)

// Node probe modes.
const (
	ProbeHTTP = "http"
	ProbeTCP  = "tcp"
)

const (
	defaultStatePath         = ".kaspa-aio/installation-state.json"
	defaultDockerTimeout     = 10 * time.Second
	defaultRuntimeCacheTTL   = 30 * time.Second
	defaultNodeHost          = "localhost"
	defaultNodePort          = 16110
	defaultPortTimeout       = 3 * time.Second
	defaultPortRetryInterval = 10 * time.Second
	defaultPollInterval      = 30 * time.Second
	defaultWatchDebounce     = 200 * time.Millisecond
	defaultLogLevel          = "info"
	defaultWizardURL         = "http://localhost:3000"
	defaultDashboardURL      = "http://localhost:8080"
)

var defaultFallbackPorts = []int{16110, 16111}

// Config describes runtime configuration loaded from the environment.
type Config struct {
	StatePath         string
	InstanceName      string
	DockerHost        string
	DockerTimeout     time.Duration
	RuntimeCacheTTL   time.Duration
	NodeHost          string
	NodePort          int
	NodeFallbackPorts []int
	NodeProbe         string
	PortTimeout       time.Duration
	PortRetryInterval time.Duration
	PollInterval      time.Duration
	WatchDebounce     time.Duration
	LogLevel          string
	HealthPort        int
	MetricsPort       int
	SlackWebhookURL   string
	WebhookURL        string
	WebhookTemplate   string
	DryRun            bool
	CatalogFile       string
	ComposeFile       string
	WizardURL         string
	DashboardURL      string
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		StatePath:         defaultStatePath,
		InstanceName:      defaultInstanceName(),
		DockerTimeout:     defaultDockerTimeout,
		RuntimeCacheTTL:   defaultRuntimeCacheTTL,
		NodeHost:          defaultNodeHost,
		NodePort:          defaultNodePort,
		NodeFallbackPorts: slices.Clone(defaultFallbackPorts),
		NodeProbe:         ProbeHTTP,
		PortTimeout:       defaultPortTimeout,
		PortRetryInterval: defaultPortRetryInterval,
		PollInterval:      defaultPollInterval,
		WatchDebounce:     defaultWatchDebounce,
		LogLevel:          defaultLogLevel,
		WizardURL:         defaultWizardURL,
		DashboardURL:      defaultDashboardURL,
	}
}

func defaultInstanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "kaspa-aio"
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. A missing file is ignored.
func LoadFrom(envFile string) (Config, error) {
	if envFile != "" {
		if err := loadDotEnvIfPresent(envFile); err != nil {
			return Config{}, err
		}
	}

	cfg := Defaults()

	stringVars := map[string]*string{
		envStatePath:       &cfg.StatePath,
		envInstanceName:    &cfg.InstanceName,
		envDockerHost:      &cfg.DockerHost,
		envNodeHost:        &cfg.NodeHost,
		envLogLevel:        &cfg.LogLevel,
		envSlackWebhookURL: &cfg.SlackWebhookURL,
		envWebhookURL:      &cfg.WebhookURL,
		envWebhookTemplate: &cfg.WebhookTemplate,
		envCatalogFile:     &cfg.CatalogFile,
		envComposeFile:     &cfg.ComposeFile,
		envWizardURL:       &cfg.WizardURL,
		envDashboardURL:    &cfg.DashboardURL,
	}
	for key, target := range stringVars {
		if value, ok := lookupTrimmed(key); ok && value != "" {
			*target = value
		}
	}

	durationVars := []struct {
		key    string
		target *time.Duration
	}{
		{envDockerTimeout, &cfg.DockerTimeout},
		{envRuntimeCacheTTL, &cfg.RuntimeCacheTTL},
		{envPortTimeout, &cfg.PortTimeout},
		{envPortRetryInterval, &cfg.PortRetryInterval},
		{envPollInterval, &cfg.PollInterval},
		{envWatchDebounce, &cfg.WatchDebounce},
	}
	for _, v := range durationVars {
		if err := parsePositiveDuration(v.key, v.target); err != nil {
			return Config{}, err
		}
	}

	if err := parsePort(envNodePort, &cfg.NodePort, false); err != nil {
		return Config{}, err
	}
	if err := parsePort(envHealthPort, &cfg.HealthPort, true); err != nil {
		return Config{}, err
	}
	if err := parsePort(envMetricsPort, &cfg.MetricsPort, true); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envNodeFallbackPorts); ok {
		ports, err := parsePortList(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envNodeFallbackPorts, err)
		}
		cfg.NodeFallbackPorts = ports
	}

	if value, ok := lookupTrimmed(envNodeProbe); ok && value != "" {
		value = strings.ToLower(value)
		if value != ProbeHTTP && value != ProbeTCP {
			return Config{}, fmt.Errorf("invalid %s: must be %q or %q", envNodeProbe, ProbeHTTP, ProbeTCP)
		}
		cfg.NodeProbe = value
	}

	if value, ok := lookupTrimmed(envDryRun); ok && value != "" {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = dryRun
	}

	if cfg.CatalogFile != "" && cfg.ComposeFile != "" {
		return Config{}, fmt.Errorf("%s and %s are mutually exclusive", envCatalogFile, envComposeFile)
	}

	optionalURLs := []struct {
		key   string
		value string
	}{
		{envSlackWebhookURL, cfg.SlackWebhookURL},
		{envWebhookURL, cfg.WebhookURL},
		{envWizardURL, cfg.WizardURL},
		{envDashboardURL, cfg.DashboardURL},
	}
	for _, u := range optionalURLs {
		if u.value == "" {
			continue
		}
		if err := validateURL(u.value, u.key); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func parsePositiveDuration(key string, target *time.Duration) error {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("%s must be greater than zero", key)
	}
	*target = parsed
	return nil
}

// parsePort reads a TCP port. With allowZero, 0 disables the listener.
func parsePort(key string, target *int, allowZero bool) error {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if port == 0 && allowZero {
		*target = 0
		return nil
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s: %d is not a valid port", key, port)
	}
	*target = port
	return nil
}

func parsePortList(value string) ([]int, error) {
	ports := make([]int, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("%d is not a valid port", port)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
