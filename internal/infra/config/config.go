// Package config resolves the resolved configuration struct the session
// core consumes. It:
//  1. reads environment variables from .env (via godotenv),
//  2. normalizes and validates them, substituting documented defaults,
//  3. optionally loads a previously persisted identity token,
//  4. exposes the result through a thread-safe singleton.
//
// Values are immutable once Load returns: the core treats its configuration
// as fixed for the lifetime of the session, per the supervisor's invariant
// that configuration is never mutated after Start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"wsguardian/internal/infra/identitystore"
)

// OverflowPolicy selects the Bounded Outbound Queue's behavior when full.
type OverflowPolicy string

const (
	DropOldest OverflowPolicy = "drop_oldest"
	DropNewest OverflowPolicy = "drop_newest"
)

// EnvConfig holds the values the Supervisor and its collaborators need.
// Immutable after Load: nothing in the session mutates it in place.
type EnvConfig struct {
	URL                 string
	ClientIdentifier    string
	HostIdentifier      string
	MonitorIdentifier   string // empty string disables monitor reporting
	LastConnectedAt     string // opaque token forwarded as a header
	LogEnabled          bool
	LogLevel            string
	LogFile             string
	IdentityStoreFile   string // empty disables persistence
	OverflowPolicy      OverflowPolicy
	SendRateLimit       float64 // messages/sec, 0 disables
	DispatchConcurrency int

	ConnectionTimeout      time.Duration
	RetryInitialDelay      time.Duration
	RetryMaxDelay          time.Duration
	RetryLimit             int
	QueueCapacity          int
	ShutdownGrace          time.Duration
	HealthInterval         time.Duration
	QueuePressureThreshold int
}

// Config is the process-wide, thread-safe configuration holder.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultMonitorIdentifier   = "monitor"
	defaultLogLevel            = "info"
	defaultOverflowPolicy      = DropOldest
	defaultSendRateLimit       = 0
	defaultDispatchConcurrency = 8

	defaultConnectionTimeout = 30 * time.Second
	defaultRetryInitialDelay = 5 * time.Second
	defaultRetryMaxDelay     = 15 * time.Second
	defaultRetryLimit        = 1000
	defaultQueueCapacity     = 15000
	defaultShutdownGrace     = 10 * time.Second
	defaultHealthInterval    = 300 * time.Second

	queuePressureFraction = 0.9
)

var (
	cfgInstance *Config
	cfgDone     bool
	cfgMu       sync.Mutex
)

// ErrAlreadyLoaded is returned by Load when called more than once, preventing
// configuration races at startup.
var ErrAlreadyLoaded = errors.New("config already loaded")

// Load is the entry point for initializing the global configuration. First
// call reads envPath (if it exists; a missing .env file is tolerated, unlike
// a malformed one) and populates the singleton. Repeat calls fail.
func Load(envPath string) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if cfgDone {
		return ErrAlreadyLoaded
	}

	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// loadConfig performs the actual load/validate without touching global
// state, so tests can build a throwaway Config and inspect it directly.
func loadConfig(envPath string) (*Config, error) {
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	url := strings.TrimSpace(os.Getenv("WS_URL"))
	if url == "" {
		return nil, errors.New("env WS_URL must be set")
	}

	identifier := strings.TrimSpace(os.Getenv("WS_IDENTIFIER"))
	if identifier == "" {
		return nil, errors.New("env WS_IDENTIFIER must be set")
	}

	hostIdentifier := strings.TrimSpace(os.Getenv("WS_HOST_IDENTIFIER"))

	var warnings []string

	monitorIdentifier := sanitizeMonitorIdentifier()
	logEnabled := parseBoolDefault("WS_LOG", false, &warnings)
	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), &warnings)
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	identityStoreFile := strings.TrimSpace(os.Getenv("IDENTITY_STORE_FILE"))
	overflowPolicy := sanitizeOverflowPolicy(os.Getenv("QUEUE_OVERFLOW_POLICY"), &warnings)
	sendRateLimit := parseFloatDefault("SEND_RATE_LIMIT", defaultSendRateLimit, nonNegativeFloat, &warnings)
	dispatchConcurrency := parseIntDefault("DISPATCH_CONCURRENCY", defaultDispatchConcurrency, greaterThanZero, &warnings)

	connectionTimeout := parseDurationDefault("CONNECTION_TIMEOUT_SEC", defaultConnectionTimeout, &warnings)
	retryInitialDelay := parseDurationDefault("RETRY_INITIAL_DELAY_SEC", defaultRetryInitialDelay, &warnings)
	retryMaxDelay := parseDurationDefault("RETRY_MAX_DELAY_SEC", defaultRetryMaxDelay, &warnings)
	retryLimit := parseIntDefault("RETRY_LIMIT", defaultRetryLimit, greaterThanZero, &warnings)
	queueCapacity := parseIntDefault("QUEUE_CAPACITY", defaultQueueCapacity, greaterThanZero, &warnings)
	shutdownGrace := parseDurationDefault("SHUTDOWN_GRACE_SEC", defaultShutdownGrace, &warnings)
	healthInterval := parseDurationDefault("HEALTH_INTERVAL_SEC", defaultHealthInterval, &warnings)

	lastConnectedAt := strings.TrimSpace(os.Getenv("WS_LAST_CONNECTED_AT"))
	if identityStoreFile != "" {
		if token, err := identitystore.Load(identityStoreFile); err != nil {
			appendWarningf(&warnings, "identity store %s: %v; falling back to WS_LAST_CONNECTED_AT", identityStoreFile, err)
		} else if token != "" {
			lastConnectedAt = token
		}
	}

	env := EnvConfig{
		URL:                    url,
		ClientIdentifier:       identifier,
		HostIdentifier:         hostIdentifier,
		MonitorIdentifier:      monitorIdentifier,
		LastConnectedAt:        lastConnectedAt,
		LogEnabled:             logEnabled,
		LogLevel:               logLevel,
		LogFile:                logFile,
		IdentityStoreFile:      identityStoreFile,
		OverflowPolicy:         overflowPolicy,
		SendRateLimit:          sendRateLimit,
		DispatchConcurrency:    dispatchConcurrency,
		ConnectionTimeout:      connectionTimeout,
		RetryInitialDelay:      retryInitialDelay,
		RetryMaxDelay:          retryMaxDelay,
		RetryLimit:             retryLimit,
		QueueCapacity:          queueCapacity,
		ShutdownGrace:          shutdownGrace,
		HealthInterval:         healthInterval,
		QueuePressureThreshold: int(queuePressureFraction * float64(queueCapacity)),
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings returns the warnings accumulated while loading .env (e.g. a
// default was substituted for an invalid value). Returns a copy.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env returns the EnvConfig from the global singleton: an immutable snapshot
// taken at the last Load.
func Env() EnvConfig {
	return cfgInstance.Env
}

// PersistLastConnectedAt writes token to the configured identity store, if
// one is configured. No-op otherwise. Called by the Supervisor on every
// on_open with the token its collaborator reports; the transport itself
// forwards no token.
func PersistLastConnectedAt(token string) error {
	path := Env().IdentityStoreFile
	if path == "" {
		return nil
	}
	return identitystore.Save(path, token)
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool     { return v > 0 }
func nonNegativeFloat(v float64) bool { return v >= 0 }

func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func parseFloatDefault(name string, defaultVal float64, validator func(float64) bool, warnings *[]string) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid number; using default %v", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %v does not satisfy constraints; using default %v", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid bool; using default %t", name, value, defaultVal)
		return defaultVal
	}
	return v
}

func parseDurationDefault(name string, defaultVal time.Duration, warnings *[]string) time.Duration {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		appendWarningf(warnings, "env %s value %q is not a valid positive integer seconds; using default %s", name, value, defaultVal)
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// sanitizeMonitorIdentifier implements the tri-state: unset ⇒ default,
// set-to-empty ⇒ disabled, set-to-value ⇒ that value.
func sanitizeMonitorIdentifier() string {
	v, ok := os.LookupEnv("WS_MONITOR_IDENTIFIER")
	if !ok {
		return defaultMonitorIdentifier
	}
	return strings.TrimSpace(v)
}

func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return defaultLogLevel
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel)
		return defaultLogLevel
	}
}

func sanitizeOverflowPolicy(value string, warnings *[]string) OverflowPolicy {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return defaultOverflowPolicy
	}
	switch OverflowPolicy(v) {
	case DropOldest, DropNewest:
		return OverflowPolicy(v)
	default:
		appendWarningf(warnings, "env QUEUE_OVERFLOW_POLICY value %q is invalid; using default %q", value, defaultOverflowPolicy)
		return defaultOverflowPolicy
	}
}
