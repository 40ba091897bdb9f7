package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// valid log formats, levels, and model providers
var (
	validLogFormats = []string{"text", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validProviders  = []string{"claude", "gemini", "openai"}
)

type Config struct {
	GitHubToken         string
	GitLabBaseURL       string
	GitLabSkipSSLVerify bool
	GitLabToken         string
	LogFormat           string
	LogLevel            string

	ModelAPI               string
	ModelContextTokens     int
	ModelID                string
	ModelMaxResponseTokens int
	ModelProvider          string
	ModelSkipSSLVerify     bool
	ModelTimeoutSeconds    int
	ModelUserKey           string

	Concurrency              int
	CoherenceEnabled         bool
	MaxRetryAttempts         int
	RetryBaseDelayMillis     int
	TokenSafetyMarginPercent int
	SystemPromptVersion      string
}

// SafetyMarginRatio returns the configured token safety margin as a ratio
// (e.g. 10 percent -> 0.10).
func (c *Config) SafetyMarginRatio() float64 {
	return float64(c.TokenSafetyMarginPercent) / 100
}

// Load creates a new Config instance from environment variables and validates it
func Load() (*Config, error) {

	// Parse Git platform configuration
	gitHubToken := os.Getenv("CMR_GITHUB_TOKEN")
	gitLabBaseURL := os.Getenv("CMR_GITLAB_BASE_URL")
	gitLabToken := os.Getenv("CMR_GITLAB_TOKEN")

	gitLabSkipSSL, err := parseBoolEnvOrDefault("CMR_GITLAB_SKIP_SSL_VERIFY", false)
	if err != nil {
		return nil, err
	}

	// Parse logging configuration
	logFormat := os.Getenv("CMR_LOG_FORMAT")
	logLevel := os.Getenv("CMR_LOG_LEVEL")

	// Parse model configuration
	modelProvider := getEnvOrDefault("CMR_MODEL_PROVIDER", "claude")
	prefix := strings.ToUpper(modelProvider)
	modelAPI := os.Getenv(fmt.Sprintf("CMR_%s_MODEL_API", prefix))
	modelID := os.Getenv(fmt.Sprintf("CMR_%s_MODEL_ID", prefix))
	modelUserKey := os.Getenv(fmt.Sprintf("CMR_%s_USER_KEY", prefix))

	modelSkipSSL, err := parseBoolEnvOrDefault("CMR_MODEL_SKIP_SSL_VERIFY", false)
	if err != nil {
		return nil, err
	}

	modelContextTokens, err := parseIntEnvOrDefault("CMR_MODEL_CONTEXT_TOKENS", 200000, 1, 1000000000)
	if err != nil {
		return nil, err
	}
	modelMaxResponseTokens, err := parseIntEnvOrDefault("CMR_MODEL_MAX_RESPONSE_TOKENS", 4000, 1, 1000000000)
	if err != nil {
		return nil, err
	}
	modelTimeoutSeconds, err := parseIntEnvOrDefault("CMR_MODEL_TIMEOUT_SECONDS", 120, 1, 1000000000)
	if err != nil {
		return nil, err
	}

	// Parse scheduling configuration
	concurrency, err := parseIntEnvOrDefault("CMR_CONCURRENCY", 4, 1, 256)
	if err != nil {
		return nil, err
	}
	coherenceEnabled, err := parseBoolEnvOrDefault("CMR_COHERENCE_ENABLED", true)
	if err != nil {
		return nil, err
	}
	maxRetryAttempts, err := parseIntEnvOrDefault("CMR_MAX_RETRY_ATTEMPTS", 3, 1, 100)
	if err != nil {
		return nil, err
	}
	retryBaseDelay, err := parseIntEnvOrDefault("CMR_RETRY_BASE_DELAY_MS", 1000, 1, 600000)
	if err != nil {
		return nil, err
	}
	safetyMarginPercent, err := parseIntEnvOrDefault("CMR_TOKEN_SAFETY_MARGIN_PERCENT", 10, 0, 100)
	if err != nil {
		return nil, err
	}

	// Parse system prompt version
	systemPromptVersion := getEnvOrDefault("CMR_SYSTEM_PROMPT_VERSION", "v1")

	// Build config struct
	cfg := &Config{
		GitHubToken:         gitHubToken,
		GitLabBaseURL:       gitLabBaseURL,
		GitLabSkipSSLVerify: gitLabSkipSSL,
		GitLabToken:         gitLabToken,
		LogFormat:           logFormat,
		LogLevel:            logLevel,

		ModelAPI:               modelAPI,
		ModelContextTokens:     modelContextTokens,
		ModelID:                modelID,
		ModelMaxResponseTokens: modelMaxResponseTokens,
		ModelProvider:          modelProvider,
		ModelSkipSSLVerify:     modelSkipSSL,
		ModelTimeoutSeconds:    modelTimeoutSeconds,
		ModelUserKey:           modelUserKey,

		Concurrency:              concurrency,
		CoherenceEnabled:         coherenceEnabled,
		MaxRetryAttempts:         maxRetryAttempts,
		RetryBaseDelayMillis:     retryBaseDelay,
		TokenSafetyMarginPercent: safetyMarginPercent,
		SystemPromptVersion:      systemPromptVersion,
	}

	// Validate configuration
	if err := validateConfig(cfg, prefix); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// parseIntEnvOrDefault parses an integer environment variable with range validation or returns a default value if not set
func parseIntEnvOrDefault(key string, defaultVal, min, max int) (int, error) {
	str, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal, nil
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer, got: %s", key, str)
	}

	if val < min || val > max {
		return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, val)
	}

	return val, nil
}

// parseBoolEnvOrDefault parses a boolean environment variable or returns a default value if not set
func parseBoolEnvOrDefault(key string, defaultVal bool) (bool, error) {
	str, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal, nil
	}

	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean, got: %s", key, str)
	}

	return val, nil
}

// validateConfig performs all validation on the loaded configuration
func validateConfig(cfg *Config, modelProviderPrefix string) error {

	// Validate model provider selection
	if !slices.Contains(validProviders, strings.ToLower(cfg.ModelProvider)) {
		return fmt.Errorf("CMR_MODEL_PROVIDER must be one of: %v; got: %s", validProviders, cfg.ModelProvider)
	}

	// Validate logging configuration
	if cfg.LogFormat != "" {
		if !slices.Contains(validLogFormats, strings.ToLower(cfg.LogFormat)) {
			return fmt.Errorf("CMR_LOG_FORMAT must be one of: %v; got: %s", validLogFormats, cfg.LogFormat)
		}
	}
	if cfg.LogLevel != "" {
		if !slices.Contains(validLogLevels, strings.ToLower(cfg.LogLevel)) {
			return fmt.Errorf("CMR_LOG_LEVEL must be one of: %v; got: %s", validLogLevels, cfg.LogLevel)
		}
	}

	// Validate required model configuration
	if cfg.ModelAPI == "" {
		return fmt.Errorf("CMR_%s_MODEL_API environment variable is required", modelProviderPrefix)
	}
	if cfg.ModelID == "" {
		return fmt.Errorf("CMR_%s_MODEL_ID environment variable is required", modelProviderPrefix)
	}
	if cfg.ModelUserKey == "" {
		return fmt.Errorf("CMR_%s_USER_KEY environment variable is required", modelProviderPrefix)
	}

	// Validate token budget arithmetic stays meaningful
	if cfg.ModelMaxResponseTokens >= cfg.ModelContextTokens {
		return fmt.Errorf("CMR_MODEL_MAX_RESPONSE_TOKENS (%d) must be smaller than CMR_MODEL_CONTEXT_TOKENS (%d)",
			cfg.ModelMaxResponseTokens, cfg.ModelContextTokens)
	}

	// Validate GitLab configuration pairing
	if cfg.GitLabToken != "" && cfg.GitLabBaseURL == "" {
		return fmt.Errorf("CMR_GITLAB_BASE_URL environment variable is required when CMR_GITLAB_TOKEN is provided")
	}

	return nil
}
