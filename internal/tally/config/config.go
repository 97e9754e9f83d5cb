package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `json:"app" yaml:"app"`
	API        APIConfig        `json:"api" yaml:"api"`
	Memory     MemoryConfig     `json:"memory" yaml:"memory"`
	Security   SecurityConfig   `json:"security" yaml:"security"`
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Debug       bool   `json:"debug" yaml:"debug"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format"`
	Environment string `json:"environment" yaml:"environment"`
}

// APIConfig represents HTTP API configuration
type APIConfig struct {
	Host        string   `json:"host" yaml:"host"`
	Port        int      `json:"port" yaml:"port"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
	Timeout     int      `json:"timeout" yaml:"timeout"`
}

// MemoryConfig represents session store configuration
type MemoryConfig struct {
	StoreType     string `json:"store_type" yaml:"store_type"` // "memory" or "redis"
	RedisHost     string `json:"redis_host" yaml:"redis_host"`
	RedisPort     int    `json:"redis_port" yaml:"redis_port"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
}

// SecurityConfig represents request limiting configuration
type SecurityConfig struct {
	EnableRateLimit    bool `json:"enable_rate_limit" yaml:"enable_rate_limit"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// MonitoringConfig represents health monitoring configuration
type MonitoringConfig struct {
	HealthCheckInterval int `json:"health_check_interval" yaml:"health_check_interval"`
}

// Load loads configuration from YAML files and environment variables.
// Environment variables win over YAML values, YAML values win over defaults.
func Load() *Config {
	configDir := getEnv("CONFIG_DIR", "config")
	yamlConfig := loadYAMLConfig(configDir)

	config := &Config{}

	config.App = AppConfig{
		Name:        getEnvWithYAML("APP_NAME", yamlConfig, "app.name", "tally"),
		Version:     getEnvWithYAML("APP_VERSION", yamlConfig, "app.version", "1.0.0"),
		Debug:       getEnvBoolWithYAML("DEBUG", yamlConfig, "app.debug", false),
		LogLevel:    getEnvWithYAML("LOG_LEVEL", yamlConfig, "app.log_level", "INFO"),
		LogFormat:   getEnvWithYAML("LOG_FORMAT", yamlConfig, "app.log_format", "text"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	config.API = APIConfig{
		Host:        getEnvWithYAML("API_HOST", yamlConfig, "api.host", "0.0.0.0"),
		Port:        getEnvIntWithYAML("API_PORT", yamlConfig, "api.port", 8000),
		CORSOrigins: getEnvSliceWithYAML("API_CORS_ORIGINS", yamlConfig, "api.cors_origins", []string{"*"}),
		Timeout:     getEnvIntWithYAML("API_TIMEOUT", yamlConfig, "api.timeout", 30),
	}

	config.Memory = MemoryConfig{
		StoreType:     getEnvWithYAML("MEMORY_STORE_TYPE", yamlConfig, "memory.store_type", "memory"),
		RedisHost:     getEnvWithYAML("REDIS_HOST", yamlConfig, "memory.redis_host", "localhost"),
		RedisPort:     getEnvIntWithYAML("REDIS_PORT", yamlConfig, "memory.redis_port", 6379),
		RedisPassword: getEnvWithYAML("REDIS_PASSWORD", yamlConfig, "memory.redis_password", ""),
		RedisDB:       getEnvIntWithYAML("REDIS_DB", yamlConfig, "memory.redis_db", 0),
	}

	config.Security = SecurityConfig{
		EnableRateLimit:    getEnvBoolWithYAML("ENABLE_RATE_LIMIT", yamlConfig, "security.enable_rate_limit", false),
		RateLimitPerMinute: getEnvIntWithYAML("RATE_LIMIT_PER_MINUTE", yamlConfig, "security.rate_limit_per_minute", 60),
	}

	config.Monitoring = MonitoringConfig{
		HealthCheckInterval: getEnvIntWithYAML("HEALTH_CHECK_INTERVAL", yamlConfig, "monitoring.health_check_interval", 60),
	}

	return config
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadYAMLConfig loads configuration from app_config.yaml if present
func loadYAMLConfig(configDir string) map[string]interface{} {
	yamlConfig := make(map[string]interface{})

	appConfigPath := filepath.Join(configDir, "app_config.yaml")
	if data, err := os.ReadFile(appConfigPath); err == nil {
		var config map[string]interface{}
		if err := yaml.Unmarshal(data, &config); err == nil {
			yamlConfig = config
		}
	}

	return yamlConfig
}

// getEnvWithYAML gets environment variable with YAML fallback
func getEnvWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		return yamlValue
	}

	return defaultValue
}

// getEnvIntWithYAML gets integer environment variable with YAML fallback
func getEnvIntWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue int) int {
	if value := os.Getenv(envKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if intValue, err := strconv.Atoi(yamlValue); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvBoolWithYAML gets boolean environment variable with YAML fallback
func getEnvBoolWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue bool) bool {
	if value := os.Getenv(envKey); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if boolValue, err := strconv.ParseBool(yamlValue); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

// getEnvSliceWithYAML gets string slice environment variable with YAML fallback
func getEnvSliceWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue []string) []string {
	if value := os.Getenv(envKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, len(parts))
		for i, part := range parts {
			result[i] = strings.TrimSpace(part)
		}
		return result
	}

	if yamlValue := getYAMLSlice(yamlConfig, yamlPath); yamlValue != nil {
		return yamlValue
	}

	return defaultValue
}

// getYAMLValue gets a scalar from YAML config using dot notation path
func getYAMLValue(config map[string]interface{}, path string) string {
	parts := strings.Split(path, ".")
	current := config

	for i, part := range parts {
		if i == len(parts)-1 {
			if value, ok := current[part]; ok {
				switch v := value.(type) {
				case string:
					return v
				case int:
					return strconv.Itoa(v)
				case bool:
					return strconv.FormatBool(v)
				case float64:
					return strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			break
		}

		if next, ok := current[part].(map[string]interface{}); ok {
			current = next
		} else {
			break
		}
	}

	return ""
}

// getYAMLSlice gets a string slice from YAML config using dot notation path
func getYAMLSlice(config map[string]interface{}, path string) []string {
	parts := strings.Split(path, ".")
	current := config

	for i, part := range parts {
		if i == len(parts)-1 {
			if value, ok := current[part]; ok {
				if slice, ok := value.([]interface{}); ok {
					result := make([]string, 0, len(slice))
					for _, item := range slice {
						if str, ok := item.(string); ok {
							result = append(result, str)
						}
					}
					return result
				}
			}
			break
		}

		if next, ok := current[part].(map[string]interface{}); ok {
			current = next
		} else {
			break
		}
	}

	return nil
}
