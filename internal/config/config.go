package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Model     ModelConfig
	R2        R2Config
	OIDC      OIDCConfig
	NASA      NASAConfig
	NOAA      NOAAConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	AnalyzePerMin int
	BatchPerHour  int
	SensorPerHour int
	ClipsPerHour  int
}

// ModelConfig points at the Node.js wrapper around the compiled
// Edge Impulse WebAssembly model.
type ModelConfig struct {
	ServerURL   string
	Timeout     int // seconds
	MetricsPath string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type NASAConfig struct {
	BaseURL   string
	Community string
	Timeout   int // seconds
}

type NOAAConfig struct {
	BaseURL string
	Token   string
	Timeout int // seconds
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("NOAA_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("model.server_url", "MODEL_SERVER_URL")
	_ = viper.BindEnv("model.timeout", "MODEL_SERVER_TIMEOUT")
	_ = viper.BindEnv("model.metrics_path", "MODEL_METRICS_PATH")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("nasa.base_url", "NASA_POWER_BASE_URL")
	_ = viper.BindEnv("nasa.community", "NASA_POWER_COMMUNITY")
	_ = viper.BindEnv("nasa.timeout", "NASA_POWER_TIMEOUT")
	_ = viper.BindEnv("noaa.base_url", "NOAA_BASE_URL")
	_ = viper.BindEnv("noaa.token", "NOAA_API_KEY")
	_ = viper.BindEnv("noaa.timeout", "NOAA_TIMEOUT")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.analyze_per_min", 30)
	viper.SetDefault("ratelimit.batch_per_hour", 10)
	viper.SetDefault("ratelimit.sensor_per_hour", 10)
	viper.SetDefault("ratelimit.clips_per_hour", 50)

	// Model server defaults (Node.js inference wrapper)
	viper.SetDefault("model.server_url", "http://localhost:5001")
	viper.SetDefault("model.timeout", 5)
	viper.SetDefault("model.metrics_path", "models/baseline_performance.json")

	// NASA POWER defaults (public API, no auth)
	viper.SetDefault("nasa.base_url", "https://power.larc.nasa.gov/api")
	viper.SetDefault("nasa.community", "SB")
	viper.SetDefault("nasa.timeout", 60)

	// NOAA CDO defaults (token required)
	viper.SetDefault("noaa.base_url", "https://www.ncdc.noaa.gov/cdo-web/api/v2")
	viper.SetDefault("noaa.timeout", 30)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			AnalyzePerMin: viper.GetInt("ratelimit.analyze_per_min"),
			BatchPerHour:  viper.GetInt("ratelimit.batch_per_hour"),
			SensorPerHour: viper.GetInt("ratelimit.sensor_per_hour"),
			ClipsPerHour:  viper.GetInt("ratelimit.clips_per_hour"),
		},
		Model: ModelConfig{
			ServerURL:   viper.GetString("model.server_url"),
			Timeout:     viper.GetInt("model.timeout"),
			MetricsPath: viper.GetString("model.metrics_path"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		NASA: NASAConfig{
			BaseURL:   viper.GetString("nasa.base_url"),
			Community: viper.GetString("nasa.community"),
			Timeout:   viper.GetInt("nasa.timeout"),
		},
		NOAA: NOAAConfig{
			BaseURL: viper.GetString("noaa.base_url"),
			Token:   viper.GetString("noaa.token"),
			Timeout: viper.GetInt("noaa.timeout"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
