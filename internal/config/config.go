package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Source        SourceConfig
	S3            S3Config
	HDFS          HDFSConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SourceConfig holds credentials for the external HTTP API whose paths carry
// ExternalAPIMarker. The credentials are only sent to CredentialsHost.
type SourceConfig struct {
	ExternalAPIMarker string
	BoondUsername     string
	BoondPassword     string
	CredentialsHost   string
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
	PathStyle       bool
}

type HDFSConfig struct {
	NameNode string
	User     string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLESTREAM_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLESTREAM_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if path, ok := lookup("TABLESTREAM_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := applyFile(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyString(lookup, "TABLESTREAM_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLESTREAM_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLESTREAM_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLESTREAM_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_SOURCE_EXTERNAL_API_MARKER", &cfg.Source.ExternalAPIMarker); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_SOURCE_BOOND_USERNAME", &cfg.Source.BoondUsername); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_SOURCE_BOOND_PASSWORD", &cfg.Source.BoondPassword); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_SOURCE_CREDENTIALS_HOST", &cfg.Source.CredentialsHost); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_S3_ENDPOINT", &cfg.S3.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_S3_REGION", &cfg.S3.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_S3_ACCESS_KEY", &cfg.S3.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_S3_SECRET_KEY", &cfg.S3.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_S3_SESSION_TOKEN", &cfg.S3.SessionToken); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESTREAM_S3_USE_SSL", &cfg.S3.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESTREAM_S3_PATH_STYLE", &cfg.S3.PathStyle); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_HDFS_NAMENODE", &cfg.HDFS.NameNode); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_HDFS_USER", &cfg.HDFS.User); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESTREAM_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TABLESTREAM_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLESTREAM_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLESTREAM_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tablestream-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Source: SourceConfig{
			ExternalAPIMarker: "ui.boondmanager/api",
		},
		S3: S3Config{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
			UseSSL:          false,
			PathStyle:       true,
		},
		HDFS: HDFSConfig{
			NameNode: "localhost:8020",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.S3.UseSSL = true
		cfg.S3.AccessKeyID = ""
		cfg.S3.SecretAccessKey = ""
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level, err := parseLogLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = level
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
