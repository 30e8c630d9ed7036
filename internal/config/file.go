package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Unset keys keep the profile defaults and
// environment variables still win over anything set here.
type fileConfig struct {
	Service *struct {
		Name *string `yaml:"name"`
	} `yaml:"service"`
	HTTP *struct {
		Address      *string `yaml:"address"`
		ReadTimeout  *string `yaml:"read_timeout"`
		WriteTimeout *string `yaml:"write_timeout"`
		IdleTimeout  *string `yaml:"idle_timeout"`
	} `yaml:"http"`
	Source *struct {
		ExternalAPIMarker *string `yaml:"external_api_marker"`
		BoondUsername     *string `yaml:"boond_username"`
		BoondPassword     *string `yaml:"boond_password"`
		CredentialsHost   *string `yaml:"credentials_host"`
	} `yaml:"source"`
	S3 *struct {
		Endpoint        *string `yaml:"endpoint"`
		Region          *string `yaml:"region"`
		AccessKeyID     *string `yaml:"access_key"`
		SecretAccessKey *string `yaml:"secret_key"`
		SessionToken    *string `yaml:"session_token"`
		UseSSL          *bool   `yaml:"use_ssl"`
		PathStyle       *bool   `yaml:"path_style"`
	} `yaml:"s3"`
	HDFS *struct {
		NameNode *string `yaml:"namenode"`
		User     *string `yaml:"user"`
	} `yaml:"hdfs"`
	Observability *struct {
		LogLevel *string `yaml:"log_level"`
		LogJSON  *bool   `yaml:"log_json"`
	} `yaml:"observability"`
	Auth *struct {
		Required   *bool   `yaml:"required"`
		StaticKeys *string `yaml:"static_keys"`
	} `yaml:"auth"`
}

func applyFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	return applyYAML(content, cfg)
}

func applyYAML(content []byte, cfg *Config) error {
	var file fileConfig
	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.Service != nil {
		setString(file.Service.Name, &cfg.Service.Name)
	}
	if file.HTTP != nil {
		setString(file.HTTP.Address, &cfg.HTTP.Address)
		if err := setDuration("http.read_timeout", file.HTTP.ReadTimeout, &cfg.HTTP.ReadTimeout); err != nil {
			return err
		}
		if err := setDuration("http.write_timeout", file.HTTP.WriteTimeout, &cfg.HTTP.WriteTimeout); err != nil {
			return err
		}
		if err := setDuration("http.idle_timeout", file.HTTP.IdleTimeout, &cfg.HTTP.IdleTimeout); err != nil {
			return err
		}
	}
	if file.Source != nil {
		setString(file.Source.ExternalAPIMarker, &cfg.Source.ExternalAPIMarker)
		setString(file.Source.BoondUsername, &cfg.Source.BoondUsername)
		setString(file.Source.BoondPassword, &cfg.Source.BoondPassword)
		setString(file.Source.CredentialsHost, &cfg.Source.CredentialsHost)
	}
	if file.S3 != nil {
		setString(file.S3.Endpoint, &cfg.S3.Endpoint)
		setString(file.S3.Region, &cfg.S3.Region)
		setString(file.S3.AccessKeyID, &cfg.S3.AccessKeyID)
		setString(file.S3.SecretAccessKey, &cfg.S3.SecretAccessKey)
		setString(file.S3.SessionToken, &cfg.S3.SessionToken)
		setBool(file.S3.UseSSL, &cfg.S3.UseSSL)
		setBool(file.S3.PathStyle, &cfg.S3.PathStyle)
	}
	if file.HDFS != nil {
		setString(file.HDFS.NameNode, &cfg.HDFS.NameNode)
		setString(file.HDFS.User, &cfg.HDFS.User)
	}
	if file.Observability != nil {
		setBool(file.Observability.LogJSON, &cfg.Observability.LogJSON)
		if file.Observability.LogLevel != nil {
			level, err := parseLogLevel(*file.Observability.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid observability.log_level: %w", err)
			}
			cfg.Observability.LogLevel = level
		}
	}
	if file.Auth != nil {
		setBool(file.Auth.Required, &cfg.Auth.Required)
		setString(file.Auth.StaticKeys, &cfg.Auth.StaticKeys)
	}
	return nil
}

func setString(src *string, dst *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setBool(src *bool, dst *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(key string, src *string, dst *time.Duration) error {
	if src == nil {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(*src))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}
