// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers = []string{"sqlite", "postgres"}
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.frontend_url", "host_frontend_url")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("aws.access_key_id", "aws_access_key_id")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")
	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.cdn_bucket", "aws_cdn_bucket")
	v.BindEnv("aws.cdn_url", "aws_cdn_url")

	v.BindEnv("cloudflare.zone_id", "cloudflare_zone_id")
	v.BindEnv("cloudflare.api_token", "cloudflare_api_token")

	v.BindEnv("oidc.issuer", "oidc_issuer")
	v.BindEnv("oidc.client_id", "oidc_client_id")
	v.BindEnv("oidc.client_secret", "oidc_client_secret")
	v.BindEnv("oidc.redirect_uri", "oidc_redirect_uri")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("cache.redis", "cache_redis")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.frontend_url", "http://localhost:5173")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("cache.redis", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetString("jwt.secret") == "" {
		return errors.New("jwt.secret can't be empty")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid db driver provided")
	}

	if v.GetString("aws.access_key_id") == "" {
		return errors.New("aws access key id can't be empty")
	}
	if v.GetString("aws.secret_access_key") == "" {
		return errors.New("aws secret access key can't be empty")
	}
	if v.GetString("aws.region") == "" {
		return errors.New("aws region can't be empty")
	}
	if v.GetString("aws.bucket") == "" {
		return errors.New("private bucket can't be empty")
	}
	if v.GetString("aws.cdn_bucket") == "" {
		return errors.New("cdn bucket can't be empty")
	}
	if v.GetString("aws.cdn_url") == "" {
		return errors.New("cdn url can't be empty")
	}

	if v.GetString("oidc.issuer") == "" {
		return errors.New("oidc issuer can't be empty")
	}
	if v.GetString("oidc.client_id") == "" {
		return errors.New("oidc client id can't be empty")
	}
	if v.GetString("oidc.client_secret") == "" {
		return errors.New("oidc client secret can't be empty")
	}
	if v.GetString("oidc.redirect_uri") == "" {
		return errors.New("oidc redirect uri can't be empty")
	}

	if v.GetString("cloudflare.zone_id") == "" || v.GetString("cloudflare.api_token") == "" {
		zap.L().Warn("Cloudflare zone or API token missing, CDN cache purges are disabled")
	}

	return nil
}
