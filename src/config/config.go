// Package config loads the bot settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"personal/cheesebot/src/intents"
)

const (
	DefaultAPIURL         = "https://discord.com/api/v10"
	DefaultGatewayVersion = "10"
	DefaultDevice         = "Cheese"
	DefaultMaxMissedAcks  = 2
	DefaultLogFile        = "CheeseBot.log"
)

type Config struct {
	Token          string
	APIURL         string
	GatewayVersion string
	Intents        intents.Intent
	Device         string
	Compress       bool
	MaxMissedAcks  int
	Log            LogConfig
}

type LogConfig struct {
	Level  string
	Format string
	// File receives a copy of every log line. Empty disables it.
	File string
}

// ValidationError lists every problem found in the configuration.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Load reads the .env file at path, if present, and the process environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	file, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		file = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	ve := &ValidationError{}
	cfg := &Config{
		Token:          get("DISCORD_TOKEN", ""),
		APIURL:         strings.TrimSuffix(get("DISCORD_API_URL", DefaultAPIURL), "/"),
		GatewayVersion: get("DISCORD_GATEWAY_VERSION", DefaultGatewayVersion),
		Intents:        intents.AllWithoutPrivileged,
		Device:         get("DISCORD_DEVICE", DefaultDevice),
		MaxMissedAcks:  DefaultMaxMissedAcks,
		Log: LogConfig{
			Level:  get("LOG_LEVEL", "info"),
			Format: get("LOG_FORMAT", "text"),
			File:   DefaultLogFile,
		},
	}

	if v, ok := lookup("LOG_FILE"); ok {
		cfg.Log.File = strings.TrimSpace(v)
	}

	if cfg.Token == "" {
		ve.add("DISCORD_TOKEN is required")
	}
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		ve.add("DISCORD_API_URL %q is not an absolute url", cfg.APIURL)
	}
	if _, err := strconv.Atoi(cfg.GatewayVersion); err != nil {
		ve.add("DISCORD_GATEWAY_VERSION %q is not a number", cfg.GatewayVersion)
	}

	if v := get("DISCORD_INTENTS", ""); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		switch {
		case err != nil:
			ve.add("DISCORD_INTENTS %q is not a number", v)
		case intents.Intent(n)&^intents.All != 0:
			ve.add("DISCORD_INTENTS %d sets unknown bits", n)
		default:
			cfg.Intents = intents.Intent(n)
		}
	}

	if v := get("DISCORD_COMPRESS", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ve.add("DISCORD_COMPRESS %q is not a boolean", v)
		}
		cfg.Compress = b
	}

	if v := get("HEARTBEAT_MAX_MISSED_ACKS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ve.add("HEARTBEAT_MAX_MISSED_ACKS %q must be a non-negative integer", v)
		} else {
			cfg.MaxMissedAcks = n
		}
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		ve.add("LOG_FORMAT %q must be text or json", cfg.Log.Format)
	}

	if len(ve.Errors) > 0 {
		return nil, ve
	}
	return cfg, nil
}
