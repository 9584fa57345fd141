package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/scheduler"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "STUDYSPACE"

// Store backends accepted by the store key.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config captures the settings of the studyspace service.
type Config struct {
	HTTPPort               int
	Store                  string
	SQLiteDSN              string
	CatalogFile            string
	Location               *time.Location
	MaxReservationDuration time.Duration
	DayWindowStart         scheduler.TimeOfDay
	DayWindowEnd           scheduler.TimeOfDay
	MinScore               int
	MaxScore               int
	AdmissionRetries       int
	SweepInterval          time.Duration
	RateLimitRPS           float64
	RateLimitBurst         int
	LogLevel               string
	LogFormat              string
	MetricsStdout          bool
}

var defaults = map[string]any{
	"http_port":                8080,
	"store":                    StoreSQLite,
	"sqlite_dsn":               "studyspace.db",
	"catalog_file":             "",
	"timezone":                 "UTC",
	"max_reservation_duration": "4h",
	"day_window_start":         "08:00",
	"day_window_end":           "22:00",
	"min_score":                1,
	"max_score":                10,
	"admission_retries":        5,
	"sweep_interval":           "1m",
	"rate_limit_rps":           5.0,
	"rate_limit_burst":         10,
	"log_level":                "info",
	"log_format":               "json",
	"metrics_stdout":           false,
}

// Load reads configuration from STUDYSPACE_* environment variables and, when
// configFile is non-empty, a YAML file. Environment values win over the file.
// Missing and invalid keys are collected and reported together.
func Load(configFile string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (Config, error) {
	var (
		cfg     Config
		missing []string
		invalid []string
	)
	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }
	intAtLeast := func(key string, min int) int {
		value, err := toInt(v.Get(key))
		if err != nil || value < min {
			invalid = append(invalid, envName(key))
		}
		return value
	}
	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(str(key))
		if err != nil || d <= 0 {
			invalid = append(invalid, envName(key))
		}
		return d
	}
	timeOfDay := func(key string) scheduler.TimeOfDay {
		t, err := scheduler.ParseTimeOfDay(str(key))
		if err != nil {
			invalid = append(invalid, envName(key))
		}
		return t
	}

	cfg.HTTPPort = intAtLeast("http_port", 1)
	cfg.Store = strings.ToLower(str("store"))
	switch cfg.Store {
	case StoreSQLite:
		if cfg.SQLiteDSN = str("sqlite_dsn"); cfg.SQLiteDSN == "" {
			missing = append(missing, envName("sqlite_dsn"))
		}
	case StoreMemory:
	default:
		invalid = append(invalid, envName("store"))
	}
	cfg.CatalogFile = str("catalog_file")

	loc, err := time.LoadLocation(str("timezone"))
	if err != nil {
		invalid = append(invalid, envName("timezone"))
	}
	cfg.Location = loc

	cfg.MaxReservationDuration = duration("max_reservation_duration")
	cfg.DayWindowStart = timeOfDay("day_window_start")
	cfg.DayWindowEnd = timeOfDay("day_window_end")
	if !cfg.DayWindowStart.Before(cfg.DayWindowEnd) {
		invalid = append(invalid, envName("day_window_end"))
	}

	cfg.MinScore = intAtLeast("min_score", 0)
	cfg.MaxScore = intAtLeast("max_score", 1)
	if cfg.MinScore > cfg.MaxScore {
		invalid = append(invalid, envName("max_score"))
	}
	cfg.AdmissionRetries = intAtLeast("admission_retries", 0)
	cfg.SweepInterval = duration("sweep_interval")

	if cfg.RateLimitRPS = v.GetFloat64("rate_limit_rps"); cfg.RateLimitRPS < 0 {
		invalid = append(invalid, envName("rate_limit_rps"))
	}
	cfg.RateLimitBurst = intAtLeast("rate_limit_burst", 0)

	cfg.LogLevel = str("log_level")
	cfg.LogFormat = str("log_format")
	cfg.MetricsStdout = v.GetBool("metrics_stdout")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required settings are missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("settings have invalid values: %s", strings.Join(dedupe(invalid), ", "))
	}
	return cfg, nil
}

// Policy converts the configured rules into the services' policy.
func (c Config) Policy() application.Policy {
	policy := application.DefaultPolicy()
	policy.MaxDuration = c.MaxReservationDuration
	policy.DayWindow = scheduler.DayWindow{Open: c.DayWindowStart, Close: c.DayWindowEnd, Location: c.Location}
	policy.MinScore = c.MinScore
	policy.MaxScore = c.MaxScore
	policy.AdmissionRetries = c.AdmissionRetries
	return policy
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// toInt accepts the integer forms viper yields from env strings and YAML.
func toInt(raw any) (int, error) {
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != float64(int(value)) {
			return 0, errors.New("not an integer")
		}
		return int(value), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(value))
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
