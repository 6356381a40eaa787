// Package config loads settings from an optional .env file, the environment
// and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyHTTPAddr            = "http_addr"
	KeyDatabaseDriver      = "database_driver"
	KeyDatabaseURL         = "database_url"
	KeyPostgresHost        = "postgres_host"
	KeyPostgresPort        = "postgres_port"
	KeyPostgresUser        = "postgres_user"
	KeyPostgresPassword    = "postgres_password"
	KeyPostgresDB          = "postgres_db"
	KeySQLitePath          = "sqlite_path"
	KeyJWTSecret           = "jwt_secret"
	KeyAllowedOrigins      = "allowed_origins"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
	KeySnapshotInterval    = "snapshot_interval"
	KeyLeaderboardInterval = "leaderboard_interval"
	KeySubscriberBuffer    = "subscriber_buffer"
	KeyReactionRetention   = "reaction_retention"
	KeyReactionWindow      = "reaction_window"
	KeyReactionRate        = "reaction_rate"
	KeyReactionBurst       = "reaction_burst"
	KeyVoteRetryMax        = "vote_retry_max"
	KeyVoteRetryBase       = "vote_retry_base"
	KeyCorrectAnswerPoints = "correct_answer_points"
	KeyLeaderboardSize     = "leaderboard_size"
	KeyShutdownTimeout     = "shutdown_timeout"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr string

	DatabaseDriver   string
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	SQLitePath       string

	JWTSecret      string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	SnapshotInterval    time.Duration
	LeaderboardInterval time.Duration
	SubscriberBuffer    int

	ReactionRetention time.Duration
	ReactionWindow    int
	ReactionRate      float64
	ReactionBurst     int

	VoteRetryMax        uint64
	VoteRetryBase       time.Duration
	CorrectAnswerPoints int64
	LeaderboardSize     int

	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyDatabaseDriver, DriverPostgres)
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyPostgresHost, "localhost")
	v.SetDefault(KeyPostgresPort, "5432")
	v.SetDefault(KeyPostgresUser, "")
	v.SetDefault(KeyPostgresPassword, "")
	v.SetDefault(KeyPostgresDB, "")
	v.SetDefault(KeySQLitePath, "livepoll.db")
	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyAllowedOrigins, "*")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeySnapshotInterval, 500*time.Millisecond)
	v.SetDefault(KeyLeaderboardInterval, time.Second)
	v.SetDefault(KeySubscriberBuffer, 1)
	v.SetDefault(KeyReactionRetention, 2*time.Minute)
	v.SetDefault(KeyReactionWindow, 512)
	v.SetDefault(KeyReactionRate, 5.0)
	v.SetDefault(KeyReactionBurst, 10)
	v.SetDefault(KeyVoteRetryMax, 5)
	v.SetDefault(KeyVoteRetryBase, 10*time.Millisecond)
	v.SetDefault(KeyCorrectAnswerPoints, 100)
	v.SetDefault(KeyLeaderboardSize, 50)
	v.SetDefault(KeyShutdownTimeout, 30*time.Second)
}

// RegisterFlags declares the flags a command may expose. Flag names use
// dashes; they map to the snake case keys above.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(flagName(KeyHTTPAddr), "", "address the HTTP server listens on")
	flags.String(flagName(KeyDatabaseDriver), "", "storage driver: postgres or sqlite")
	flags.String(flagName(KeyDatabaseURL), "", "postgres connection URL, overrides the POSTGRES_* settings")
	flags.String(flagName(KeySQLitePath), "", "sqlite database file")
	flags.String(flagName(KeyLogLevel), "", "log level")
	flags.String(flagName(KeyLogFormat), "", "log format: json or console")
}

// RegisterDatabaseFlags declares the connection flags used by the batch
// commands.
func RegisterDatabaseFlags(flags *pflag.FlagSet) {
	flags.String(flagName(KeyDatabaseDriver), "", "storage driver: postgres or sqlite")
	flags.String(flagName(KeyDatabaseURL), "", "postgres connection URL")
	flags.String(flagName(KeyPostgresHost), "", "database host")
	flags.String(flagName(KeyPostgresPort), "", "database port")
	flags.String(flagName(KeyPostgresUser), "", "database user")
	flags.String(flagName(KeyPostgresPassword), "", "database password")
	flags.String(flagName(KeyPostgresDB), "", "database name")
	flags.String(flagName(KeySQLitePath), "", "sqlite database file")
	flags.String(flagName(KeyLogLevel), "", "log level")
	flags.String(flagName(KeyLogFormat), "", "log format: json or console")
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Load reads .env files (a missing file is fine), the environment and the
// flags that were set explicitly.
func Load(flags *pflag.FlagSet, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	cfg := Config{
		HTTPAddr:            v.GetString(KeyHTTPAddr),
		DatabaseDriver:      strings.ToLower(v.GetString(KeyDatabaseDriver)),
		DatabaseURL:         v.GetString(KeyDatabaseURL),
		PostgresHost:        v.GetString(KeyPostgresHost),
		PostgresPort:        v.GetString(KeyPostgresPort),
		PostgresUser:        v.GetString(KeyPostgresUser),
		PostgresPassword:    v.GetString(KeyPostgresPassword),
		PostgresDB:          v.GetString(KeyPostgresDB),
		SQLitePath:          v.GetString(KeySQLitePath),
		JWTSecret:           v.GetString(KeyJWTSecret),
		AllowedOrigins:      splitList(v.GetString(KeyAllowedOrigins)),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFormat:           v.GetString(KeyLogFormat),
		SnapshotInterval:    v.GetDuration(KeySnapshotInterval),
		LeaderboardInterval: v.GetDuration(KeyLeaderboardInterval),
		SubscriberBuffer:    v.GetInt(KeySubscriberBuffer),
		ReactionRetention:   v.GetDuration(KeyReactionRetention),
		ReactionWindow:      v.GetInt(KeyReactionWindow),
		ReactionRate:        v.GetFloat64(KeyReactionRate),
		ReactionBurst:       v.GetInt(KeyReactionBurst),
		VoteRetryMax:        v.GetUint64(KeyVoteRetryMax),
		VoteRetryBase:       v.GetDuration(KeyVoteRetryBase),
		CorrectAnswerPoints: v.GetInt64(KeyCorrectAnswerPoints),
		LeaderboardSize:     v.GetInt(KeyLeaderboardSize),
		ShutdownTimeout:     v.GetDuration(KeyShutdownTimeout),
	}
	return cfg, nil
}

// Validate checks the settings a server needs.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresDB == "") {
			return errors.New("postgres requires database_url or postgres_host and postgres_db")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
