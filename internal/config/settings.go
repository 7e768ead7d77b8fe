package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendDDB    = "ddb"
)

// Settings is the process configuration, read from the environment.
// RulesBackend and AuditBackend default to the state backend when empty.
type Settings struct {
	Port int `envconfig:"PORT" default:"8080"`

	StateBackend string `envconfig:"STATE_BACKEND" default:"memory"`
	RulesBackend string `envconfig:"RULES_BACKEND"`
	AuditBackend string `envconfig:"AUDIT_BACKEND"`

	RulesFile     string        `envconfig:"RULES_FILE"`
	RulesWatch    bool          `envconfig:"RULES_WATCH" default:"true"`
	RulesCacheTTL time.Duration `envconfig:"RULES_CACHE_TTL" default:"30s"`

	DDBEndpoint string `envconfig:"DDB_ENDPOINT"`
	DDBTable    string `envconfig:"DDB_TABLE" default:"notigate"`
	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`

	RedisHost  string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort  string `envconfig:"REDIS_PORT" default:"6379"`
	RedisUser  string `envconfig:"REDIS_USER"`
	RedisPass  string `envconfig:"REDIS_PASS"`
	RedisSSL   bool   `envconfig:"REDIS_SSL" default:"false"`
	RedisDBNum int    `envconfig:"REDIS_DB_NUM" default:"0"`

	DedupeSweepInterval time.Duration `envconfig:"DEDUPE_SWEEP_INTERVAL" default:"10m"`

	AdvisorEnabled   bool          `envconfig:"ADVISOR_ENABLED" default:"false"`
	AdvisorTimeout   time.Duration `envconfig:"ADVISOR_TIMEOUT" default:"20ms"`
	AdvisorRulesFile string        `envconfig:"ADVISOR_RULES_FILE"`

	DecisionTopicARN string `envconfig:"DECISION_TOPIC_ARN"`
	SNSEndpoint      string `envconfig:"SNS_ENDPOINT"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"50"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

// Load reads ENV_FILE (default .env) if present, then the environment.
func Load() (Settings, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}
	return FromEnv()
}

// FromEnv reads Settings from the environment only.
func FromEnv() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) RulesBackendOrDefault() string { return orDefault(s.RulesBackend, s.StateBackend) }
func (s Settings) AuditBackendOrDefault() string { return orDefault(s.AuditBackend, s.StateBackend) }

// ConfigureLogging applies LogLevel and LogJSON to the standard logrus logger.
func (s Settings) ConfigureLogging() {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", s.LogLevel)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if s.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
