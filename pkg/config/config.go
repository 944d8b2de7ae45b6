package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Sink         SinkConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Sink.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HLX_APP_ENV" required:"true"`
	Port         string `envconfig:"HLX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HLX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HLX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HLX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HLX_DB_DSN"`
	Driver string `envconfig:"HLX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HLX_DB_HOST"`
	LegacyPort     int    `envconfig:"HLX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HLX_DB_USER"`
	LegacyPassword string `envconfig:"HLX_DB_PASSWORD"`
	LegacyName     string `envconfig:"HLX_DB_NAME"`
	LegacySSLMode  string `envconfig:"HLX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HLX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HLX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HLX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HLX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HLX_REDIS_URL"`
	Address      string        `envconfig:"HLX_REDIS_ADDR"`
	Password     string        `envconfig:"HLX_REDIS_PASSWORD"`
	DB           int           `envconfig:"HLX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HLX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HLX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HLX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HLX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HLX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HLX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HLX_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HLX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HLX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HLX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	// Topic IDs may be short names or full projects/<p>/topics/<t> resources.
	ConducesTopic   string `envconfig:"HLX_PUBSUB_CONDUCES_TOPIC" default:"logistics-conduces-v1"`
	TelemetryTopic  string `envconfig:"HLX_PUBSUB_TELEMETRY_TOPIC" default:"heuristic-telemetry-v1"`
	EnableOrdering  bool   `envconfig:"HLX_PUBSUB_ENABLE_ORDERING" default:"true"`
	DomainSub       string `envconfig:"HLX_PUBSUB_DOMAIN_SUBSCRIPTION"`
	VerifyTopics    bool   `envconfig:"HLX_PUBSUB_VERIFY_TOPICS" default:"false"`
	VerifyTopicList string `envconfig:"HLX_PUBSUB_VERIFY_TOPIC_LIST"`
}

type KafkaConfig struct {
	Brokers      string        `envconfig:"HLX_KAFKA_BROKERS"`
	ClientID     string        `envconfig:"HLX_KAFKA_CLIENT_ID" default:"hlx-outbox"`
	WriteTimeout time.Duration `envconfig:"HLX_KAFKA_WRITE_TIMEOUT" default:"10s"`
	BatchTimeout time.Duration `envconfig:"HLX_KAFKA_BATCH_TIMEOUT" default:"50ms"`
}

// BrokerList splits the comma-separated broker string.
func (k KafkaConfig) BrokerList() []string {
	parts := strings.Split(k.Brokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

type SinkConfig struct {
	Backend        string        `envconfig:"HLX_SINK_BACKEND" default:"kafka"`
	PublishTimeout time.Duration `envconfig:"HLX_SINK_PUBLISH_TIMEOUT" default:"15s"`
}

func (s SinkConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case SinkBackendPubSub, SinkBackendKafka:
		return nil
	default:
		return fmt.Errorf("unsupported sink backend %q", s.Backend)
	}
}

// Normalized returns the lower-cased backend name.
func (s SinkConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(s.Backend))
}

type OutboxConfig struct {
	BatchSize        int           `envconfig:"HLX_OUTBOX_BATCH_SIZE" default:"100"`
	FallbackInterval time.Duration `envconfig:"HLX_OUTBOX_FALLBACK_INTERVAL" default:"30s"`
	MaxAttempts      int           `envconfig:"HLX_OUTBOX_MAX_ATTEMPTS" default:"3"`
	// Embedded runs the dispatcher inside the api process so producer
	// notifications wake it directly. Exactly one dispatcher may run against
	// a given store: either embed it or deploy cmd/outbox-publisher, not both.
	Embedded bool `envconfig:"HLX_OUTBOX_EMBEDDED" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"HLX_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
