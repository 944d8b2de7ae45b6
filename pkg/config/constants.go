package config

const (
	// EnvPrefix namespaces every HeuristicLogix environment variable.
	EnvPrefix = "hlx"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "HLX_DB_DSN"
	EnvDBHost = "HLX_DB_HOST"
	EnvDBUser = "HLX_DB_USER"
	EnvDBName = "HLX_DB_NAME"

	// SinkBackendPubSub publishes via Google Cloud Pub/Sub.
	SinkBackendPubSub = "pubsub"
	// SinkBackendKafka publishes via Kafka, which is what production runs.
	SinkBackendKafka = "kafka"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
