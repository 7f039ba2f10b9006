package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// Config aggregates application configuration loaded from environment
// variables.
type Config struct {
	Env      string
	HTTPAddr string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaConsistency gocql.Consistency
	ScyllaTimeout     time.Duration
	ScyllaReplication int

	MongoURI string
	MongoDB  string

	KafkaBrokers       []string
	KafkaGroupID       string
	MessagesTopic      string
	ConversationsTopic string
	NotificationsTopic string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OnlineWindow  time.Duration

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	SessionTTL       time.Duration
	VisibilityDelay  time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		ScyllaHosts:        splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace:     strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "arrienda_messaging")),
		ScyllaUsername:     strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword:     strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		ScyllaReplication:  parseIntWithDefault(strings.TrimSpace(os.Getenv("SCYLLA_REPLICATION_FACTOR")), 1),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "arrienda"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "arrienda-inbox"),
		MessagesTopic:      getEnv("KAFKA_TOPIC_MESSAGES", "chat.messages"),
		ConversationsTopic: getEnv("KAFKA_TOPIC_CONVERSATIONS", "chat.conversations"),
		NotificationsTopic: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            parseIntWithDefault(strings.TrimSpace(os.Getenv("REDIS_DB")), 0),
		S3Endpoint:         getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3PublicEndpoint:   getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "arrienda-attachments"),
	}
	if cfg.ScyllaKeyspace == "" {
		return Config{}, fmt.Errorf("SCYLLA_KEYSPACE is required")
	}
	if len(cfg.ScyllaHosts) == 0 {
		return Config{}, fmt.Errorf("SCYLLA_HOSTS is required")
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required")
	}

	var err error
	if cfg.ScyllaTimeout, err = parseDuration("SCYLLA_TIMEOUT", "5s"); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaConsistency, err = parseConsistency(getEnv("SCYLLA_CONSISTENCY", "quorum")); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaReplication < 1 {
		cfg.ScyllaReplication = 1
	}
	if cfg.OnlineWindow, err = parseDuration("PRESENCE_ONLINE_WINDOW", "2m"); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.VisibilityDelay, err = parseDuration("INBOX_VISIBILITY_DELAY", "1500ms"); err != nil {
		return Config{}, err
	}
	if cfg.VisibilityDelay <= 0 {
		return Config{}, fmt.Errorf("INBOX_VISIBILITY_DELAY must be positive")
	}
	if cfg.ReconnectInitial, err = parseDuration("REALTIME_RECONNECT_INITIAL", "1s"); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectMax, err = parseDuration("REALTIME_RECONNECT_MAX", "32s"); err != nil {
		return Config{}, err
	}

	useSSL, err := parseBool("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return dur, nil
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(raw) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum", "localquorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}
