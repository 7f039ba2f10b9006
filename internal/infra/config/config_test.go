package config

import (
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	// Clear anything the host environment might carry.
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "SCYLLA_HOSTS", "SCYLLA_KEYSPACE",
		"SCYLLA_CONSISTENCY", "SCYLLA_TIMEOUT", "REDIS_ADDR", "REDIS_DB",
		"SESSION_TTL", "INBOX_VISIBILITY_DELAY", "REALTIME_RECONNECT_INITIAL",
		"REALTIME_RECONNECT_MAX", "PRESENCE_ONLINE_WINDOW", "S3_USE_SSL",
		"S3_PUBLIC_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "dev" || cfg.HTTPAddr != ":8080" {
		t.Errorf("env = %q addr = %q", cfg.Env, cfg.HTTPAddr)
	}
	if cfg.ScyllaKeyspace != "arrienda_messaging" {
		t.Errorf("keyspace = %q", cfg.ScyllaKeyspace)
	}
	if cfg.ScyllaConsistency != gocql.Quorum {
		t.Errorf("consistency = %v, want quorum", cfg.ScyllaConsistency)
	}
	if cfg.MessagesTopic != "chat.messages" || cfg.ConversationsTopic != "chat.conversations" {
		t.Errorf("topics = %q / %q", cfg.MessagesTopic, cfg.ConversationsTopic)
	}
	if cfg.VisibilityDelay != 1500*time.Millisecond {
		t.Errorf("visibility delay = %v, want 1.5s", cfg.VisibilityDelay)
	}
	if cfg.ReconnectInitial != time.Second || cfg.ReconnectMax != 32*time.Second {
		t.Errorf("reconnect backoff = %v..%v, want 1s..32s", cfg.ReconnectInitial, cfg.ReconnectMax)
	}
	if cfg.OnlineWindow != 2*time.Minute {
		t.Errorf("online window = %v, want 2m", cfg.OnlineWindow)
	}
	if cfg.S3PublicEndpoint != cfg.S3Endpoint {
		t.Errorf("public endpoint = %q, want fallback to %q", cfg.S3PublicEndpoint, cfg.S3Endpoint)
	}
}

func TestLoadSplitsHostLists(t *testing.T) {
	setRequired(t)
	t.Setenv("SCYLLA_HOSTS", "scylla-1, scylla-2 ,,scylla-3")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092 , kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(cfg.ScyllaHosts, "|"); got != "scylla-1|scylla-2|scylla-3" {
		t.Errorf("scylla hosts = %q", got)
	}
	if got := strings.Join(cfg.KafkaBrokers, "|"); got != "kafka-1:9092|kafka-2:9092" {
		t.Errorf("kafka brokers = %q", got)
	}
}

func TestLoadRequiredVariables(t *testing.T) {
	cases := []struct {
		name  string
		unset string
	}{
		{"mongo uri", "MONGO_URI"},
		{"kafka brokers", "KAFKA_BROKERS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.unset, "")
			if _, err := Load(); err == nil {
				t.Fatalf("expected an error without %s", tc.unset)
			}
		})
	}
}

func TestLoadRejectsNonPositiveVisibilityDelay(t *testing.T) {
	setRequired(t)
	t.Setenv("INBOX_VISIBILITY_DELAY", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a zero visibility delay")
	}

	t.Setenv("INBOX_VISIBILITY_DELAY", "-200ms")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a negative visibility delay")
	}
}

func TestLoadRejectsMalformedDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("REALTIME_RECONNECT_MAX", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

func TestLoadRejectsUnknownConsistency(t *testing.T) {
	setRequired(t)
	t.Setenv("SCYLLA_CONSISTENCY", "eventual")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unsupported consistency level")
	}
}

func TestLoadParsesBooleans(t *testing.T) {
	setRequired(t)
	t.Setenv("S3_USE_SSL", "yes")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.S3UseSSL {
		t.Error("S3_USE_SSL=yes must enable SSL")
	}

	t.Setenv("S3_USE_SSL", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unparseable boolean")
	}
}
