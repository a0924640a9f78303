package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.DBDriver != DriverMemory || cfg.Timezone != "Africa/Lagos" {
		t.Fatalf("defaults %+v", cfg)
	}
	if cfg.AccessTTL != 15*time.Minute || cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("ttls %v %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.Kafka.Enabled || cfg.Kafka.Topic != "levy.transactions" {
		t.Fatalf("kafka %+v", cfg.Kafka)
	}
	if cfg.Cloudinary.Enabled() || cfg.Messaging.Enabled() {
		t.Fatal("optional integrations enabled without credentials")
	}
	if cfg.Location.String() != "Africa/Lagos" {
		t.Fatalf("location %v", cfg.Location)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "mongo")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MESSAGING_API_URL", "https://sms.example/send")
	t.Setenv("MESSAGING_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("access ttl %v", cfg.AccessTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors %q", cfg.CORSOrigins)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("kafka %+v", cfg.Kafka)
	}
	if !cfg.Messaging.Enabled() || cfg.Messaging.Sender != "LEVY" {
		t.Fatalf("messaging %+v", cfg.Messaging)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]map[string]string{
		"missing secret": {"JWT_SECRET": ""},
		"bad driver":     {"JWT_SECRET": "x", "DB_DRIVER": "sqlite"},
		"bad ttl":        {"JWT_SECRET": "x", "ACCESS_TOKEN_TTL": "soon"},
		"bad timezone":   {"JWT_SECRET": "x", "TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOpenMemoryStore(t *testing.T) {
	cfg := &Config{DBDriver: DriverMemory}
	if err := cfg.OpenStore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cfg.Store == nil {
		t.Fatal("store not set")
	}
	if rdb := ConnectRedis(context.Background(), ""); rdb != nil {
		t.Fatal("redis client without address")
	}
}
