package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the overall application configuration.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL"    default:"info"`
	RoutesFile  string `envconfig:"ROUTES_FILE"  default:"routes.json"`

	Server     ServerConfig
	Vendor     VendorConfig
	Cache      CacheConfig
	Kafka      KafkaConfig
	HTTP       HTTPConfig
	ManagerAPI ManagerAPIConfig
}

// ServerConfig holds client-facing SMPP server configuration.
type ServerConfig struct {
	Addr         string        `envconfig:"SMPP_SERVER_ADDR"          default:"0.0.0.0:2775"`
	ReadTimeout  time.Duration `envconfig:"SMPP_SERVER_READ_TIMEOUT"  default:"60s"`
	WriteTimeout time.Duration `envconfig:"SMPP_SERVER_WRITE_TIMEOUT" default:"10s"`
	SystemID     string        `envconfig:"SMPP_SERVER_SYSTEM_ID"     default:"GATEWAY"`
}

// VendorConfig holds vendor-facing SMPP connection configuration.
type VendorConfig struct {
	EnquireLink    time.Duration `envconfig:"VENDOR_ENQUIRE_LINK"    default:"30s"`
	RequestTimeout time.Duration `envconfig:"VENDOR_REQUEST_TIMEOUT" default:"10s"`
	ConnectTimeout time.Duration `envconfig:"VENDOR_CONNECT_TIMEOUT" default:"5s"`
	ReconnectDelay time.Duration `envconfig:"VENDOR_RECONNECT_DELAY" default:"2s"`
	MaxFailures    int           `envconfig:"VENDOR_MAX_FAILURES"    default:"3"`
	MaxWindowSize  uint          `envconfig:"VENDOR_MAX_WINDOW_SIZE" default:"10"`
}

// CacheConfig holds vendor availability cache configuration. The shared
// Redis store is optional; when disabled the in-memory snapshot is the only
// copy.
type CacheConfig struct {
	RefreshInterval time.Duration `envconfig:"CACHE_REFRESH_INTERVAL" default:"60s"`
	Expiry          time.Duration `envconfig:"CACHE_EXPIRY"           default:"1h"`
	UseRedis        bool          `envconfig:"CACHE_USE_REDIS"        default:"false"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"             default:"localhost:6379"`
}

// KafkaConfig holds message queue configuration.
type KafkaConfig struct {
	Brokers           []string `envconfig:"KAFKA_BROKERS"            default:"localhost:9092"`
	ClientID          string   `envconfig:"KAFKA_CLIENT_ID"          default:"smpp-gateway"`
	ConsumerGroupID   string   `envconfig:"KAFKA_CONSUMER_GROUP_ID"  default:"smpp-gateway-group"`
	Partitions        int      `envconfig:"KAFKA_PARTITIONS"         default:"3"`
	ReplicationFactor int      `envconfig:"KAFKA_REPLICATION_FACTOR" default:"1"`
}

// HTTPConfig holds the control surface configuration.
type HTTPConfig struct {
	Addr         string        `envconfig:"HTTP_ADDR"          default:"0.0.0.0:3000"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT"  default:"10s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT"  default:"60s"`
}

// ManagerAPIConfig holds the provisioning API server configuration.
type ManagerAPIConfig struct {
	Addr         string        `envconfig:"MANAGER_API_ADDR"          default:"0.0.0.0:8081"`
	ReadTimeout  time.Duration `envconfig:"MANAGER_API_READ_TIMEOUT"  default:"10s"`
	WriteTimeout time.Duration `envconfig:"MANAGER_API_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout  time.Duration `envconfig:"MANAGER_API_IDLE_TIMEOUT"  default:"60s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, skipping: %v", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
