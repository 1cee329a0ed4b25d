// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/nacos"
	"stockflow/internal/tracing"
)

const defaultConfigPath = "config/inventory-service.yaml"

// Config 是 inventory-service 的完整配置
type Config struct {
	App         AppConfig         `yaml:"app"`
	Stock       StockConfig       `yaml:"stock"`
	Channel     ChannelConfig     `yaml:"channel"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Infra       InfraConfig       `yaml:"infra"`
	Log         logger.Config     `yaml:"log"`
}

type AppConfig struct {
	ServiceName   string `yaml:"service_name"`
	Port          int    `yaml:"port"`
	RestockRule   string `yaml:"restock_rule"` // CEL 表达式，决定哪些配送结果需要回补库存
	OutcomeStream bool   `yaml:"outcome_stream"`
}

type StockConfig struct {
	Backend         string  `yaml:"backend"` // memory | mysql | redis
	InitialQuantity int64   `yaml:"initial_quantity"`
	DefaultName     string  `yaml:"default_name"`
	DistributedLock bool    `yaml:"distributed_lock"`
	SeedItems       []int64 `yaml:"seed_items"` // 启动时按默认值创建的商品
}

type ChannelConfig struct {
	Backend string       `yaml:"backend"` // memory | redis | kafka
	GroupID string       `yaml:"group_id"`
	Topics  TopicsConfig `yaml:"topics"`
}

type TopicsConfig struct {
	PaymentStatus    string `yaml:"payment_status"`
	DeliveryStatus   string `yaml:"delivery_status"`
	InventoryUpdate  string `yaml:"inventory_update"`
	InventoryFailure string `yaml:"inventory_failure"`
}

type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // redis | memory
	TTL     time.Duration `yaml:"ttl"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
	Jaeger    tracing.Config  `yaml:"jaeger"`
	Nacos     nacos.Config    `yaml:"nacos"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// DefaultConfig 返回本地开发可直接运行的默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			ServiceName: "inventory-service",
			Port:        5002,
			RestockRule: `status == "FAILED"`,
		},
		Stock: StockConfig{
			Backend:         "memory",
			InitialQuantity: 100,
			DefaultName:     "token",
		},
		Channel: ChannelConfig{
			Backend: "redis",
			GroupID: "inventory-service",
			Topics: TopicsConfig{
				PaymentStatus:    "payment_status",
				DeliveryStatus:   "delivery_status",
				InventoryUpdate:  "inventory_update",
				InventoryFailure: "inventory_failure",
			},
		},
		Idempotency: IdempotencyConfig{Backend: "redis", TTL: 24 * time.Hour},
		Infra: InfraConfig{
			MySQL:     MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "inventory"},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}},
			ZooKeeper: ZooKeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
			Jaeger:    tracing.Config{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			Nacos:     nacos.Config{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Log: logger.Config{Level: "info"},
	}
}

// LoadConfig 读取 YAML 配置文件并叠加环境变量。path 为空时使用 CONFIG_PATH 或默认路径，
// 默认路径下没有文件时只使用默认值。
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = getEnv("CONFIG_PATH", defaultConfigPath)
		_, explicit = os.LookupEnv("CONFIG_PATH")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var err error
	cfg.Stock.Backend = getEnv("STOCK_BACKEND", cfg.Stock.Backend)
	cfg.Channel.Backend = getEnv("CHANNEL_BACKEND", cfg.Channel.Backend)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	cfg.Infra.MySQL.Host = getEnv("MYSQL_HOST", cfg.Infra.MySQL.Host)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_SERVERS"); ok {
		cfg.Infra.ZooKeeper.Servers = splitList(v)
	}
	if v, ok := os.LookupEnv("STOCK_SEED_ITEMS"); ok {
		cfg.Stock.SeedItems = cfg.Stock.SeedItems[:0]
		for _, part := range splitList(v) {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid STOCK_SEED_ITEMS entry %q", part)
			}
			cfg.Stock.SeedItems = append(cfg.Stock.SeedItems, id)
		}
	}
	if cfg.App.Port, err = getEnvInt("HTTP_PORT", cfg.App.Port); err != nil {
		return err
	}
	if cfg.Infra.MySQL.Port, err = getEnvInt("MYSQL_PORT", cfg.Infra.MySQL.Port); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("NACOS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid NACOS_ENABLED %q", v)
		}
		cfg.Infra.Nacos.Enabled = enabled
	}
	return nil
}

// Validate 在启动前拒绝无法运行的配置组合
func (c *Config) Validate() error {
	if c.App.ServiceName == "" {
		return errors.New("app.service_name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("app.port %d out of range", c.App.Port)
	}
	switch c.Stock.Backend {
	case "memory", "mysql", "redis":
	default:
		return errors.Errorf("unknown stock.backend %q", c.Stock.Backend)
	}
	if c.Stock.InitialQuantity < 0 {
		return errors.Errorf("stock.initial_quantity must not be negative, got %d", c.Stock.InitialQuantity)
	}
	for _, id := range c.Stock.SeedItems {
		if id <= 0 {
			return errors.Errorf("stock.seed_items contains invalid item id %d", id)
		}
	}
	switch c.Channel.Backend {
	case "memory", "redis":
	case "kafka":
		if len(c.Infra.Kafka.Brokers) == 0 {
			return errors.New("infra.kafka.brokers is required for the kafka channel")
		}
		if c.Channel.GroupID == "" {
			return errors.New("channel.group_id is required for the kafka channel")
		}
	default:
		return errors.Errorf("unknown channel.backend %q", c.Channel.Backend)
	}
	t := c.Channel.Topics
	if t.PaymentStatus == "" || t.DeliveryStatus == "" || t.InventoryUpdate == "" || t.InventoryFailure == "" {
		return errors.New("channel.topics must name all four topics")
	}
	if c.Idempotency.Enabled {
		if c.Idempotency.TTL <= 0 {
			return errors.New("idempotency.ttl must be positive when idempotency is enabled")
		}
		if c.Idempotency.Backend != "redis" && c.Idempotency.Backend != "memory" {
			return errors.Errorf("unknown idempotency.backend %q", c.Idempotency.Backend)
		}
	}
	if c.Stock.DistributedLock && len(c.Infra.ZooKeeper.Servers) == 0 {
		return errors.New("infra.zookeeper.servers is required for stock.distributed_lock")
	}
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
