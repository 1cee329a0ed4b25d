package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/pkg/redis"
	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/infrastructure"
	"stockflow/internal/service/inventory/infrastructure/adapter"
	"stockflow/internal/service/inventory/infrastructure/rule"
	"stockflow/internal/service/inventory/interfaces"
	"stockflow/internal/service/inventory/port"
	"stockflow/internal/zookeeper"
)

type closer = func(ctx context.Context) error

// channel 是按配置选出的事件通道实现
type channel struct {
	publisher  port.Publisher
	subscriber port.Subscriber // 监听 payment/delivery
	stream     port.Subscriber // 结果流，需要收到全部结果消息
}

// buildApp 是组合根：按配置创建各个适配器，再注入到应用服务和驱动适配器中
func buildApp(ctx context.Context, cfg *bootstrap.Config) (bootstrap.AppInfo, error) {
	var closers []closer
	tracer := otel.Tracer(cfg.App.ServiceName)

	topics := domain.Topics{
		PaymentStatus:    cfg.Channel.Topics.PaymentStatus,
		DeliveryStatus:   cfg.Channel.Topics.DeliveryStatus,
		InventoryUpdate:  cfg.Channel.Topics.InventoryUpdate,
		InventoryFailure: cfg.Channel.Topics.InventoryFailure,
	}
	defaults := domain.StockDefaults{Name: cfg.Stock.DefaultName, InitialQuantity: cfg.Stock.InitialQuantity}

	var redisClient *redis.Client
	if cfg.Stock.Backend == "redis" || cfg.Channel.Backend == "redis" || (cfg.Idempotency.Enabled && cfg.Idempotency.Backend == "redis") {
		var err error
		redisClient, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Infra.Redis.Addr,
			Password: cfg.Infra.Redis.Password,
			DB:       cfg.Infra.Redis.DB,
		})
		if err != nil {
			return bootstrap.AppInfo{}, err
		}
		closers = append(closers, func(context.Context) error { return redisClient.Close() })
	}

	store, storeClosers, err := newStockStore(ctx, cfg, defaults, redisClient)
	if err != nil {
		return bootstrap.AppInfo{}, err
	}
	closers = append(closers, storeClosers...)

	ch, chClosers := newChannel(cfg, redisClient)
	closers = append(closers, chClosers...)

	var guard port.IdempotencyGuard
	switch {
	case !cfg.Idempotency.Enabled:
	case cfg.Idempotency.Backend == "memory":
		// 只在单实例部署下有效
		guard = infrastructure.NewMemoryIdempotencyGuard(cfg.Idempotency.TTL)
	default:
		guard = infrastructure.NewRedisIdempotencyGuard(redisClient.GetClient(), cfg.Idempotency.TTL)
	}

	policy, err := rule.NewCELRestockPolicy(cfg.App.RestockRule)
	if err != nil {
		return bootstrap.AppInfo{}, err
	}

	recorder := infrastructure.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	engine := application.NewReservationEngine(store, ch.publisher, guard, policy, recorder, topics, tracer)
	inventoryService := application.NewInventoryService(store, ch.publisher, topics, tracer)
	if err := inventoryService.EnsureItems(ctx, cfg.Stock.SeedItems); err != nil {
		return bootstrap.AppInfo{}, err
	}
	handler := interfaces.NewInventoryHandler(inventoryService, promhttp.Handler())

	workers := []bootstrap.Worker{{
		Name: "event-listener",
		Run: func(ctx context.Context) error {
			sub, err := ch.subscriber.Subscribe(ctx, topics.PaymentStatus, topics.DeliveryStatus)
			if err != nil {
				return err
			}
			return interfaces.NewEventListener(sub, engine, topics, recorder, tracer).Run(ctx)
		},
	}}

	var hub *interfaces.OutcomeHub
	if cfg.App.OutcomeStream {
		hub = interfaces.NewOutcomeHub()
		workers = append(workers,
			bootstrap.Worker{Name: "outcome-hub", Run: hub.Run},
			bootstrap.Worker{Name: "outcome-pump", Run: func(ctx context.Context) error {
				sub, err := ch.stream.Subscribe(ctx, topics.InventoryUpdate, topics.InventoryFailure)
				if err != nil {
					return err
				}
				return hub.Pump(ctx, sub)
			}},
		)
	}

	return bootstrap.AppInfo{
		ServiceName: cfg.App.ServiceName,
		Port:        cfg.App.Port,
		Tracing:     cfg.Infra.Jaeger,
		Nacos:       cfg.Infra.Nacos,
		Metadata: map[string]string{
			"consumes":        strings.Join([]string{topics.PaymentStatus, topics.DeliveryStatus}, ","),
			"produces":        strings.Join([]string{topics.InventoryUpdate, topics.InventoryFailure}, ","),
			"stock_backend":   cfg.Stock.Backend,
			"channel_backend": cfg.Channel.Backend,
		},
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
			if hub != nil {
				hub.RegisterRoutes(appCtx.Mux)
			}
		},
		Middleware: func(next http.Handler) http.Handler {
			return recorder.InstrumentHandler(interfaces.TraceMiddleware(next))
		},
		Workers: workers,
		Closers: closers,
	}, nil
}

func newStockStore(ctx context.Context, cfg *bootstrap.Config, defaults domain.StockDefaults, redisClient *redis.Client) (port.StockStore, []closer, error) {
	var (
		store   port.StockStore
		closers []closer
	)
	switch cfg.Stock.Backend {
	case "mysql":
		db, err := infrastructure.OpenMySQL(ctx, infrastructure.MySQLOptions{
			Host:     cfg.Infra.MySQL.Host,
			Port:     cfg.Infra.MySQL.Port,
			User:     cfg.Infra.MySQL.User,
			Password: cfg.Infra.MySQL.Password,
			Database: cfg.Infra.MySQL.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, errors.Wrap(err, "get sql.DB")
		}
		closers = append(closers, func(context.Context) error { return sqlDB.Close() })
		store = infrastructure.NewGormStockStore(db, defaults)
	case "redis":
		redisStore, err := infrastructure.NewRedisStockStore(redisClient, defaults)
		if err != nil {
			return nil, nil, err
		}
		store = redisStore
	default:
		store = infrastructure.NewMemoryStockStore(defaults)
	}

	if cfg.Stock.DistributedLock {
		conn, err := zookeeper.Connect(cfg.Infra.ZooKeeper.Servers, cfg.Infra.ZooKeeper.SessionTimeout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect zookeeper")
		}
		closers = append(closers, func(context.Context) error { conn.Close(); return nil })
		store = infrastructure.NewLockedStockStore(store, zookeeper.NewLocker(conn))
	}
	return store, closers, nil
}

func newChannel(cfg *bootstrap.Config, redisClient *redis.Client) (channel, []closer) {
	switch cfg.Channel.Backend {
	case "kafka":
		publisher := adapter.NewKafkaPublisher(mq.NewWriter(cfg.Infra.Kafka.Brokers))
		// 每个实例用独立的消费组订阅结果流，保证每个实例都能收到全部结果
		streamGroup := cfg.Channel.GroupID + "-outcome-stream-" + uuid.NewString()[:8]
		return channel{
			publisher:  publisher,
			subscriber: adapter.NewKafkaSubscriber(cfg.Infra.Kafka.Brokers, cfg.Channel.GroupID),
			stream:     adapter.NewKafkaSubscriber(cfg.Infra.Kafka.Brokers, streamGroup),
		}, []closer{func(context.Context) error { return publisher.Close() }}
	case "memory":
		broker := adapter.NewMemoryBroker()
		return channel{publisher: broker, subscriber: broker, stream: broker}, nil
	default:
		client := redisClient.GetClient()
		subscriber := adapter.NewRedisSubscriber(client)
		return channel{
			publisher:  adapter.NewRedisPublisher(client),
			subscriber: subscriber,
			stream:     subscriber,
		}, nil
	}
}
