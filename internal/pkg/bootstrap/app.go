// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stockflow/internal/pkg/nacos"
	"stockflow/internal/pkg/utils"
	"stockflow/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// Worker 是与 HTTP 服务并行运行的后台任务，ctx 取消时应尽快返回。
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	Tracing          tracing.Config
	Nacos            nacos.Config
	Metadata         map[string]string   // 注册到 Nacos 的实例元数据
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Middleware       func(http.Handler) http.Handler
	Workers          []Worker
	Closers          []func(ctx context.Context) error // 关停时后进先出执行
}

// StartService 封装了通用的启动和优雅关停逻辑，阻塞直到收到退出信号或某个 Worker 失败。
func StartService(ctx context.Context, info AppInfo) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zlog.With().Str("service", info.ServiceName).Logger()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, info.Tracing)
	if err != nil {
		return errors.Wrap(err, "initialize tracer provider")
	}

	// 2. 服务注册（可选）
	var (
		namingClient *nacos.Client
		ip           string
	)
	if info.Nacos.Enabled {
		if namingClient, err = nacos.NewNacosClient(info.Nacos); err != nil {
			return errors.Wrap(err, "initialize nacos client")
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			return errors.Wrap(err, "get outbound IP address")
		}
		if err = namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port, info.Metadata); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	var handler http.Handler = mux
	if info.Middleware != nil {
		handler = info.Middleware(mux)
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", info.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	for _, w := range info.Workers {
		g.Go(func() error {
			log.Info().Str("worker", w.Name).Msg("✅ worker started")
			err := w.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("worker", w.Name).Msg("worker stopped with error")
				return errors.Wrapf(err, "worker %s", w.Name)
			}
			log.Info().Str("worker", w.Name).Msg("🛑 worker stopped")
			return nil
		})
	}

	// 4. 阻塞直到收到退出信号或出现致命错误
	<-gctx.Done()
	log.Info().Msg("Shutting down service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 5. 按顺序执行清理操作
	// a. 从 Nacos 注销服务，停止接收新流量
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("Error deregistering from Nacos")
		}
		namingClient.Close()
	}

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}

	// c. 等待后台任务处理完在途消息
	runErr := g.Wait()

	// d. 释放外部资源
	for i := len(info.Closers) - 1; i >= 0; i-- {
		if err := info.Closers[i](shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error closing resource")
		}
	}

	// e. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	log.Info().Msg("Service gracefully shut down.")
	return runErr
}
