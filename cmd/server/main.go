package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/erain9/runebook/config"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/db/queue"
	"github.com/erain9/runebook/pkg/httpapi"
	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/messaging"
	"github.com/erain9/runebook/pkg/messaging/kafka"
	"github.com/erain9/runebook/pkg/otel"
	"github.com/erain9/runebook/pkg/pricefeed"
	"github.com/erain9/runebook/pkg/rpc"
	"github.com/erain9/runebook/pkg/server"
)

const version = "0.1.0"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
	})
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := otel.Init(otel.Config{
		ServiceName:      "runebook",
		ServiceVersion:   version,
		Endpoint:         cfg.OTel.Endpoint,
		CollectorEnabled: cfg.OTel.Enabled,
		RuntimeMetrics:   true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer cleanup()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start")
	}
	if err := a.start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start servers")
	}

	<-ctx.Done()
	logger.Info().Msg("Received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx)
	logger.Info().Msg("Servers shutdown complete")
}

// app owns everything main wires together
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	engine     *core.Engine
	hub        *httpapi.Hub
	grpcServer *grpc.Server
	httpServer *http.Server

	grpcLis net.Listener
	httpLis net.Listener

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.FromContext(ctx)}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create zap logger: %w", err)
	}
	a.closers = append(a.closers, func() error {
		_ = zlog.Sync()
		return nil
	})

	store, err := server.OpenOrderStore(ctx, server.StoreOptions{
		Backend:       cfg.Store.Backend,
		RedisAddr:     cfg.Store.Redis.Addr,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
		RedisPrefix:   cfg.Store.Redis.Prefix,
	}, zlog)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)

	var node *rpc.Client
	if cfg.Node.URL != "" {
		node, err = rpc.NewClient(rpc.Config{
			URL:               cfg.Node.URL,
			User:              cfg.Node.User,
			Password:          cfg.Node.Password,
			Timeout:           cfg.Node.Timeout,
			MaxRetries:        cfg.Node.MaxRetries,
			RequestsPerSecond: cfg.Node.RequestsPerSecond,
		}, a.logger)
		if err != nil {
			return err
		}
	} else {
		a.logger.Warn().Msg("No node configured: addresses are only checked for presence")
	}

	feed, err := a.priceFeed(node)
	if err != nil {
		return err
	}

	ledger, err := a.ledger(ctx, node)
	if err != nil {
		return err
	}

	a.hub = httpapi.NewHub()
	go a.hub.Run(ctx)
	senders := messaging.MultiSender{a.hub}
	if cfg.Kafka.Enabled {
		sender, err := kafka.NewKafkaMessageSender(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sender.Close)
		senders = append(senders, sender)
		a.logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", sender.Topic()).Msg("Publishing engine events to Kafka")

		if cfg.Server.LogLevel == "debug" {
			consumer, err := kafka.SetupConsumer(ctx, a.logger, cfg.Kafka.Brokers, cfg.Kafka.EventTopic, cfg.Kafka.ConsumerGroup)
			if err == nil {
				a.closers = append(a.closers, consumer.Close)
			}
		}
	}

	engineCfg := core.EngineConfig{
		Policy:     policy,
		Store:      store,
		PriceFeed:  feed,
		Settlement: core.NewLedgerDispatcher(ledger),
		Sender:     senders,
	}
	if node != nil {
		engineCfg.Addresses = node
	}
	a.engine, err = core.NewEngine(engineCfg)
	if err != nil {
		return err
	}

	a.grpcServer = server.NewGRPCServer(a.engine)
	a.httpServer = &http.Server{
		Handler: httpapi.NewRouter(a.engine, a.hub, httpapi.Config{
			JWTSecret:   cfg.Auth.JWTSecret,
			RateLimit:   cfg.HTTP.RateLimit,
			RateBurst:   cfg.HTTP.RateBurst,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// priceFeed chains the HTTP price service and the node, in that order
func (a *app) priceFeed(node *rpc.Client) (core.PriceFeed, error) {
	var chain pricefeed.Chain
	if a.cfg.PriceFeed.URL != "" {
		feed, err := pricefeed.NewHTTPFeed(pricefeed.Config{
			BaseURL:  a.cfg.PriceFeed.URL,
			CacheTTL: a.cfg.PriceFeed.CacheTTL,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, feed.Close)
		chain = append(chain, feed)
	}
	if node != nil {
		chain = append(chain, node)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// ledger picks how trades are settled: through the transfer queue, straight
// against the node, or, with neither configured, a logging stand-in.
func (a *app) ledger(ctx context.Context, node *rpc.Client) (core.SettlementLedger, error) {
	cfg := a.cfg
	if cfg.Kafka.Enabled && cfg.Kafka.SettleViaQueue {
		producer, err := queue.NewTransferProducer(cfg.Kafka.Brokers, cfg.Kafka.TransferTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)

		if node != nil {
			worker, err := queue.NewTransferWorker(cfg.Kafka.Brokers, cfg.Kafka.TransferTopic, node, a.logger)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, worker.Close)
			go func() {
				if err := worker.Run(ctx); err != nil {
					a.logger.Error().Err(err).Msg("Transfer worker stopped")
				}
			}()
		} else {
			a.logger.Warn().Str("topic", cfg.Kafka.TransferTopic).
				Msg("No node configured: transfers are queued for an external worker")
		}
		return producer, nil
	}
	if node != nil {
		return node, nil
	}
	a.logger.Warn().Msg("No node configured: trades settle against a logging ledger")
	return devLedger{logger: a.logger}, nil
}

func (a *app) start() error {
	var err error
	a.grpcLis, err = net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.GRPCAddr, err)
	}
	a.httpLis, err = net.Listen("tcp", a.cfg.Server.HTTPAddr)
	if err != nil {
		_ = a.grpcLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.HTTPAddr, err)
	}

	go func() {
		a.logger.Info().Str("addr", a.grpcLis.Addr().String()).Msg("Starting gRPC server")
		if err := a.grpcServer.Serve(a.grpcLis); err != nil {
			a.logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()
	go func() {
		a.logger.Info().Str("addr", a.httpLis.Addr().String()).Msg("Starting HTTP server")
		if err := a.httpServer.Serve(a.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
	return nil
}

func (a *app) shutdown(ctx context.Context) {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}

// devLedger accepts every transfer without moving anything
type devLedger struct {
	logger zerolog.Logger
}

func (l devLedger) Transfer(_ context.Context, from, to, runeID string, amount decimal.Decimal) (string, error) {
	ref := "dev-" + uuid.NewString()
	l.logger.Info().
		Str("from", from).
		Str("to", to).
		Str("rune_id", runeID).
		Str("amount", amount.String()).
		Str("tx_ref", ref).
		Msg("Simulated transfer")
	return ref, nil
}
