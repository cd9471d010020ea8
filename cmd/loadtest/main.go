package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/erain9/runebook/pkg/api"
)

func main() {
	grpcAddr := flag.String("grpc-addr", "localhost:50051", "gRPC server address")
	runeID := flag.String("rune", "840000:1", "Rune to trade")
	workers := flag.Int("workers", 100, "Concurrent workers")
	ordersPerWorker := flag.Int("orders", 100, "Orders placed by each worker")
	rps := flag.Int("rps", 500, "Maximum requests per second across all workers")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()
	client := api.NewRuneBookClient(conn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	limiter := rate.NewLimiter(rate.Limit(*rps), *rps)
	latencies := hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
	var (
		wg       sync.WaitGroup
		histMu   sync.Mutex
		failures atomic.Int64
		trades   atomic.Int64
		firstErr atomic.Value
	)

	start := time.Now()
	log.Info().Int("workers", *workers).Int("orders_per_worker", *ordersPerWorker).Msg("Starting load test")

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for j := 0; j < *ordersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req := randomOrder(r, *runeID, workerID)
				began := time.Now()
				resp, err := client.PlaceOrder(ctx, req)
				elapsed := time.Since(began)

				histMu.Lock()
				_ = latencies.RecordValue(elapsed.Microseconds())
				histMu.Unlock()

				if err != nil {
					failures.Add(1)
					firstErr.CompareAndSwap(nil, fmt.Sprintf("%s: %s", status.Code(err), status.Convert(err).Message()))
					continue
				}
				trades.Add(int64(len(resp.Trades)))
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	total := latencies.TotalCount()

	log.Info().
		Dur("duration", duration).
		Int64("orders", total).
		Int64("failures", failures.Load()).
		Int64("trades", trades.Load()).
		Float64("orders_per_sec", float64(total)/duration.Seconds()).
		Int64("p50_us", latencies.ValueAtQuantile(50)).
		Int64("p99_us", latencies.ValueAtQuantile(99)).
		Int64("max_us", latencies.Max()).
		Msg("Load test completed")

	statsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stats, err := client.GetStats(statsCtx, &api.GetStatsRequest{}); err == nil {
		log.Info().
			Int64("orders", stats.Orders).
			Int64("runes", stats.Runes).
			Int64("batches", stats.TotalBatches).
			Float64("avg_batch_ms", stats.AverageProcessingMillis).
			Msg("Engine stats")
	}

	if msg, ok := firstErr.Load().(string); ok {
		log.Error().Str("first_error", msg).Msg("Errors encountered")
		cancel()
		os.Exit(1)
	}
}

// randomOrder quotes close to 1000 so buys and sells cross often and stay
// inside the default deviation band
func randomOrder(r *rand.Rand, runeID string, workerID int) *api.PlaceOrderRequest {
	side := "buy"
	if r.Intn(2) == 0 {
		side = "sell"
	}
	return &api.PlaceOrderRequest{
		RuneID:  runeID,
		Side:    side,
		Amount:  fmt.Sprint(1000 * (1 + r.Intn(5))),
		Price:   fmt.Sprint(995 + r.Intn(11)),
		Address: fmt.Sprintf("bc1qloadtest%s%04d", side, workerID),
	}
}
