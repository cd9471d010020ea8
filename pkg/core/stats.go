package core

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Operation names recorded in Stats
const (
	OpPlaceOrder  = "placeOrder"
	OpCancelOrder = "cancelOrder"
	OpValidate    = "validateOrder"
	OpMatch       = "matchOrders"
	OpSettle      = "settleTrade"
)

// latency histograms cover 1µs to 1 minute with 3 significant digits
const (
	minLatencyMicros = 1
	maxLatencyMicros = int64(time.Minute / time.Microsecond)
	latencySigFigs   = 3
)

// OperationStats summarizes the latency of one engine operation in microseconds
type OperationStats struct {
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
	Failures  int64  `json:"failures"`
	P50       int64  `json:"p50Micros"`
	P90       int64  `json:"p90Micros"`
	P99       int64  `json:"p99Micros"`
	Max       int64  `json:"maxMicros"`
}

// BatchStats summarizes settlement batches. Every matching pass that produced
// at least one trade is one batch.
type BatchStats struct {
	Total                 int64         `json:"totalBatches"`
	Successful            int64         `json:"successfulBatches"`
	Failed                int64         `json:"failedBatches"`
	AverageSize           float64       `json:"averageBatchSize"`
	AverageProcessingTime time.Duration `json:"averageProcessingTime"`
}

// Stats is a point-in-time view of engine bookkeeping
type Stats struct {
	Operations []OperationStats `json:"operations"`
	Batches    BatchStats       `json:"batches"`
	Orders     int              `json:"orders"`
	Runes      int              `json:"runes"`
}

// Operation returns the stats of op, or a zero value with the name set
func (s Stats) Operation(op string) OperationStats {
	for _, o := range s.Operations {
		if o.Operation == op {
			return o
		}
	}
	return OperationStats{Operation: op}
}

type opRecorder struct {
	hist     *hdrhistogram.Histogram
	count    int64
	failures int64
}

type statsRecorder struct {
	mu  sync.Mutex
	ops map[string]*opRecorder

	batches    int64
	successful int64
	failed     int64
	trades     int64
	batchTime  time.Duration
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{ops: make(map[string]*opRecorder)}
}

func (r *statsRecorder) record(op string, d time.Duration, success bool) {
	micros := d.Microseconds()
	if micros < minLatencyMicros {
		micros = minLatencyMicros
	}
	if micros > maxLatencyMicros {
		micros = maxLatencyMicros
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.ops[op]
	if !ok {
		rec = &opRecorder{hist: hdrhistogram.New(minLatencyMicros, maxLatencyMicros, latencySigFigs)}
		r.ops[op] = rec
	}
	rec.count++
	if !success {
		rec.failures++
	}
	_ = rec.hist.RecordValue(micros)
}

func (r *statsRecorder) recordBatch(size int, d time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches++
	if success {
		r.successful++
	} else {
		r.failed++
	}
	r.trades += int64(size)
	r.batchTime += d
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Stats{Operations: make([]OperationStats, 0, len(r.ops))}
	for name, rec := range r.ops {
		out.Operations = append(out.Operations, OperationStats{
			Operation: name,
			Count:     rec.count,
			Failures:  rec.failures,
			P50:       rec.hist.ValueAtQuantile(50),
			P90:       rec.hist.ValueAtQuantile(90),
			P99:       rec.hist.ValueAtQuantile(99),
			Max:       rec.hist.Max(),
		})
	}
	sort.Slice(out.Operations, func(i, j int) bool {
		return out.Operations[i].Operation < out.Operations[j].Operation
	})

	out.Batches = BatchStats{
		Total:      r.batches,
		Successful: r.successful,
		Failed:     r.failed,
	}
	if r.batches > 0 {
		out.Batches.AverageSize = float64(r.trades) / float64(r.batches)
		out.Batches.AverageProcessingTime = r.batchTime / time.Duration(r.batches)
	}
	return out
}
