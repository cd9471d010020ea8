package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erain9/runebook/pkg/core"
)

const (
	// DefaultTopic carries rune transfer requests
	DefaultTopic = "rune-transfers"
	maxRetry     = 5
)

// newSyncProducer is swapped out in tests
var newSyncProducer = sarama.NewSyncProducer

// TransferRequest asks a settlement worker to move runes between addresses
type TransferRequest struct {
	FromAddress string
	ToAddress   string
	RuneID      string
	Amount      decimal.Decimal
	RequestedAt time.Time
}

// TransferProducer is a core.SettlementLedger that enqueues transfers on a
// Kafka topic instead of executing them. The tx reference it returns is the
// message position, <topic>/<partition>/<offset>.
type TransferProducer struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewTransferProducer connects a producer to brokers
func NewTransferProducer(brokers []string, topic string) (*TransferProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &TransferProducer{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}, nil
}

// Transfer implements core.SettlementLedger
func (p *TransferProducer) Transfer(ctx context.Context, fromAddress, toAddress, runeID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload, err := EncodeTransfer(TransferRequest{
		FromAddress: fromAddress,
		ToAddress:   toAddress,
		RuneID:      runeID,
		Amount:      amount,
		RequestedAt: p.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(runeID),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send transfer to Kafka: %w", err)
	}
	return fmt.Sprintf("%s/%d/%d", p.topic, partition, offset), nil
}

// Close closes the underlying producer
func (p *TransferProducer) Close() error {
	return p.producer.Close()
}

// EncodeTransfer serializes a request as a protobuf Struct
func EncodeTransfer(req TransferRequest) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"from_address": req.FromAddress,
		"to_address":   req.ToAddress,
		"rune_id":      req.RuneID,
		"amount":       req.Amount.String(),
		"requested_at": req.RequestedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer message: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer message: %w", err)
	}
	return data, nil
}

// DecodeTransfer is the inverse of EncodeTransfer
func DecodeTransfer(data []byte) (TransferRequest, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return TransferRequest{}, fmt.Errorf("failed to unmarshal transfer message: %w", err)
	}
	fields := s.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	amount, err := decimal.NewFromString(str("amount"))
	if err != nil {
		return TransferRequest{}, fmt.Errorf("invalid transfer amount %q: %w", str("amount"), err)
	}
	req := TransferRequest{
		FromAddress: str("from_address"),
		ToAddress:   str("to_address"),
		RuneID:      str("rune_id"),
		Amount:      amount,
	}
	if ts := str("requested_at"); ts != "" {
		if req.RequestedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return TransferRequest{}, fmt.Errorf("invalid transfer timestamp %q: %w", ts, err)
		}
	}
	if req.FromAddress == "" || req.ToAddress == "" || req.RuneID == "" {
		return TransferRequest{}, fmt.Errorf("incomplete transfer message")
	}
	return req, nil
}

// TransferWorker drains a transfer topic and executes each request against a
// ledger, typically the rune node.
type TransferWorker struct {
	consumer sarama.Consumer
	topic    string
	ledger   core.SettlementLedger
	logger   zerolog.Logger
	done     chan struct{}
}

// NewTransferWorker connects a consumer to brokers
func NewTransferWorker(brokers []string, topic string, ledger core.SettlementLedger, logger zerolog.Logger) (*TransferWorker, error) {
	if ledger == nil {
		return nil, fmt.Errorf("a ledger is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return newTransferWorker(consumer, topic, ledger, logger), nil
}

func newTransferWorker(consumer sarama.Consumer, topic string, ledger core.SettlementLedger, logger zerolog.Logger) *TransferWorker {
	return &TransferWorker{
		consumer: consumer,
		topic:    topic,
		ledger:   ledger,
		logger:   logger.With().Str("component", "transfer-worker").Str("topic", topic).Logger(),
		done:     make(chan struct{}),
	}
}

// Run consumes partition 0 from the newest offset until ctx is done or the
// worker is closed. Failed transfers are logged and skipped.
func (w *TransferWorker) Run(ctx context.Context) error {
	pc, err := w.consumer.ConsumePartition(w.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer pc.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			w.logger.Error().Err(cerr).Msg("Consumer error")
		}
	}
}

func (w *TransferWorker) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	req, err := DecodeTransfer(msg.Value)
	if err != nil {
		w.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed transfer")
		return
	}
	txid, err := w.ledger.Transfer(ctx, req.FromAddress, req.ToAddress, req.RuneID, req.Amount)
	if err != nil {
		w.logger.Error().Err(err).
			Str("rune_id", req.RuneID).
			Int64("offset", msg.Offset).
			Msg("Transfer failed")
		return
	}
	w.logger.Info().
		Str("rune_id", req.RuneID).
		Str("amount", req.Amount.String()).
		Str("txid", txid).
		Msg("Transfer executed")
}

// Close stops Run and closes the consumer
func (w *TransferWorker) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.consumer.Close()
}

var _ core.SettlementLedger = (*TransferProducer)(nil)
