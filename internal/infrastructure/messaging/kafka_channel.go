package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const (
	sourceName      = "kafka"
	headerMessageID = "message_id"
	consumeBackoff  = 5 * time.Second
)

var ErrChannelClosed = errors.New("host channel closed")

// KafkaChannel bridges the relay and the companion device: outgoing weather
// messages go to the outbox topic keyed by device, and every record on the
// inbox topic is an app message asking for a refresh.
type KafkaChannel struct {
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	client   sarama.Client

	outboxTopic string
	inboxTopic  string
	deviceID    string
	logger      logger.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

func NewKafkaChannel(
	producer sarama.SyncProducer,
	group sarama.ConsumerGroup,
	client sarama.Client,
	outboxTopic, inboxTopic, deviceID string,
	log logger.Logger,
) *KafkaChannel {
	return &KafkaChannel{
		producer:    producer,
		group:       group,
		client:      client,
		outboxTopic: outboxTopic,
		inboxTopic:  inboxTopic,
		deviceID:    deviceID,
		logger:      log.WithField("component", "kafka_channel"),
	}
}

func (k *KafkaChannel) Send(ctx context.Context, msg entities.OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	messageID := uuid.NewString()
	record := &sarama.ProducerMessage{
		Topic: k.outboxTopic,
		Key:   sarama.StringEncoder(k.deviceID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerMessageID), Value: []byte(messageID)},
		},
	}

	partition, offset, err := k.producer.SendMessage(record)
	if err != nil {
		return fmt.Errorf("failed to deliver message %s: %w", messageID, err)
	}

	k.logger.Debugf("Delivered message %s to %s[%d]@%d", messageID, k.outboxTopic, partition, offset)
	return nil
}

// Subscribe emits a single ready event, then an appmessage event per inbox
// record until ctx is cancelled or Close is called.
func (k *KafkaChannel) Subscribe(ctx context.Context, handler ports.EventHandler) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return ErrChannelClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.mu.Unlock()

	k.logger.Infof("Subscribing to inbox topic %s", k.inboxTopic)

	h := &inboxHandler{
		handler: handler,
		logger:  k.logger.WithField("handler", "inbox"),
	}

	handler(ctx, entities.NewEvent(entities.EventReady, sourceName))

	k.wg.Add(2)
	go func() {
		defer k.wg.Done()
		for {
			if err := k.group.Consume(ctx, []string{k.inboxTopic}, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				k.logger.Errorf("Error consuming inbox: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(consumeBackoff):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer k.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-k.group.Errors():
				if !ok {
					return
				}
				k.logger.Errorf("Kafka consumer error: %v", err)
			}
		}
	}()

	return nil
}

func (k *KafkaChannel) HealthCheck(ctx context.Context) error {
	if k.producer == nil {
		return errors.New("kafka producer is nil")
	}
	if k.client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- k.client.RefreshMetadata(k.outboxTopic, k.inboxTopic)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("kafka metadata unavailable: %w", err)
		}
		return nil
	}
}

func (k *KafkaChannel) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	if k.cancel != nil {
		k.cancel()
	}
	k.mu.Unlock()

	var errs []error
	if k.group != nil {
		if err := k.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer group: %w", err))
		}
	}
	k.wg.Wait()

	if k.producer != nil {
		if err := k.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if k.client != nil && !k.client.Closed() {
		if err := k.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}

	k.logger.Info("Kafka channel closed")
	return errors.Join(errs...)
}

type inboxHandler struct {
	handler ports.EventHandler
	logger  logger.Logger
}

func (h *inboxHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Inbox consumer session started")
	return nil
}

func (h *inboxHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Inbox consumer session ended")
	return nil
}

func (h *inboxHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.logger.Debugf("App message received (partition %d, offset %d)", message.Partition, message.Offset)
			h.handler(session.Context(), entities.NewEvent(entities.EventAppMessage, sourceName))
			session.MarkMessage(message, "")
		}
	}
}

type KafkaChannelFactory struct {
	requiredAcks int16
	maxRetries   int
	logger       logger.Logger
}

func NewKafkaChannelFactory(requiredAcks int16, maxRetries int, log logger.Logger) ports.HostChannelFactory {
	return &KafkaChannelFactory{
		requiredAcks: requiredAcks,
		maxRetries:   maxRetries,
		logger:       log,
	}
}

func (f *KafkaChannelFactory) CreateChannel(broker, outboxTopic, inboxTopic, groupID, deviceID string) (ports.HostChannel, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Producer.RequiredAcks = sarama.RequiredAcks(f.requiredAcks)
	config.Producer.Retry.Max = f.maxRetries
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	config.Net.DialTimeout = 10 * time.Second

	client, err := sarama.NewClient([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	group, err := sarama.NewConsumerGroupFromClient(groupID, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	f.logger.Infof("Kafka channel ready: outbox=%s inbox=%s group=%s", outboxTopic, inboxTopic, groupID)
	return NewKafkaChannel(producer, group, client, outboxTopic, inboxTopic, deviceID, f.logger), nil
}
