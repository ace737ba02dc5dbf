package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultRetryDelay = 200 * time.Millisecond

// MessageHandler обрабатывает одно сообщение. Ошибка запускает повтор, затем DLQ.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer читает topic уведомлений в составе consumer group
// и перекладывает сообщения, которые не удалось доставить, в DLQ.
type Consumer struct {
	consumer    sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	dlqTopic    string
	maxRetries  int
	retryDelay  time.Duration
}

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*Consumer)

// WithRetryDelay задаёт паузу между повторами обработки одного сообщения.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithDLQTopic переопределяет topic для Dead Letter Queue.
func WithDLQTopic(topic string) ConsumerOption {
	return func(c *Consumer) {
		if topic != "" {
			c.dlqTopic = topic
		}
	}
}

// WithConsumerLogger задаёт логгер.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer создаёт consumer без DLQ.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithDLQ(brokers, groupID, topics, handler, nil, 3)
}

// ConsumerConfig: настройки consumer group: round-robin и чтение с самого старого offset.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = ClientID
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// NewConsumerWithDLQ подключает consumer group groupID к brokers.
// dlqProducer может быть nil: тогда сообщение остаётся непомеченным и будет перечитано.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int, opts ...ConsumerOption) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("join consumer group %s: %w", groupID, err)
	}
	return NewConsumerFromGroup(group, topics, handler, dlqProducer, maxRetries, opts...), nil
}

// NewConsumerFromGroup собирает Consumer поверх готовой consumer group.
func NewConsumerFromGroup(group sarama.ConsumerGroup, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int, opts ...ConsumerOption) *Consumer {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	c := &Consumer{
		consumer:    group,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		dlqProducer: dlqProducer,
		dlqTopic:    TopicDeadLetterQueue,
		maxRetries:  maxRetries,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запускает чтение в фоне и сразу возвращается.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается при каждом rebalance.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consume session failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer group error")
		}
	}()

	c.logger.WithFields(log.Fields{"topics": c.topics, "dlq_topic": c.dlqTopic}).Info("notification consumer started")
	return nil
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("close consumer group: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("notification consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения одной партиции по порядку.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				// Не маркируем: сообщение будет перечитано после rebalance.
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessageWithRetry повторяет обработку до maxRetries попыток с учётом
// уже сделанных (заголовок x-retry-count), затем отправляет сообщение в DLQ.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	retryCount := c.getRetryCount(message)

	var err error
	for attempt := retryCount; ; attempt++ {
		err = c.handler(ctx, message)
		if err == nil {
			return nil
		}
		if attempt+1 >= c.maxRetries || ctx.Err() != nil {
			retryCount = attempt + 1
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": attempt + 1,
			"max_retries": c.maxRetries,
		}).Warn("message processing failed, will retry")

		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	if c.dlqProducer == nil {
		return err
	}
	if dlqErr := c.sendToDLQ(message, err, retryCount); dlqErr != nil {
		c.logger.WithError(dlqErr).Error("dead letter publish failed")
		return fmt.Errorf("publish dead letter: %w", dlqErr)
	}
	c.logger.WithError(err).WithFields(log.Fields{
		"topic":       message.Topic,
		"key":         string(message.Key),
		"retry_count": retryCount,
	}).Warn("notification moved to dlq")
	return nil
}

// getRetryCount читает x-retry-count; сообщения из dlq-reprocess могут его нести.
func (c *Consumer) getRetryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// sendToDLQ публикует DeadLetter с исходным сообщением внутри.
func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error, retryCount int) error {
	failedAt := time.Now().UTC()
	letter := DeadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          failedAt,
		RetryCount:        retryCount,
	}

	topic := c.dlqTopic
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return c.dlqProducer.PublishEvent(topic, string(message.Key), letter,
		sarama.RecordHeader{Key: []byte(HeaderOriginalTopic), Value: []byte(message.Topic)},
		sarama.RecordHeader{Key: []byte(HeaderErrorMessage), Value: []byte(processingErr.Error())},
		sarama.RecordHeader{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(retryCount))},
		sarama.RecordHeader{Key: []byte(HeaderFailedAt), Value: []byte(failedAt.Format(time.RFC3339))},
	)
}

// ParseOutboxEnvelope разбирает сообщение, опубликованное из outbox.
func ParseOutboxEnvelope(message *sarama.ConsumerMessage) (*OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("decode outbox envelope at offset %d: %w", message.Offset, err)
	}
	return &envelope, nil
}

// ParseDeadLetter разбирает сообщение из DLQ.
func ParseDeadLetter(message *sarama.ConsumerMessage) (*DeadLetter, error) {
	var letter DeadLetter
	if err := json.Unmarshal(message.Value, &letter); err != nil {
		return nil, fmt.Errorf("decode dead letter at offset %d: %w", message.Offset, err)
	}
	return &letter, nil
}
