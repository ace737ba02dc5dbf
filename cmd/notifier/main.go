// Command notifier читает уведомления из Kafka и передаёт их в LogSender.
// Сообщения, не обработанные после повторов, уходят в DLQ.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
)

const (
	envKafkaBrokers      = "STOREFRONT_KAFKA_BROKERS"
	envNotificationTopic = "STOREFRONT_NOTIFICATION_TOPIC"
	envDLQTopic          = "STOREFRONT_DLQ_TOPIC"
	envLogLevel          = "STOREFRONT_LOG_LEVEL"

	defaultGroupID    = "storefront-notifier"
	defaultMaxRetries = 3
	defaultRetryDelay = 200 * time.Millisecond
)

type config struct {
	brokers    []string
	groupID    string
	topic      string
	dlqTopic   string
	maxRetries int
	retryDelay time.Duration
}

func readConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	var (
		cfg        config
		brokersRaw string
	)
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", env(envKafkaBrokers, ""), "Kafka brokers, comma-separated")
	fs.StringVar(&cfg.groupID, "group", defaultGroupID, "consumer group id")
	fs.StringVar(&cfg.topic, "topic", env(envNotificationTopic, kafka.TopicNotifications), "notification topic")
	fs.StringVar(&cfg.dlqTopic, "dlq-topic", env(envDLQTopic, kafka.TopicDeadLetterQueue), "dead letter topic")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaultMaxRetries, "delivery attempts before DLQ")
	fs.DurationVar(&cfg.retryDelay, "retry-delay", defaultRetryDelay, "base delay between attempts")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	for _, part := range strings.Split(brokersRaw, ",") {
		if broker := strings.TrimSpace(part); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(cfg.groupID) == "":
		return config{}, errors.New("group is required")
	case cfg.topic == "" || cfg.dlqTopic == "":
		return config{}, errors.New("topic and dlq-topic are required")
	case cfg.topic == cfg.dlqTopic:
		return config{}, errors.New("dlq-topic must differ from topic")
	case cfg.maxRetries <= 0:
		return config{}, errors.New("max-retries must be > 0")
	case cfg.retryDelay < 0:
		return config{}, errors.New("retry-delay must be >= 0")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		return fmt.Errorf("create dlq producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dlq producer")
		}
	}()

	relay := notification.NewRelay(notification.NewLogSender(logger.WithField("component", "notification-sender")), logger)
	consumer, err := kafka.NewConsumerWithDLQ(cfg.brokers, cfg.groupID, []string{cfg.topic}, relay.Handle, producer, cfg.maxRetries,
		kafka.WithDLQTopic(cfg.dlqTopic),
		kafka.WithRetryDelay(cfg.retryDelay),
		kafka.WithConsumerLogger(logger.WithField("component", "kafka-consumer")),
	)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("получен сигнал остановки, закрываем consumer")
	return consumer.Stop()
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level, err := log.ParseLevel(os.Getenv(envLogLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	cfg, err := readConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithField("component", "notifier")
	logger.WithFields(log.Fields{
		"brokers":   cfg.brokers,
		"group":     cfg.groupID,
		"topic":     cfg.topic,
		"dlq_topic": cfg.dlqTopic,
	}).Info("запускаем notifier")

	if err := run(ctx, cfg, logger); err != nil {
		fail("notifier failed: %v", err)
	}
	logger.Info("notifier остановлен")
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
