// Command dlq-reprocess возвращает уведомления из DLQ в исходный topic.
// По умолчанию работает в dry-run и только печатает кандидатов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	envKafkaBrokers    = "STOREFRONT_KAFKA_BROKERS"
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// offsetClient: часть sarama.Client, нужная для выбора диапазона.
type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func readConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg        config
		brokersRaw string
	)
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicNotifications, "topic for messages without original topic")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish messages; default is dry-run")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw, _ = lookup(envKafkaBrokers)
	}
	for _, part := range strings.Split(brokersRaw, ",") {
		if broker := strings.TrimSpace(part); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(cfg.sourceTopic) == "" || strings.TrimSpace(cfg.targetTopic) == "":
		return config{}, errors.New("source-topic and target-topic are required")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

// replay сканирует партиции DLQ от старых сообщений к новым, не более cfg.limit.
func replay(ctx context.Context, cfg config, client offsetClient, consumer sarama.Consumer, producer replayProducer, logger *log.Entry) (replayStats, error) {
	var stats replayStats
	if cfg.execute && producer == nil {
		return stats, errors.New("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return stats, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if stats.scanned >= cfg.limit {
			break
		}
		if err := replayPartition(ctx, cfg, client, consumer, producer, partition, &stats, logger); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func replayPartition(
	ctx context.Context,
	cfg config,
	client offsetClient,
	consumer sarama.Consumer,
	producer replayProducer,
	partition int32,
	stats *replayStats,
	logger *log.Entry,
) error {
	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, oldest)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < cfg.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case consumerErr, ok := <-pc.Errors():
			if ok && consumerErr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			stats.scanned++
			entry := logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})
			out, err := kafka.ReplayMessage(msg, cfg.targetTopic)
			if err != nil {
				stats.skipped++
				entry.WithError(err).Warn("skip dlq message")
			} else if cfg.execute {
				if _, _, err := producer.SendMessage(out); err != nil {
					return fmt.Errorf("publish replay message: %w", err)
				}
				stats.replayed++
			} else {
				stats.replayed++
				entry.WithField("target_topic", out.Topic).Info("dlq replay candidate")
			}

			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

func run(ctx context.Context, cfg config, logger *log.Entry) (replayStats, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Return.Successes = true

	client, err := sarama.NewClient(cfg.brokers, saramaCfg)
	if err != nil {
		return replayStats{}, fmt.Errorf("create kafka client: %w", err)
	}
	defer func() { _ = client.Close() }()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return replayStats{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var producer sarama.SyncProducer
	if cfg.execute {
		producer, err = sarama.NewSyncProducerFromClient(client)
		if err != nil {
			return replayStats{}, fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() { _ = producer.Close() }()
	}

	return replay(ctx, cfg, client, consumer, producer, logger)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithField("component", "dlq-reprocess")
	stats, err := run(ctx, cfg, logger)
	if err != nil {
		fail("dlq replay failed: %v", err)
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	logger.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  stats.scanned,
		"replayed": stats.replayed,
		"skipped":  stats.skipped,
	}).Info("dlq replay finished")
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
