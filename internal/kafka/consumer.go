package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/session"
)

// ActivityHandler receives decoded activity events. The tracker service
// implements it.
type ActivityHandler interface {
	Load(ctx context.Context, id uuid.UUID, name string) (*session.Record, error)
	Unload(ctx context.Context, id uuid.UUID) error
	RecordMovement(id uuid.UUID, from, to domain.BlockPos)
	RecordInteraction(id uuid.UUID)
}

// Consumer ingests player activity events from Kafka. Game hosts report
// joins, leaves, movement and interactions onto the topic; the consumer
// feeds them into the tracker.
type Consumer struct {
	config        *config.KafkaConfig
	handler       ActivityHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ActivityHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event domain.ActivityEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if event.PlayerID == uuid.Nil {
				h.consumer.logger.Warn("activity event without player id",
					"type", event.Type,
					"offset", message.Offset,
				)
				session.MarkMessage(message, "")
				continue
			}

			h.consumer.apply(event)
			session.MarkMessage(message, "")
		}
	}
}

// apply dispatches one activity event into the tracker.
func (c *Consumer) apply(event domain.ActivityEvent) {
	switch event.Type {
	case domain.ActivityEventJoin:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.handler.Load(ctx, event.PlayerID, event.Name); err != nil {
			c.logger.Error("failed to load player from event", "player_id", event.PlayerID, "error", err)
		}

	case domain.ActivityEventLeave:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.handler.Unload(ctx, event.PlayerID); err != nil {
			c.logger.Error("failed to unload player from event", "player_id", event.PlayerID, "error", err)
		}

	case domain.ActivityEventMove:
		if event.From == nil || event.To == nil {
			c.logger.Warn("move event without coordinates", "player_id", event.PlayerID)
			return
		}
		c.handler.RecordMovement(event.PlayerID, *event.From, *event.To)

	case domain.ActivityEventInteract:
		c.handler.RecordInteraction(event.PlayerID)

	default:
		c.logger.Warn("unknown activity event type", "type", event.Type)
	}
}
