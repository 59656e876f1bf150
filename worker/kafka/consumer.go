package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, msg *TaskMessage) error

// DeadLetterFunc is invoked after delivery retries are exhausted so the
// failure stays observable instead of being silently dropped.
type DeadLetterFunc func(ctx context.Context, msg *TaskMessage, cause error)

type TaskMessage struct {
	TaskID         string   `json:"task_id"`
	TraceID        string   `json:"trace_id"`
	Kind           string   `json:"kind"`
	ArtifactIDs    []string `json:"artifact_ids"`
	OutputFilename string   `json:"output_filename,omitempty"`
}

type Consumer struct {
	consumer    sarama.ConsumerGroup
	maxAttempts int
	deadLetter  DeadLetterFunc
	logger      *zap.Logger
}

func NewConsumer(brokers []string, groupID string, maxAttempts int, deadLetter DeadLetterFunc, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Consumer{
		consumer:    c,
		maxAttempts: maxAttempts,
		deadLetter:  deadLetter,
		logger:      logger,
	}, nil
}

type consumerHandler struct {
	fn          MessageHandler
	maxAttempts int
	deadLetter  DeadLetterFunc
	logger      *zap.Logger
	ctx         context.Context
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var taskMsg TaskMessage
		if err := json.Unmarshal(msg.Value, &taskMsg); err != nil {
			h.logger.Warn("Dropping undecodable message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			session.MarkMessage(msg, "")
			continue
		}

		if !h.handleWithRetry(&taskMsg) {
			// Shutdown interrupted the job before a terminal outcome. Leave
			// the message unmarked so the next session redelivers it.
			h.logger.Info("Returning in-flight job to the queue",
				zap.String("task_id", taskMsg.TaskID),
				zap.String("trace_id", taskMsg.TraceID),
			)
			return nil
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// handleWithRetry gives the handler a bounded number of attempts. Only
// after exhaustion does the message go to the dead-letter path; either way
// it reports true so the caller marks the message and one poisoned task
// cannot wedge the partition. It reports false only when the context was
// cancelled before the job reached an outcome.
func (h *consumerHandler) handleWithRetry(msg *TaskMessage) bool {
	var err error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		err = h.fn(h.ctx, msg)
		if err == nil {
			return true
		}
		if h.ctx.Err() != nil {
			return false
		}

		h.logger.Warn("Task handling attempt failed",
			zap.String("task_id", msg.TaskID),
			zap.String("trace_id", msg.TraceID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", h.maxAttempts),
			zap.Error(err),
		)

		if attempt < h.maxAttempts {
			select {
			case <-h.ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	h.logger.Error("Task delivery retries exhausted",
		zap.String("task_id", msg.TaskID),
		zap.String("trace_id", msg.TraceID),
		zap.Error(err),
	)
	if h.deadLetter != nil {
		h.deadLetter(h.ctx, msg, err)
	}
	return true
}

func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler) error {
	h := &consumerHandler{
		fn:          handler,
		maxAttempts: c.maxAttempts,
		deadLetter:  c.deadLetter,
		logger:      c.logger,
		ctx:         ctx,
	}
	return c.consumer.Consume(ctx, []string{topic}, h)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
