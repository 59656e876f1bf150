package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

type deadLetterEnvelope struct {
	TaskMessage
	Reason string `json:"reason"`
}

// DeadLetterProducer publishes exhausted deliveries to a separate topic so
// they stay visible for reconciliation.
type DeadLetterProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewDeadLetterProducer(brokers []string, topic string) (*DeadLetterProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &DeadLetterProducer{producer: p, topic: topic}, nil
}

func (p *DeadLetterProducer) Publish(ctx context.Context, msg *TaskMessage, reason string) error {
	data, err := json.Marshal(deadLetterEnvelope{TaskMessage: *msg, Reason: reason})
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.TaskID),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (p *DeadLetterProducer) Close() error {
	return p.producer.Close()
}
