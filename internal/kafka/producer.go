// Package kafka wraps the sarama producer and consumer-group plumbing used
// by the alert outbox and the temperature feed.
package kafka

import (
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type SaramaProducer struct {
	producer sarama.SyncProducer
	logger   zerolog.Logger
}

func NewSaramaProducer(brokers []string, logger zerolog.Logger) (*SaramaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &SaramaProducer{
		producer: prod,
		logger:   logger.With().Str("component", "kafka_producer").Logger(),
	}, nil
}

func (p *SaramaProducer) Publish(topic string, message []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("failed to send message")
		return err
	}
	p.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("message stored")
	return nil
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
