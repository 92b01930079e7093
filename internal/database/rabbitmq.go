package database

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RabbitMQ holds the consumer-side connection. Publishers open their own.
type RabbitMQ struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  zerolog.Logger
}

func NewRabbitMQ(url string, logger zerolog.Logger) (*RabbitMQ, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Info().Msg("Connected to RabbitMQ")

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

func (r *RabbitMQ) Channel() *amqp091.Channel {
	return r.channel
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	return nil
}
