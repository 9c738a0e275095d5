// Package events forwards committed session transitions to the event
// store and, when configured, to an AMQP topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/streadway/amqp"

	"github.com/abhisek/tutorly/internal/session"
)

// Config configures the AMQP publisher. An empty URL disables it.
type Config struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// DefaultConfig returns the default exchange name with publishing off.
func DefaultConfig() Config {
	return Config{Exchange: "tutorly.sessions"}
}

// Enabled reports whether a broker URL is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// Envelope is the message body published for each transition.
type Envelope struct {
	Type    string             `json:"type"`
	Payload session.Transition `json:"payload"`
}

// RoutingKey returns the routing key for a transition, e.g.
// "session.awaiting_mini_quiz".
func RoutingKey(t session.Transition) string {
	return "session." + string(t.To)
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes transitions to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   hclog.Logger
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(cfg Config, logger hclog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare %s: %w", cfg.Exchange, err)
	}

	p := newPublisher(ch, cfg.Exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger hclog.Logger) *Publisher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger.Named("amqp")}
}

// Publish sends one transition.
func (p *Publisher) Publish(t session.Transition) error {
	key := RoutingKey(t)
	body, err := json.Marshal(Envelope{Type: key, Payload: t})
	if err != nil {
		return err
	}
	return p.channel.Publish(
		p.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%s-%d", t.SessionID, t.Seq),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// OnTransition implements session.Observer. Publish failures are logged.
func (p *Publisher) OnTransition(ctx context.Context, t session.Transition) {
	if err := p.Publish(t); err != nil {
		p.logger.Warn("failed to publish transition", "session", t.SessionID, "seq", t.Seq, "error", err)
	}
}

// Close closes the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
