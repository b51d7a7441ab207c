package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/ayusman/moodlens/internal/metrics"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("not connected to AMQP server")

const (
	dialTimeout      = 5 * time.Second
	exchangeKind     = "topic"
	jsonContentType  = "application/json"
	defaultHeartbeat = 10 * time.Second

	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// AMQPConfig holds AMQP publisher configuration.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPPublisher publishes JSON events to a durable topic exchange.
// A dropped connection is re-established in the background with exponential
// backoff; Publish fails with ErrNotConnected until it is back.
type AMQPPublisher struct {
	config AMQPConfig
	logger logrus.FieldLogger

	minDelay time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(config AMQPConfig, logger logrus.FieldLogger) (*AMQPPublisher, error) {
	if config.URL == "" || config.Exchange == "" {
		return nil, fmt.Errorf("AMQP URL or exchange not configured")
	}

	p := newPublisher(config, logger)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(config AMQPConfig, logger logrus.FieldLogger) *AMQPPublisher {
	return &AMQPPublisher{
		config:   config,
		logger:   logger.WithField("component", "amqp"),
		minDelay: minReconnectDelay,
		maxDelay: maxReconnectDelay,
		stopChan: make(chan struct{}),
	}
}

// connect dials the broker without holding p.mu, then installs the
// connection and starts watching it.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.config.URL, amqp.Config{
		Heartbeat: defaultHeartbeat,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.config.Exchange,
		exchangeKind,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP exchange: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		channel.Close()
		conn.Close()
		return ErrNotConnected
	}
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	closeChan := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeChan)
	go p.monitor(conn, closeChan)

	p.logger.WithField("exchange", p.config.Exchange).Info("Connected to AMQP server")
	return nil
}

// monitor forgets the connection once the broker closes it and reconnects.
func (p *AMQPPublisher) monitor(conn *amqp.Connection, closeChan chan *amqp.Error) {
	var amqpErr *amqp.Error
	select {
	case <-p.stopChan:
		return
	case amqpErr = <-closeChan:
	}

	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
		p.channel = nil
	}
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	p.logger.WithError(amqpErr).Warn("AMQP connection closed, attempting to reconnect")
	p.reconnect(p.connect)
}

// reconnect calls connect with exponential backoff until it succeeds or the
// publisher is closed. It reports whether a connection was established.
func (p *AMQPPublisher) reconnect(connect func() error) bool {
	delay := p.minDelay
	for attempt := 1; ; attempt++ {
		err := connect()
		if err == nil {
			p.logger.WithField("attempt", attempt).Info("Reconnected to AMQP server")
			return true
		}
		p.logger.WithError(err).WithField("attempt", attempt).Warn("Failed to reconnect to AMQP server")

		select {
		case <-p.stopChan:
			return false
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}

// Publish marshals event to JSON and publishes it under routingKey.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		return ErrNotConnected
	}

	err = p.channel.Publish(
		p.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  jsonContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	metrics.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.stopOnce.Do(func() { close(p.stopChan) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		conn := p.conn
		p.conn = nil
		if err := conn.Close(); err != nil {
			return err
		}
		p.logger.Info("Disconnected from AMQP server")
	}
	return nil
}
