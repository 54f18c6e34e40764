package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AMQPConfig holds the message-queue sink configuration.
type AMQPConfig struct {
	URL        string
	QueueName  string
	Exchange   string
	RoutingKey string
}

// AMQPSink publishes analysis events to a durable AMQP queue. Register
// its Publish method as a hub callback.
type AMQPSink struct {
	logger *logrus.Entry
	config AMQPConfig

	mu        sync.RWMutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
}

// NewAMQPSink creates an unconnected sink.
func NewAMQPSink(logger *logrus.Logger, config AMQPConfig) *AMQPSink {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	return &AMQPSink{
		logger: logger.WithField("component", "amqp_sink"),
		config: config,
	}
}

// Connect dials the broker and declares the queue.
func (s *AMQPSink) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.config.URL == "" || s.config.QueueName == "" {
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	conn, err := amqp.Dial(s.config.URL)
	if err != nil {
		return fmt.Errorf("connecting to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening AMQP channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		s.config.QueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declaring AMQP queue: %w", err)
	}

	s.conn = conn
	s.channel = channel
	s.connected = true
	s.logger.WithFields(logrus.Fields{
		"url":   s.config.URL,
		"queue": s.config.QueueName,
	}).Info("Connected to AMQP server")
	return nil
}

// Publish sends one event to the queue. Safe to register as a hub
// callback; failures are returned for the hub to log.
func (s *AMQPSink) Publish(event AnalysisEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected || s.channel == nil {
		return fmt.Errorf("not connected to AMQP server")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event for AMQP: %w", err)
	}

	if err := s.channel.Publish(
		s.config.Exchange,
		s.config.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	); err != nil {
		return fmt.Errorf("publishing event to AMQP: %w", err)
	}

	s.logger.WithField("speaker", event.Speaker).Debug("Published event to AMQP")
	return nil
}

// Close shuts down the broker connection.
func (s *AMQPSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.connected = false
	s.logger.Info("Disconnected from AMQP server")
}
