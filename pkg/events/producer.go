package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/orderdesk/orderdesk/pkg/book"
)

// TradePublisher pushes executed trades to a Kafka topic. Messages are keyed
// by symbol so all fills for one symbol land on one partition in order.
type TradePublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.SugaredLogger
}

// tradeEvent is the wire shape of a published trade.
type tradeEvent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      book.Side `json:"side"`
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTradePublisher connects a sync producer that waits for full ISR acks.
func NewTradePublisher(brokers []string, topic string, logger *zap.Logger) (*TradePublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("start trade producer: %w", err)
	}
	return &TradePublisher{producer: producer, topic: topic, log: logger.Sugar()}, nil
}

func (p *TradePublisher) Close() error { return p.producer.Close() }

// Publish sends one committed trade. Failures are reported to the caller;
// the trade itself is already durable in the store by the time this runs.
func (p *TradePublisher) Publish(t *book.Trade) error {
	payload, err := json.Marshal(tradeEvent{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Side:      t.Side,
		Amount:    t.Amount,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode trade event %s: %w", t.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(t.Symbol),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish trade %s to %s: %w", t.ID, p.topic, err)
	}
	p.log.Infow("trade_published", "trade_id", t.ID, "topic", p.topic)
	return nil
}
