package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"

	"clawnema/internal/logger"
	"clawnema/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CommentConsumer feeds comment.posted events into the local live feed, so a
// comment posted on any replica reaches SSE clients on every replica.
type CommentConsumer struct {
	Reader MessageReader
	Logger *logger.Logger
	topic  string
}

func NewCommentConsumer(brokers []string, topic, groupID string, l *logger.Logger) *CommentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return &CommentConsumer{Reader: reader, Logger: l, topic: topic}
}

// Start blocks until ctx is cancelled or the reader is closed.
func (c *CommentConsumer) Start(ctx context.Context, handle func(models.CommentView)) error {
	c.Logger.LogKafka("CONSUMER_STARTED", c.topic, "listening for comments")
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.Logger.LogKafka("READ_FAILED", c.topic, err.Error())
			return fmt.Errorf("read %s: %w", c.topic, err)
		}

		var event models.CommentPostedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.LogKafka("DECODE_FAILED", c.topic, err.Error())
			continue
		}
		handle(event.Comment)
	}
}

func (c *CommentConsumer) Close() error {
	return c.Reader.Close()
}
