package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const eventProductUpdate = "product_update"

type FeedFactory struct {
	url         string
	dialer      *websocket.Dialer
	readTimeout time.Duration
	logger      *zap.Logger
}

func NewFeedFactory(url string, readTimeout time.Duration, logger *zap.Logger) *FeedFactory {
	return &FeedFactory{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		readTimeout: readTimeout,
		logger:      logger,
	}
}

func (f *FeedFactory) Connect(ctx context.Context) (domain.CatalogFeedClient, error) {
	f.logger.Info("catalog feed connect start", zap.String("url", f.url))
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		f.logger.Error("catalog feed connect failed", zap.String("url", f.url), zap.Error(err))
		return nil, err
	}
	f.logger.Info("catalog feed connected", zap.String("url", f.url))
	return &FeedClient{conn: conn, readTimeout: f.readTimeout, logger: f.logger}, nil
}

type FeedClient struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	logger      *zap.Logger
}

// Subscribe asks for updates on the given external ids. An empty list
// subscribes to the whole catalog.
func (c *FeedClient) Subscribe(ctx context.Context, externalIDs []int64) error {
	payload := map[string]any{
		"type":         "subscribe",
		"channel":      "products",
		"external_ids": externalIDs,
	}
	c.logger.Info("catalog feed subscribe", zap.Int("product_count", len(externalIDs)))
	if err := c.conn.WriteJSON(payload); err != nil {
		c.logger.Error("catalog feed subscribe failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *FeedClient) Receive(ctx context.Context) ([]domain.CatalogUpdate, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	updates, err := decodeFeedMessage(data)
	if err != nil {
		c.logger.Debug("catalog feed message ignored", zap.Error(err))
		return nil, nil
	}
	return updates, nil
}

func (c *FeedClient) Close() error {
	c.logger.Info("catalog feed close")
	return c.conn.Close()
}

// decodeFeedMessage accepts a single message object or an array of them and
// keeps only product_update events.
func decodeFeedMessage(data []byte) ([]domain.CatalogUpdate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	var messages []feedMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("decode feed message array: %w", err)
		}
	} else {
		var message feedMessage
		if err := json.Unmarshal(trimmed, &message); err != nil {
			return nil, fmt.Errorf("decode feed message: %w", err)
		}
		messages = []feedMessage{message}
	}

	var updates []domain.CatalogUpdate
	for _, message := range messages {
		if message.EventType != eventProductUpdate {
			continue
		}
		for _, item := range message.Updates {
			if item.ExternalID == 0 {
				continue
			}
			update := domain.CatalogUpdate{ExternalID: item.ExternalID, Quantity: item.Quantity}
			if item.Price.Valid {
				value := item.Price.Decimal
				update.Price = &value
			}
			if update.Price == nil && update.Quantity == nil {
				continue
			}
			updates = append(updates, update)
		}
	}
	return updates, nil
}
