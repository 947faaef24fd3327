package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"go.uber.org/zap"
)

// Client talks to a FakeStore-compatible catalog API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.CatalogProduct, error) {
	var payload []productResponse
	if err := c.get(ctx, c.baseURL+"/products", &payload); err != nil {
		return nil, err
	}

	products := make([]domain.CatalogProduct, 0, len(payload))
	for _, item := range payload {
		if !item.Price.Valid {
			c.logger.Warn("catalog product without price skipped", zap.Int64("external_id", item.ID))
			continue
		}
		products = append(products, mapProduct(item))
	}
	return products, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Debug("catalog request start", zap.String("url", endpoint))
	response, err := c.client.Do(request)
	if err != nil {
		c.logger.Error("catalog request failed", zap.String("url", endpoint), zap.Error(err))
		return err
	}
	defer response.Body.Close()

	c.logger.Info(
		"catalog request complete",
		zap.String("url", endpoint),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("catalog error: status %d", response.StatusCode)
	}

	if response.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func mapProduct(item productResponse) domain.CatalogProduct {
	return domain.CatalogProduct{
		ExternalID:  item.ID,
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price.Decimal,
		ImageURL:    item.Image,
	}
}
