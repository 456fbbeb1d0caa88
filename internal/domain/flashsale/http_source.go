package flashsale

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPSource reads active sales from another storefront instance's admin API
// (GET /api/admin/flash-sales?isActive=true).
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
	retries uint64
}

func NewHTTPSource(baseURL, token string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		retries: 2,
	}
}

func (s *HTTPSource) ActiveSales(ctx context.Context) ([]FlashSale, error) {
	var sales []FlashSale
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/admin/flash-sales?isActive=true", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("flash sale source returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("flash sale source returned %d", resp.StatusCode))
		}

		sales = nil
		if err := json.NewDecoder(resp.Body).Decode(&sales); err != nil {
			return backoff.Permanent(fmt.Errorf("decode flash sales: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx)); err != nil {
		return nil, err
	}
	return sales, nil
}
