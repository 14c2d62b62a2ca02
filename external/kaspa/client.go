// Package kaspa talks to a Kaspa REST indexer.
package kaspa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

const userAgent = "kaspa-tx-sync/1.0"

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// Client issues paginated queries against the indexer. Transient
// failures (transport errors and 5xx responses) are retried with
// exponential backoff; client errors are not.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// GetFullTransactions fetches one page of the address's transaction
// history. The feed is ordered by descending time across pages; offset
// is the pagination cursor.
func (c *Client) GetFullTransactions(ctx context.Context, address string, limit, offset int) ([]entities.LedgerTransaction, error) {
	url := fmt.Sprintf("%s/addresses/%s/full-transactions?limit=%d&offset=%d",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), address, limit, offset)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "fetching full transactions")
	}

	var page []entities.LedgerTransaction
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Wrap(err, "decoding full transactions response")
	}
	return page, nil
}

// GetBalance fetches the address's confirmed balance in KAS.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	url := fmt.Sprintf("%s/addresses/%s/balance", strings.TrimSuffix(c.cfg.BaseURL, "/"), address)

	body, err := c.get(ctx, url)
	if err != nil {
		return 0, errors.Wrap(err, "fetching balance")
	}

	var response struct {
		Balance int64 `json:"balance"` // sompi
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, errors.Wrap(err, "decoding balance response")
	}
	return float64(response.Balance) / 1e8, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * (1 << (attempt - 1))
			c.logger.Warnw("retrying indexer request", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retryable, err := c.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, errors.Wrapf(lastErr, "request failed after %d attempts", c.cfg.RetryAttempts)
}

func (c *Client) doGet(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "creating request")
	}
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, true, errors.Wrap(err, "performing request")
	}
	defer response.Body.Close()

	if response.StatusCode >= 500 {
		return nil, true, errors.Errorf("indexer returned status %d", response.StatusCode)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, false, errors.Errorf("indexer returned status %d", response.StatusCode)
	}

	body, err = io.ReadAll(response.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, "reading response body")
	}
	return body, false, nil
}
