// Package prices fetches the fiat price snapshot a sync session is
// seeded with. The pipeline itself only ever sees the resulting
// currency→price map.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const coinID = "kaspa"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Snapshot returns the current KAS spot price per requested currency.
// Currencies missing from the response are absent from the map; the
// normalizer treats absent prices as zero.
func (c *Client) Snapshot(ctx context.Context, currencies []string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, coinID, strings.Join(currencies, ","))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating price request")
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "fetching prices")
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, errors.Errorf("price service returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading price response")
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "decoding price response")
	}

	snapshot, ok := payload[coinID]
	if !ok {
		return nil, errors.Errorf("price response is missing entry for %q", coinID)
	}
	return snapshot, nil
}
