package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

type Client struct {
	index    string
	esClient *elasticsearch.Client
}

func NewClient(address, index string, timeout time.Duration) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %v", err)
	}

	return &Client{
		index:    index,
		esClient: esClient,
	}, nil
}

// BulkIndex writes a batch of canonical transactions, one document per
// row keyed by txid. Re-indexing the same txid replaces the document,
// mirroring the local store's upsert semantics.
func (es *Client) BulkIndex(ctx context.Context, txs []entities.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, tx := range txs {
		meta := []byte(fmt.Sprintf(`{ "index": { "_index": "%s", "_id": "%s" } }%s`, es.index, tx.TxID, "\n"))
		buf.Write(meta)

		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("error serializing transaction: %w", err)
		}
		buf.Write(data)
		buf.Write([]byte("\n"))
	}

	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()),
		es.esClient.Bulk.WithContext(ctx),
		es.esClient.Bulk.WithRefresh("true"))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	return nil
}
