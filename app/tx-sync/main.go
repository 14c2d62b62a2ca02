package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KaspaPulse/KaspaGateway-sub000/consume"
	"github.com/KaspaPulse/KaspaGateway-sub000/delivery"
	"github.com/KaspaPulse/KaspaGateway-sub000/domain"
	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
	"github.com/KaspaPulse/KaspaGateway-sub000/external/elastic"
	"github.com/KaspaPulse/KaspaGateway-sub000/external/kaspa"
	"github.com/KaspaPulse/KaspaGateway-sub000/external/prices"
	"github.com/KaspaPulse/KaspaGateway-sub000/infrastructure/store/pebbledb"
	"github.com/KaspaPulse/KaspaGateway-sub000/infrastructure/store/sqlite"
)

const prefix = "KASPA_TX_SYNC"

// transactionsHandler serves the local read path over the transaction
// store. Addresses are normalized the same way the sync pipeline keys
// them before they reach the store.
func transactionsHandler(txStore *sqlite.Store, defaultAddress string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("address")))
		if address == "" {
			address = defaultAddress
		}
		filters := entities.Filters{
			Kind:      entities.Kind(r.URL.Query().Get("kind")),
			Direction: entities.Direction(r.URL.Query().Get("direction")),
			Search:    r.URL.Query().Get("search"),
		}
		if v := r.URL.Query().Get("startTime"); v != "" {
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				http.Error(w, fmt.Sprintf("parsing startTime: %v", err), http.StatusBadRequest)
				return
			}
			filters.StartTime = ts
		}
		if v := r.URL.Query().Get("endTime"); v != "" {
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				http.Error(w, fmt.Sprintf("parsing endTime: %v", err), http.StatusBadRequest)
				return
			}
			filters.EndTime = ts
		}

		rows, err := txStore.FilterTransactions(r.Context(), address, filters)
		if err != nil {
			http.Error(w, fmt.Sprintf("querying transactions: %v", err), http.StatusInternalServerError)
			return
		}
		count, err := txStore.CountForAddress(r.Context(), address)
		if err != nil {
			http.Error(w, fmt.Sprintf("counting transactions: %v", err), http.StatusInternalServerError)
			return
		}
		data, err := json.Marshal(map[string]any{
			"address":      address,
			"total":        count,
			"transactions": rows,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("marshalling response: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			http.Error(w, fmt.Sprintf("writing response: %v", err), http.StatusInternalServerError)
			return
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	var cfg struct {
		Address         string        `conf:"optional"`
		FullResync      bool          `conf:"default:false"`
		StartTime       int64         `conf:"default:0"`
		EndTime         int64         `conf:"default:0"`
		StoreFolder     string        `conf:"default:store"`
		Currencies      []string      `conf:"default:usd;eur"`
		QueueCapacity   int           `conf:"default:10"`
		CompactionDelay time.Duration `conf:"default:1s"`
		PollInterval    time.Duration `conf:"default:50ms"`
		Api             struct {
			BaseUrl       string        `conf:"default:https://api.kaspa.org"`
			Timeout       time.Duration `conf:"default:30s"`
			RetryAttempts int           `conf:"default:3"`
			RetryBackoff  time.Duration `conf:"default:500ms"`
			PageSize      int           `conf:"default:500"`
			MaxPages      int           `conf:"default:1000"`
			PageDelay     time.Duration `conf:"default:0s"`
		}
		Prices struct {
			BaseUrl string        `conf:"default:https://api.coingecko.com/api/v3"`
			Timeout time.Duration `conf:"default:10s"`
		}
		Elastic struct {
			Enabled bool          `conf:"default:false"`
			Address string        `conf:"default:http://localhost:9200"`
			Index   string        `conf:"default:kaspa-transactions"`
			Timeout time.Duration `conf:"default:30s"`
		}
		MetricsNamespace string `conf:"default:kaspa_tx_sync"`
		MetricsPort      int    `conf:"default:9999"`
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %v", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %v", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %v", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %v", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// stored rows are keyed by the lower-cased address, normalize once here
	cfg.Address = strings.ToLower(strings.TrimSpace(cfg.Address))
	if cfg.Address == "" {
		return fmt.Errorf("no address configured, set %s_ADDRESS", prefix)
	}

	txStore, err := sqlite.Open(filepath.Join(cfg.StoreFolder, "transactions.db"))
	if err != nil {
		return fmt.Errorf("opening transaction store: %v", err)
	}
	defer txStore.Close()

	statusStore, err := pebbledb.NewSyncStatusStore(cfg.StoreFolder)
	if err != nil {
		return fmt.Errorf("creating sync status store: %v", err)
	}
	defer statusStore.Close()

	indexerClient := kaspa.NewClient(kaspa.Config{
		BaseURL:        cfg.Api.BaseUrl,
		RequestTimeout: cfg.Api.Timeout,
		RetryAttempts:  cfg.Api.RetryAttempts,
		RetryBackoff:   cfg.Api.RetryBackoff,
	}, sLogger)

	priceClient := prices.NewClient(cfg.Prices.BaseUrl, cfg.Prices.Timeout)

	metrics := domain.NewMetrics(cfg.MetricsNamespace)
	retriever := domain.NewRetriever(indexerClient, domain.RetrieverConfig{
		PageSize:     cfg.Api.PageSize,
		MaxPages:     cfg.Api.MaxPages,
		PageDelay:    cfg.Api.PageDelay,
		FetchTimeout: cfg.Api.Timeout,
		Currencies:   cfg.Currencies,
	}, sLogger, metrics)
	writer := domain.NewWriter(txStore, sLogger, metrics)

	coordinator := domain.NewCoordinator(retriever, writer, txStore, priceClient, statusStore, domain.CoordinatorConfig{
		QueueCapacity:   cfg.QueueCapacity,
		CompactionDelay: cfg.CompactionDelay,
		Currencies:      cfg.Currencies,
	}, sLogger, metrics)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("main: Starting status and metrics endpoint on port [%d]", cfg.MetricsPort)
		http.HandleFunc("/v1/status", func(w http.ResponseWriter, r *http.Request) {
			records, err := statusStore.AllSyncRecords()
			if err != nil {
				http.Error(w, fmt.Sprintf("getting sync records: %v", err), http.StatusInternalServerError)
				return
			}
			response := map[string]any{
				"fetchInProgress": coordinator.InProgress(),
				"syncRecords":     records,
			}
			data, err := json.Marshal(response)
			if err != nil {
				http.Error(w, fmt.Sprintf("marshalling response: %v", err), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(data); err != nil {
				http.Error(w, fmt.Sprintf("writing response: %v", err), http.StatusInternalServerError)
				return
			}
		})
		http.HandleFunc("/v1/transactions", transactionsHandler(txStore, cfg.Address))
		http.Handle("/metrics", promhttp.Handler())
		serverErr <- http.ListenAndServe(fmt.Sprintf(":%d", cfg.MetricsPort), nil)
	}()

	balanceCtx, cancelBalance := context.WithTimeout(context.Background(), cfg.Api.Timeout)
	balance, err := indexerClient.GetBalance(balanceCtx, cfg.Address)
	cancelBalance()
	if err != nil {
		sLogger.Warnw("could not read address balance", "error", err)
	} else {
		sLogger.Infow("address balance", "address", cfg.Address, "kas", balance)
	}

	mode := entities.ModeIncremental
	if cfg.FullResync {
		mode = entities.ModeFullResync
	}
	filters := entities.Filters{StartTime: cfg.StartTime, EndTime: cfg.EndTime}

	if err := coordinator.StartFetch(cfg.Address, mode, filters); err != nil {
		return fmt.Errorf("starting fetch: %v", err)
	}

	var drainer *delivery.Drainer
	if cfg.Elastic.Enabled {
		elasticClient, err := elastic.NewClient(cfg.Elastic.Address, cfg.Elastic.Index, cfg.Elastic.Timeout)
		if err != nil {
			return fmt.Errorf("creating elasticsearch client: %v", err)
		}
		mirror := consume.NewMirror(elasticClient, cfg.Elastic.Timeout, sLogger)
		drainer = mirror.Attach(coordinator.Deliveries(), cfg.PollInterval)
	} else {
		drainer = delivery.StartDrainer(coordinator.Deliveries(), cfg.PollInterval, func(batch []entities.Transaction) {
			sLogger.Infow("received transactions", "count", len(batch))
		})
	}
	defer drainer.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-shutdown:
			log.Printf("main: Shutdown requested, stopping active fetch")
			coordinator.StopFetch()
		case result := <-coordinator.Results():
			sLogger.Infow("fetch finished",
				"address", result.Address,
				"status", result.Status,
				"elapsed", result.Elapsed,
				"newTransactions", result.NewTransactions,
				"writeFailures", result.WriteFailures,
				"error", result.Err,
			)
			if result.Status == entities.StatusError {
				return fmt.Errorf("fetch error: %v", result.Err)
			}
			// leave time for the delayed compaction pass after a full resync
			if result.Mode == entities.ModeFullResync && result.Status == entities.StatusSuccess {
				time.Sleep(cfg.CompactionDelay + time.Second)
			}
			return nil
		case err := <-serverErr:
			return fmt.Errorf("server error: %v", err)
		}
	}
}
