// Package sqlite persists canonical transactions in a local SQLite
// database. The table is keyed by txid: upserts replace the whole row
// on conflict, so re-ingesting history is idempotent.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

//go:embed schema.sql
var schemaSQL string

// emptySetSentinel is the stored representation of an empty
// counterparty set (a coinbase transaction has no input addresses).
const emptySetSentinel = "N/A"

type Store struct {
	db *sql.DB
}

// Open creates or opens the transaction database at path. WAL mode
// keeps reads concurrent with the single writer; the connection pool is
// capped at one connection because SQLite allows one writer at a time.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to database")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "executing %q", pragma)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "applying schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertTransactions writes one batch in a single database transaction.
// A txid conflict replaces the stored row wholly.
func (s *Store) UpsertTransactions(ctx context.Context, txs []entities.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions
		(txid, address, direction, from_address, to_address, amount, values_json, block_height, timestamp, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid) DO UPDATE SET
			address = excluded.address,
			direction = excluded.direction,
			from_address = excluded.from_address,
			to_address = excluded.to_address,
			amount = excluded.amount,
			values_json = excluded.values_json,
			block_height = excluded.block_height,
			timestamp = excluded.timestamp,
			kind = excluded.kind
	`)
	if err != nil {
		return errors.Wrap(err, "preparing upsert")
	}
	defer stmt.Close()

	for _, tx := range txs {
		valuesJSON, err := json.Marshal(tx.Values)
		if err != nil {
			return errors.Wrapf(err, "serializing values for %s", tx.TxID)
		}
		_, err = stmt.ExecContext(ctx,
			tx.TxID,
			tx.Address,
			string(tx.Direction),
			joinAddressSet(tx.From),
			joinAddressSet(tx.To),
			tx.Amount,
			string(valuesJSON),
			tx.BlockHeight,
			tx.Timestamp,
			string(tx.Kind),
		)
		if err != nil {
			return errors.Wrapf(err, "upserting %s", tx.TxID)
		}
	}

	return errors.Wrap(dbTx.Commit(), "committing batch")
}

// ExistingTxIDs returns the set of txids already persisted for an
// address, used by incremental syncs for in-memory dedup.
func (s *Store) ExistingTxIDs(ctx context.Context, address string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT txid FROM transactions WHERE address = ?", address)
	if err != nil {
		return nil, errors.Wrap(err, "querying existing txids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var txid string
		if err := rows.Scan(&txid); err != nil {
			return nil, errors.Wrap(err, "scanning txid")
		}
		ids[txid] = struct{}{}
	}
	return ids, errors.Wrap(rows.Err(), "iterating txids")
}

// DeleteForAddress removes the address's whole local history.
func (s *Store) DeleteForAddress(ctx context.Context, address string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE address = ?", address)
	if err != nil {
		return 0, errors.Wrap(err, "deleting transactions")
	}
	deleted, err := result.RowsAffected()
	return deleted, errors.Wrap(err, "counting deleted rows")
}

// CountForAddress returns the number of persisted rows for an address.
func (s *Store) CountForAddress(ctx context.Context, address string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE address = ?", address).Scan(&count)
	return count, errors.Wrap(err, "counting transactions")
}

// FilterTransactions reads the address's history newest first, bounded
// by the filter's time range, kind, direction and free-text search over
// txid and counterparties.
func (s *Store) FilterTransactions(ctx context.Context, address string, filters entities.Filters) ([]entities.Transaction, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT txid, address, direction, from_address, to_address, amount, values_json, block_height, timestamp, kind
		FROM transactions WHERE address = ?`)
	args := []any{address}

	if filters.StartTime > 0 {
		query.WriteString(" AND timestamp >= ?")
		args = append(args, filters.StartTime)
	}
	if filters.EndTime > 0 {
		query.WriteString(" AND timestamp <= ?")
		args = append(args, filters.EndTime)
	}
	if filters.Kind != "" {
		query.WriteString(" AND kind = ?")
		args = append(args, string(filters.Kind))
	}
	if filters.Direction != "" {
		query.WriteString(" AND direction = ?")
		args = append(args, string(filters.Direction))
	}
	if filters.Search != "" {
		query.WriteString(" AND (txid LIKE ? OR from_address LIKE ? OR to_address LIKE ?)")
		like := "%" + filters.Search + "%"
		args = append(args, like, like, like)
	}
	query.WriteString(" ORDER BY timestamp DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	defer rows.Close()

	var txs []entities.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, errors.Wrap(rows.Err(), "iterating transactions")
}

// Compact reclaims space after bulk delete/rewrite. Callers must make
// sure no write is in flight; the session coordinator schedules this
// only after its writer has drained.
func (s *Store) Compact(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return errors.Wrap(err, "vacuuming database")
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.Wrap(err, "truncating wal")
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (entities.Transaction, error) {
	var (
		tx         entities.Transaction
		direction  string
		from       string
		to         string
		valuesJSON string
		kind       string
	)
	err := rows.Scan(&tx.TxID, &tx.Address, &direction, &from, &to, &tx.Amount, &valuesJSON, &tx.BlockHeight, &tx.Timestamp, &kind)
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "scanning transaction")
	}

	tx.Direction = entities.Direction(direction)
	tx.Kind = entities.Kind(kind)
	tx.From = splitAddressSet(from)
	tx.To = splitAddressSet(to)

	if err := json.Unmarshal([]byte(valuesJSON), &tx.Values); err != nil {
		return entities.Transaction{}, errors.Wrapf(err, "deserializing values for %s", tx.TxID)
	}
	return tx, nil
}

func joinAddressSet(addrs []string) string {
	if len(addrs) == 0 {
		return emptySetSentinel
	}
	return strings.Join(addrs, ", ")
}

func splitAddressSet(joined string) []string {
	if joined == "" || joined == emptySetSentinel {
		return nil
	}
	return strings.Split(joined, ", ")
}
