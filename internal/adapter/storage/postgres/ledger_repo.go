package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, wallet_id, owner_id, entry_type, amount, balance_before, balance_after,
	sequence, status, gateway, gateway_order_id, provider_txn_id, description, metadata,
	created_at, completed_at`

// LedgerRepo implements ports.LedgerRepository. Entries are only ever
// inserted, except that a PENDING entry is settled exactly once.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.WalletID, e.OwnerID, e.Type, e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.Sequence, e.Status, e.Gateway, e.GatewayOrderID, e.ProviderTxnID, e.Description, meta,
		e.CreatedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByOrderID fetches a gateway entry by its order id.
func (r *LedgerRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE gateway_order_id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, orderID))
}

// GetByOrderIDForUpdate locks a gateway entry row.
// This MUST be called within a transaction.
func (r *LedgerRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE gateway_order_id = $1 FOR UPDATE`
	return scanEntry(tx.QueryRow(ctx, query, orderID))
}

// Settle writes the terminal state of a PENDING entry.
func (r *LedgerRepo) Settle(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}

	query := `UPDATE ledger_entries
		SET amount = $1, balance_before = $2, balance_after = $3, sequence = $4, status = $5,
			provider_txn_id = $6, metadata = $7, completed_at = $8
		WHERE id = $9 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query,
		e.Amount, e.BalanceBefore, e.BalanceAfter, e.Sequence, e.Status,
		e.ProviderTxnID, meta, e.CompletedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("settle ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger entry %s is not pending", e.ID)
	}
	return nil
}

// List fetches an owner's entries, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
	args = append(args, params.OwnerID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("entry_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, total, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}

func scanEntryRow(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var meta []byte
	err := row.Scan(
		&e.ID, &e.WalletID, &e.OwnerID, &e.Type, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&e.Sequence, &e.Status, &e.Gateway, &e.GatewayOrderID, &e.ProviderTxnID, &e.Description, &meta,
		&e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return e, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
