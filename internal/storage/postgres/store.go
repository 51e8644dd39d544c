package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pabloScope/internal/model"
	"pabloScope/internal/numeric"
	"pabloScope/internal/storage"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Store provides Postgres persistence for pools, ledger entries and vesting schedules.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RunInTx runs fn inside one database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// classify maps driver errors onto the storage sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
		case pgErr.Code == serializationFailure, pgErr.Code == deadlockDetected, strings.HasPrefix(pgErr.Code, "08"):
			return storage.Transient(err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return storage.Transient(err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

const poolColumns = `id, owner, quote_asset_id, total_liquidity::text, total_volume::text,
	transaction_count, calculated_timestamp, block_number`

func (t *pgTx) Pool(ctx context.Context, id string) (*model.Pool, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pablo_pool WHERE id=$1`, id)

	var (
		p                       model.Pool
		quoteAsset, calc, block int64
		liquidity, volume       string
	)
	if err := row.Scan(&p.ID, &p.Owner, &quoteAsset, &liquidity, &volume, &p.TransactionCount, &calc, &block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(fmt.Errorf("select pool: %w", err))
	}

	var err error
	if p.TotalLiquidity, err = numeric.ParseDecimal(liquidity); err != nil {
		return nil, err
	}
	if p.TotalVolume, err = numeric.ParseDecimal(volume); err != nil {
		return nil, err
	}
	p.QuoteAssetID = uint64(quoteAsset)
	p.CalculatedTimestamp = calc
	p.BlockNumber = uint64(block)
	return &p, nil
}

// SavePool inserts or updates a pool.
func (t *pgTx) SavePool(ctx context.Context, pool *model.Pool) error {
	if pool == nil || pool.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pablo_pool (
			id, owner, quote_asset_id, total_liquidity, total_volume,
			transaction_count, calculated_timestamp, block_number
		) VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			owner = EXCLUDED.owner,
			quote_asset_id = EXCLUDED.quote_asset_id,
			total_liquidity = EXCLUDED.total_liquidity,
			total_volume = EXCLUDED.total_volume,
			transaction_count = EXCLUDED.transaction_count,
			calculated_timestamp = EXCLUDED.calculated_timestamp,
			block_number = EXCLUDED.block_number
	`,
		pool.ID,
		pool.Owner,
		int64(pool.QuoteAssetID),
		numeric.FormatTotal(pool.TotalLiquidity),
		numeric.FormatTotal(pool.TotalVolume),
		pool.TransactionCount,
		pool.CalculatedTimestamp,
		int64(pool.BlockNumber),
	)
	if err != nil {
		return classify(fmt.Errorf("upsert pool: %w", err))
	}
	return nil
}

const assetColumns = `id, pool_id, asset_id, total_liquidity::text, total_volume::text,
	calculated_timestamp, block_number`

func scanAsset(row pgx.Row) (*model.PoolAsset, error) {
	var (
		a                    model.PoolAsset
		assetID, calc, block int64
		liquidity, volume    string
	)
	if err := row.Scan(&a.ID, &a.PoolID, &assetID, &liquidity, &volume, &calc, &block); err != nil {
		return nil, err
	}
	var err error
	if a.TotalLiquidity, err = numeric.ParseBigInt(liquidity); err != nil {
		return nil, err
	}
	if a.TotalVolume, err = numeric.ParseBigInt(volume); err != nil {
		return nil, err
	}
	a.AssetID = uint64(assetID)
	a.CalculatedTimestamp = calc
	a.BlockNumber = uint64(block)
	return &a, nil
}

func (t *pgTx) PoolAsset(ctx context.Context, id string) (*model.PoolAsset, error) {
	asset, err := scanAsset(t.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM pablo_pool_asset WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(fmt.Errorf("select pool asset: %w", err))
	}
	return asset, nil
}

func (t *pgTx) PoolAssets(ctx context.Context, poolID string) ([]*model.PoolAsset, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+assetColumns+` FROM pablo_pool_asset WHERE pool_id=$1 ORDER BY asset_id`, poolID)
	if err != nil {
		return nil, classify(fmt.Errorf("select pool assets: %w", err))
	}
	defer rows.Close()

	var result []*model.PoolAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool asset: %w", err)
		}
		result = append(result, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate pool assets: %w", err))
	}
	return result, nil
}

// SavePoolAsset inserts or updates a pool asset.
func (t *pgTx) SavePoolAsset(ctx context.Context, asset *model.PoolAsset) error {
	if asset == nil || asset.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pablo_pool_asset (
			id, pool_id, asset_id, total_liquidity, total_volume, calculated_timestamp, block_number
		) VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			total_liquidity = EXCLUDED.total_liquidity,
			total_volume = EXCLUDED.total_volume,
			calculated_timestamp = EXCLUDED.calculated_timestamp,
			block_number = EXCLUDED.block_number
	`,
		asset.ID,
		asset.PoolID,
		int64(asset.AssetID),
		intText(asset.TotalLiquidity),
		intText(asset.TotalVolume),
		asset.CalculatedTimestamp,
		int64(asset.BlockNumber),
	)
	if err != nil {
		return classify(fmt.Errorf("upsert pool asset: %w", err))
	}
	return nil
}

const transactionColumns = `id, event_id, pool_id, who, transaction_type, spot_price::text,
	base_asset_id, base_asset_amount::text, quote_asset_id, quote_asset_amount::text,
	block_number, received_timestamp`

func scanTransaction(row pgx.Row) (*model.PabloTransaction, error) {
	var (
		rec                     model.PabloTransaction
		txType                  string
		baseID, quoteID, block  int64
		baseAmount, quoteAmount string
	)
	if err := row.Scan(&rec.ID, &rec.EventID, &rec.PoolID, &rec.Who, &txType, &rec.SpotPrice,
		&baseID, &baseAmount, &quoteID, &quoteAmount, &block, &rec.ReceivedTimestamp); err != nil {
		return nil, err
	}
	var err error
	if rec.BaseAssetAmount, err = numeric.ParseBigInt(baseAmount); err != nil {
		return nil, err
	}
	if rec.QuoteAssetAmount, err = numeric.ParseBigInt(quoteAmount); err != nil {
		return nil, err
	}
	rec.Type = model.TransactionType(txType)
	rec.BaseAssetID = uint64(baseID)
	rec.QuoteAssetID = uint64(quoteID)
	rec.BlockNumber = uint64(block)
	return &rec, nil
}

func (t *pgTx) Transaction(ctx context.Context, id string) (*model.PabloTransaction, error) {
	rec, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM pablo_transaction WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(fmt.Errorf("select transaction: %w", err))
	}
	return rec, nil
}

// InsertTransaction adds a ledger entry. Returns ErrDuplicateKey if the id exists.
func (t *pgTx) InsertTransaction(ctx context.Context, rec *model.PabloTransaction) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pablo_transaction (
			id, event_id, pool_id, who, transaction_type, spot_price,
			base_asset_id, base_asset_amount, quote_asset_id, quote_asset_amount,
			block_number, received_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8::text::numeric, $9, $10::text::numeric, $11, $12)
	`,
		rec.ID,
		rec.EventID,
		rec.PoolID,
		rec.Who,
		string(rec.Type),
		rec.SpotPrice,
		int64(rec.BaseAssetID),
		intText(rec.BaseAssetAmount),
		int64(rec.QuoteAssetID),
		intText(rec.QuoteAssetAmount),
		int64(rec.BlockNumber),
		rec.ReceivedTimestamp,
	)
	if err != nil {
		return classify(fmt.Errorf("insert transaction: %w", err))
	}
	return nil
}

// PoolTransactions returns the newest ledger entries of a pool first. A
// non-positive limit returns all of them.
func (t *pgTx) PoolTransactions(ctx context.Context, poolID string, limit int) ([]*model.PabloTransaction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM pablo_transaction
		WHERE pool_id=$1
		ORDER BY block_number DESC, id DESC
		LIMIT NULLIF($2::bigint, 0)
	`, poolID, int64(max(limit, 0)))
	if err != nil {
		return nil, classify(fmt.Errorf("select pool transactions: %w", err))
	}
	defer rows.Close()

	var result []*model.PabloTransaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate pool transactions: %w", err))
	}
	return result, nil
}

func (t *pgTx) InsertVestingSchedule(ctx context.Context, schedule *model.VestingSchedule) error {
	if schedule == nil || schedule.ID == "" {
		return storage.ErrInvalidInput
	}
	body, err := json.Marshal(schedule.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO vesting_schedule (id, from_account, to_account, event_id, schedule_id, schedule)
		VALUES ($1, $2, $3, $4, $5, $6::text::jsonb)
	`,
		schedule.ID,
		schedule.From,
		schedule.To,
		schedule.EventID,
		schedule.ScheduleID,
		string(body),
	)
	if err != nil {
		return classify(fmt.Errorf("insert vesting schedule: %w", err))
	}
	return nil
}

func (t *pgTx) VestingSchedules(ctx context.Context, scheduleID string) ([]*model.VestingSchedule, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, from_account, to_account, event_id, schedule_id, schedule::text
		FROM vesting_schedule
		WHERE schedule_id=$1
		ORDER BY event_id, id
	`, scheduleID)
	if err != nil {
		return nil, classify(fmt.Errorf("select vesting schedules: %w", err))
	}
	defer rows.Close()

	var result []*model.VestingSchedule
	for rows.Next() {
		var (
			v    model.VestingSchedule
			body string
		)
		if err := rows.Scan(&v.ID, &v.From, &v.To, &v.EventID, &v.ScheduleID, &body); err != nil {
			return nil, fmt.Errorf("scan vesting schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &v.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule %s: %w", v.ID, err)
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate vesting schedules: %w", err))
	}
	return result, nil
}

// Cursor returns the stored position for a name.
func (t *pgTx) Cursor(ctx context.Context, name string) (model.Cursor, bool, error) {
	if name == "" {
		return model.Cursor{}, false, fmt.Errorf("state name required")
	}
	var (
		c            model.Cursor
		block, index int64
	)
	row := t.tx.QueryRow(ctx, `SELECT block_number, index_in_block, event_id FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block, &index, &c.EventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, classify(fmt.Errorf("select cursor: %w", err))
	}
	c.BlockNumber = uint64(block)
	c.IndexInBlock = uint32(index)
	return c, true, nil
}

// SaveCursor upserts the position for a name.
func (t *pgTx) SaveCursor(ctx context.Context, name string, cursor model.Cursor) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO indexer_state (name, block_number, index_in_block, event_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number,
			index_in_block = EXCLUDED.index_in_block,
			event_id = EXCLUDED.event_id,
			updated_at = now()
	`, name, int64(cursor.BlockNumber), int64(cursor.IndexInBlock), cursor.EventID)
	if err != nil {
		return classify(fmt.Errorf("save cursor: %w", err))
	}
	return nil
}

func intText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
