package memory

import (
	"context"
	"sort"
	"sync"

	"pabloScope/internal/model"
	"pabloScope/internal/storage"
)

// Store is an in-memory implementation of storage.Store. Units of work run
// one at a time; their writes are staged and applied only on success.
type Store struct {
	mu        sync.Mutex
	pools     map[string]*model.Pool
	assets    map[string]*model.PoolAsset
	txs       map[string]*model.PabloTransaction
	schedules map[string]*model.VestingSchedule
	cursors   map[string]model.Cursor
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		pools:     make(map[string]*model.Pool),
		assets:    make(map[string]*model.PoolAsset),
		txs:       make(map[string]*model.PabloTransaction),
		schedules: make(map[string]*model.VestingSchedule),
		cursors:   make(map[string]model.Cursor),
	}
}

func (s *Store) Close() {}

// RunInTx runs fn against a staged view of the store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Counts reports how many entities of each kind are stored.
func (s *Store) Counts() (pools, assets, transactions, schedules int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools), len(s.assets), len(s.txs), len(s.schedules)
}

type tx struct {
	store     *Store
	pools     map[string]*model.Pool
	assets    map[string]*model.PoolAsset
	txs       map[string]*model.PabloTransaction
	schedules map[string]*model.VestingSchedule
	cursors   map[string]model.Cursor
}

func newTx(s *Store) *tx {
	return &tx{
		store:     s,
		pools:     make(map[string]*model.Pool),
		assets:    make(map[string]*model.PoolAsset),
		txs:       make(map[string]*model.PabloTransaction),
		schedules: make(map[string]*model.VestingSchedule),
		cursors:   make(map[string]model.Cursor),
	}
}

func (t *tx) commit() {
	for id, p := range t.pools {
		t.store.pools[id] = p
	}
	for id, a := range t.assets {
		t.store.assets[id] = a
	}
	for id, rec := range t.txs {
		t.store.txs[id] = rec
	}
	for id, v := range t.schedules {
		t.store.schedules[id] = v
	}
	for name, c := range t.cursors {
		t.store.cursors[name] = c
	}
}

func (t *tx) Pool(_ context.Context, id string) (*model.Pool, error) {
	if p, ok := t.pools[id]; ok {
		return p.Clone(), nil
	}
	if p, ok := t.store.pools[id]; ok {
		return p.Clone(), nil
	}
	return nil, storage.ErrNotFound
}

func (t *tx) SavePool(_ context.Context, pool *model.Pool) error {
	if pool == nil || pool.ID == "" {
		return storage.ErrInvalidInput
	}
	t.pools[pool.ID] = pool.Clone()
	return nil
}

func (t *tx) PoolAsset(_ context.Context, id string) (*model.PoolAsset, error) {
	if a, ok := t.assets[id]; ok {
		return a.Clone(), nil
	}
	if a, ok := t.store.assets[id]; ok {
		return a.Clone(), nil
	}
	return nil, storage.ErrNotFound
}

func (t *tx) PoolAssets(_ context.Context, poolID string) ([]*model.PoolAsset, error) {
	merged := make(map[string]*model.PoolAsset)
	for id, a := range t.store.assets {
		if a.PoolID == poolID {
			merged[id] = a
		}
	}
	for id, a := range t.assets {
		if a.PoolID == poolID {
			merged[id] = a
		}
	}

	result := make([]*model.PoolAsset, 0, len(merged))
	for _, a := range merged {
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssetID < result[j].AssetID
	})
	return result, nil
}

func (t *tx) SavePoolAsset(_ context.Context, asset *model.PoolAsset) error {
	if asset == nil || asset.ID == "" {
		return storage.ErrInvalidInput
	}
	t.assets[asset.ID] = asset.Clone()
	return nil
}

func (t *tx) Transaction(_ context.Context, id string) (*model.PabloTransaction, error) {
	if rec, ok := t.txs[id]; ok {
		return rec.Clone(), nil
	}
	if rec, ok := t.store.txs[id]; ok {
		return rec.Clone(), nil
	}
	return nil, storage.ErrNotFound
}

// InsertTransaction adds a ledger entry. Returns ErrDuplicateKey if the id exists.
func (t *tx) InsertTransaction(_ context.Context, rec *model.PabloTransaction) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}
	if _, ok := t.txs[rec.ID]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := t.store.txs[rec.ID]; ok {
		return storage.ErrDuplicateKey
	}
	t.txs[rec.ID] = rec.Clone()
	return nil
}

// PoolTransactions returns the newest ledger entries of a pool first.
func (t *tx) PoolTransactions(_ context.Context, poolID string, limit int) ([]*model.PabloTransaction, error) {
	merged := make(map[string]*model.PabloTransaction)
	for id, rec := range t.store.txs {
		if rec.PoolID == poolID {
			merged[id] = rec
		}
	}
	for id, rec := range t.txs {
		if rec.PoolID == poolID {
			merged[id] = rec
		}
	}

	result := make([]*model.PabloTransaction, 0, len(merged))
	for _, rec := range merged {
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *tx) InsertVestingSchedule(_ context.Context, schedule *model.VestingSchedule) error {
	if schedule == nil || schedule.ID == "" {
		return storage.ErrInvalidInput
	}
	if _, ok := t.schedules[schedule.ID]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := t.store.schedules[schedule.ID]; ok {
		return storage.ErrDuplicateKey
	}
	t.schedules[schedule.ID] = schedule.Clone()
	return nil
}

// VestingSchedules returns all schedules sharing scheduleID, ordered by event id.
func (t *tx) VestingSchedules(_ context.Context, scheduleID string) ([]*model.VestingSchedule, error) {
	var result []*model.VestingSchedule
	for _, v := range t.store.schedules {
		if v.ScheduleID == scheduleID {
			result = append(result, v.Clone())
		}
	}
	for _, v := range t.schedules {
		if v.ScheduleID == scheduleID {
			result = append(result, v.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EventID != result[j].EventID {
			return result[i].EventID < result[j].EventID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *tx) Cursor(_ context.Context, name string) (model.Cursor, bool, error) {
	if name == "" {
		return model.Cursor{}, false, storage.ErrInvalidInput
	}
	if c, ok := t.cursors[name]; ok {
		return c, true, nil
	}
	c, ok := t.store.cursors[name]
	return c, ok, nil
}

func (t *tx) SaveCursor(_ context.Context, name string, cursor model.Cursor) error {
	if name == "" {
		return storage.ErrInvalidInput
	}
	t.cursors[name] = cursor
	return nil
}
