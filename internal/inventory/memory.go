package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process ledger for tests and tools that run without PostgreSQL.
// WithTx serialises callers but does not roll back partial work.
type MemoryStore struct {
	mu       sync.Mutex
	products map[int64]ProductStock
	ledger   []Transaction
	nextID   int64
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[int64]ProductStock), now: time.Now}
}

// AddProduct registers or replaces a product.
func (m *MemoryStore) AddProduct(p ProductStock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ProductID] = p
}

// Stock returns the current stock of productID.
func (m *MemoryStore) Stock(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].CurrentStock
}

// Ledger returns a copy of every row posted so far, oldest first.
func (m *MemoryStore) Ledger() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.ledger))
	copy(out, m.ledger)
	return out
}

// WithTx implements RepositoryPort.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &memoryTx{store: m})
}

// Tx binds a TxRepository without taking the store lock. It is meant for fakes of other
// repositories whose own WithTx already serialises callers.
func (m *MemoryStore) Tx() TxRepository {
	return &memoryTx{store: m}
}

// ListTransactions implements RepositoryPort.
func (m *MemoryStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if filter.ProductID == 0 || m.ledger[i].ProductID == filter.ProductID {
			out = append(out, m.ledger[i])
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Reconcile implements RepositoryPort.
func (m *MemoryStore) Reconcile(_ context.Context, productID int64) (Reconciliation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return Reconciliation{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	rec := Reconciliation{ProductID: productID, CurrentStock: p.CurrentStock}
	for _, row := range m.ledger {
		if row.ProductID == productID {
			rec.LedgerTotal += row.QuantityChange
		}
	}
	rec.Drift = rec.CurrentStock - rec.LedgerTotal
	return rec, nil
}

type memoryTx struct {
	store *MemoryStore
}

func (tx *memoryTx) GetProductForUpdate(_ context.Context, productID int64) (ProductStock, error) {
	p, ok := tx.store.products[productID]
	if !ok {
		return ProductStock{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return p, nil
}

func (tx *memoryTx) UpdateStock(_ context.Context, productID int64, stock int) error {
	p, ok := tx.store.products[productID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	p.CurrentStock = stock
	tx.store.products[productID] = p
	return nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, entry Transaction) (Transaction, error) {
	tx.store.nextID++
	entry.ID = tx.store.nextID
	entry.TransactionDate = tx.store.now().UTC()
	tx.store.ledger = append(tx.store.ledger, entry)
	return entry, nil
}
