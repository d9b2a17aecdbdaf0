package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// memoryRepo is an in-process Repository. Reads return copies so a failed callback never
// leaks half-applied changes into stored documents.
type memoryRepo struct {
	mu         sync.Mutex
	counter    *numbering.MemoryCounter
	stock      *inventory.MemoryStore
	clients    map[int64]bool
	quotations map[int64]Quotation
	orders     map[int64]SalesOrder
	notes      []DeliveryNote
	nextID     int64
}

func newMemoryRepo(stock *inventory.MemoryStore) *memoryRepo {
	return &memoryRepo{
		counter:    numbering.NewMemoryCounter(),
		stock:      stock,
		clients:    map[int64]bool{1: true, 2: true},
		quotations: make(map[int64]Quotation),
		orders:     make(map[int64]SalesOrder),
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memoryTx{m})
}

func (m *memoryRepo) GetQuotation(_ context.Context, id int64) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotation(id)
}

func (m *memoryRepo) quotation(id int64) (Quotation, error) {
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, shared.NotFound("quotation", id)
	}
	q.Items = append([]QuotationItem(nil), q.Items...)
	return q, nil
}

func (m *memoryRepo) ListQuotations(_ context.Context, filter ListFilter) ([]Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotations {
		if filter.Status != "" && string(q.Status) != filter.Status {
			continue
		}
		if filter.ClientID != nil && q.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetSalesOrder(_ context.Context, id int64) (SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order(id)
}

func (m *memoryRepo) order(id int64) (SalesOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return SalesOrder{}, shared.NotFound("sales order", id)
	}
	o.Items = append([]SalesOrderItem(nil), o.Items...)
	return o, nil
}

func (m *memoryRepo) ListSalesOrders(_ context.Context, filter ListFilter) ([]SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SalesOrder
	for _, o := range m.orders {
		if filter.Status != "" && string(o.Status) != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) ListDeliveryNotes(_ context.Context, orderID int64) ([]DeliveryNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DeliveryNote
	for _, n := range m.notes {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memoryTx struct{ m *memoryRepo }

func (tx memoryTx) Counter() numbering.Counter     { return tx.m.counter }
func (tx memoryTx) Ledger() inventory.TxRepository { return tx.m.stock.Tx() }

func (tx memoryTx) InsertQuotation(_ context.Context, q Quotation) (Quotation, error) {
	if !tx.m.clients[q.ClientID] {
		return Quotation{}, shared.NotFound("client", q.ClientID)
	}
	q.ID = tx.m.id()
	q.CreatedAt = time.Now()
	for i := range q.Items {
		q.Items[i].ID = tx.m.id()
		q.Items[i].QuotationID = q.ID
	}
	tx.m.quotations[q.ID] = q
	return q, nil
}

func (tx memoryTx) GetQuotationForUpdate(_ context.Context, id int64) (Quotation, error) {
	return tx.m.quotation(id)
}

func (tx memoryTx) UpdateQuotationStatus(_ context.Context, id int64, status QuotationStatus) error {
	q, ok := tx.m.quotations[id]
	if !ok {
		return shared.NotFound("quotation", id)
	}
	q.Status = status
	tx.m.quotations[id] = q
	return nil
}

func (tx memoryTx) InsertSalesOrder(_ context.Context, o SalesOrder) (SalesOrder, error) {
	if !tx.m.clients[o.ClientID] {
		return SalesOrder{}, shared.NotFound("client", o.ClientID)
	}
	o.ID = tx.m.id()
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].ID = tx.m.id()
		o.Items[i].OrderID = o.ID
	}
	tx.m.orders[o.ID] = o
	return o, nil
}

func (tx memoryTx) OrderNumberForQuotation(_ context.Context, quotationID int64) (string, error) {
	for _, o := range tx.m.orders {
		if o.QuotationID != nil && *o.QuotationID == quotationID {
			return o.Number, nil
		}
	}
	return "", nil
}

func (tx memoryTx) GetSalesOrderForUpdate(_ context.Context, id int64) (SalesOrder, error) {
	return tx.m.order(id)
}

func (tx memoryTx) UpdateSalesOrderStatus(_ context.Context, id int64, status SalesOrderStatus) error {
	o, ok := tx.m.orders[id]
	if !ok {
		return shared.NotFound("sales order", id)
	}
	o.Status = status
	tx.m.orders[id] = o
	return nil
}

func (tx memoryTx) InsertDeliveryNote(_ context.Context, note DeliveryNote) (DeliveryNote, error) {
	note.ID = tx.m.id()
	for i := range note.Items {
		note.Items[i].ID = tx.m.id()
		note.Items[i].DeliveryID = note.ID
	}
	tx.m.notes = append(tx.m.notes, note)
	return note, nil
}

func (tx memoryTx) SetDeliveredQuantity(_ context.Context, orderItemID int64, delivered int) error {
	for id, o := range tx.m.orders {
		for i := range o.Items {
			if o.Items[i].ID != orderItemID {
				continue
			}
			items := append([]SalesOrderItem(nil), o.Items...)
			items[i].DeliveredQuantity = delivered
			o.Items = items
			tx.m.orders[id] = o
			return nil
		}
	}
	return shared.NotFound("sales order item", orderItemID)
}
