package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore: implementasi Store in-memory untuk test dan development
// tanpa postgres. Satu mutex kasar per transaksi = serializable; perubahan
// di-stage dulu dan baru di-apply saat fn sukses, jadi rollback beneran
// tidak meninggalkan partial state.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]Product
	shops    map[string]Shop
	orders   map[string]Order
	items    map[string][]OrderItem
	stockLog []StockLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[string]Product{},
		shops:    map[string]Shop{},
		orders:   map[string]Order{},
		items:    map[string][]OrderItem{},
	}
}

func (m *MemoryStore) SeedShop(s Shop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[s.ID] = s
}

func (m *MemoryStore) SeedProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// StockLog mengembalikan salinan log untuk assertion di test.
func (m *MemoryStore) StockLog() []StockLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StockLogEntry, len(m.stockLog))
	copy(out, m.stockLog)
	return out
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		store:    m,
		products: map[string]Product{},
		orders:   map[string]Order{},
		items:    map[string][]OrderItem{},
	}
	if err := fn(tx); err != nil {
		return err // staged changes dibuang
	}

	// commit: apply staged state ke base
	for id, p := range tx.products {
		m.products[id] = p
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	for id, its := range tx.items {
		m.items[id] = its
	}
	m.stockLog = append(m.stockLog, tx.stockLog...)
	return nil
}

func (m *MemoryStore) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryStore) ShopByID(ctx context.Context, id string) (Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return Shop{}, fmt.Errorf("%w: %s", ErrShopNotFound, id)
	}
	return s, nil
}

func (m *MemoryStore) OrderByID(ctx context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	o.Items = append([]OrderItem(nil), m.items[id]...)
	return o, nil
}

type memTx struct {
	store    *MemoryStore
	products map[string]Product
	orders   map[string]Order
	items    map[string][]OrderItem
	stockLog []StockLogEntry
}

func (t *memTx) product(id string) (Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	p, ok := t.store.products[id]
	return p, ok
}

func (t *memTx) ProductForUpdate(ctx context.Context, id string) (Product, error) {
	p, ok := t.product(id)
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

func (t *memTx) ShopByID(ctx context.Context, id string) (Shop, error) {
	s, ok := t.store.shops[id]
	if !ok {
		return Shop{}, fmt.Errorf("%w: %s", ErrShopNotFound, id)
	}
	return s, nil
}

func (t *memTx) AdjustStock(ctx context.Context, productID, shopID string, delta int, reason StockReason) error {
	p, ok := t.product(productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	p.Stock += delta
	if p.TrackStock && p.Stock < 0 {
		return fmt.Errorf("stock for %s would go negative", productID)
	}
	p.UpdatedAt = time.Now().UTC()
	t.products[productID] = p
	t.stockLog = append(t.stockLog, StockLogEntry{
		ID:        uuid.NewString(),
		ProductID: productID,
		ShopID:    shopID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	stored := *o
	stored.Items = nil // items disimpan terpisah
	t.orders[o.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItems(ctx context.Context, items []OrderItem) error {
	for _, it := range items {
		t.items[it.OrderID] = append(t.items[it.OrderID], it)
	}
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, id string) (Order, error) {
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	o, ok := t.store.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o, nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	if its, ok := t.items[orderID]; ok {
		return append([]OrderItem(nil), its...), nil
	}
	return append([]OrderItem(nil), t.store.items[orderID]...), nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *Order) error {
	stored := *o
	stored.Items = nil
	t.orders[o.ID] = stored
	return nil
}

func (t *memTx) StockLogSum(ctx context.Context, productID string) (int, error) {
	sum := 0
	for _, e := range t.store.stockLog {
		if e.ProductID == productID {
			sum += e.Delta
		}
	}
	for _, e := range t.stockLog {
		if e.ProductID == productID {
			sum += e.Delta
		}
	}
	return sum, nil
}
