package orders

import "context"

// Store adalah batas unit atomik. Implementasi postgres menjalankan fn di
// dalam satu transaksi pgx; implementasi memory men-serialize lewat mutex.
// fn return error -> rollback total, tidak ada partial state yang kelihatan.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// ProductsByIDs: batch lookup di luar transaksi, dipakai splitter untuk
	// grouping. Jangan dipakai untuk validasi stok (bisa stale).
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)

	ShopByID(ctx context.Context, id string) (Shop, error)
	OrderByID(ctx context.Context, id string) (Order, error)
}

// Tx adalah operasi per-baris di dalam unit atomik. ProductForUpdate dan
// OrderForUpdate wajib mengunci baris (lost-update prevention): dua checkout
// paralel terhadap produk yang sama tidak boleh dua-duanya lolos validasi.
type Tx interface {
	ProductForUpdate(ctx context.Context, id string) (Product, error)
	ShopByID(ctx context.Context, id string) (Shop, error)

	// AdjustStock mengubah counter stok dan append satu StockLogEntry dalam
	// langkah yang sama. Tidak ada jalur lain yang boleh menyentuh stok.
	AdjustStock(ctx context.Context, productID, shopID string, delta int, reason StockReason) error

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItems(ctx context.Context, items []OrderItem) error

	OrderForUpdate(ctx context.Context, id string) (Order, error)
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	UpdateOrder(ctx context.Context, o *Order) error

	// StockLogSum: jumlah delta log untuk satu produk, buat rekonsiliasi
	// audit berkala. Stok tetap counter independen, bukan proyeksi log.
	StockLogSum(ctx context.Context, productID string) (int, error)
}
