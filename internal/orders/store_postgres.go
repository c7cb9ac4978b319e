package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore: implementasi Store di atas pgxpool. Unit atomik = satu
// transaksi pgx; baris yang dikunci pakai SELECT ... FOR UPDATE.
type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := s.DB.Query(ctx, `SELECT id, shop_id, name, price, stock, track_stock, created_at, updated_at
		FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Stock, &p.TrackStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) ShopByID(ctx context.Context, id string) (Shop, error) {
	return scanShop(s.DB.QueryRow(ctx, `SELECT id, owner_id, name, commission_rate, created_at
		FROM shops WHERE id=$1`, id), id)
}

func (s *PostgresStore) OrderByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, selectOrder+` WHERE id=$1`, id), id)
	if err != nil {
		return Order{}, err
	}
	rows, err := s.DB.Query(ctx, selectItems, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	o.Items, err = collectItems(rows)
	return o, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ProductForUpdate(ctx context.Context, id string) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `SELECT id, shop_id, name, price, stock, track_stock, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Stock, &p.TrackStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, err
}

func (t *pgTx) ShopByID(ctx context.Context, id string) (Shop, error) {
	return scanShop(t.tx.QueryRow(ctx, `SELECT id, owner_id, name, commission_rate, created_at
		FROM shops WHERE id=$1`, id), id)
}

func (t *pgTx) AdjustStock(ctx context.Context, productID, shopID string, delta int, reason StockReason) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
		productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO stock_log(id, product_id, shop_id, delta, reason)
		VALUES ($1,$2,$3,$4,$5)`, uuid.NewString(), productID, shopID, delta, string(reason))
	return err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO orders(
			id, buyer_id, shop_id, total_amount, commission, net_amount,
			payment_status, delivery_status, status,
			payment_method, payment_proof, shipping_address, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.BuyerID, o.ShopID, o.TotalAmount, o.Commission, o.NetAmount,
		string(o.PaymentStatus), string(o.DeliveryStatus), string(o.Status),
		o.PaymentMethod, o.PaymentProof, o.ShippingAddress, o.Notes, o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *pgTx) InsertOrderItems(ctx context.Context, items []OrderItem) error {
	for _, it := range items {
		if _, err := t.tx.Exec(ctx, `INSERT INTO order_items(id, order_id, product_id, product_name, qty, price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.Price, it.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) OrderForUpdate(ctx context.Context, id string) (Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, selectOrder+` WHERE id=$1 FOR UPDATE`, id), id)
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := t.tx.Query(ctx, selectItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET
			payment_status=$2, delivery_status=$3, status=$4,
			payment_proof=$5, updated_at=$6
		WHERE id=$1`,
		o.ID, string(o.PaymentStatus), string(o.DeliveryStatus), string(o.Status),
		o.PaymentProof, o.UpdatedAt)
	return err
}

func (t *pgTx) StockLogSum(ctx context.Context, productID string) (int, error) {
	var sum int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(delta),0) FROM stock_log WHERE product_id=$1`,
		productID).Scan(&sum)
	return sum, err
}

const selectOrder = `SELECT id, buyer_id, shop_id, total_amount, commission, net_amount,
	payment_status, delivery_status, status,
	payment_method, COALESCE(payment_proof,''), shipping_address, COALESCE(notes,''),
	created_at, updated_at
	FROM orders`

const selectItems = `SELECT id, order_id, product_id, product_name, qty, price, subtotal
	FROM order_items WHERE order_id=$1 ORDER BY id`

func scanOrder(row pgx.Row, id string) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.ShopID, &o.TotalAmount, &o.Commission, &o.NetAmount,
		&o.PaymentStatus, &o.DeliveryStatus, &o.Status,
		&o.PaymentMethod, &o.PaymentProof, &o.ShippingAddress, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o, err
}

func scanShop(row pgx.Row, id string) (Shop, error) {
	var s Shop
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.CommissionRate, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shop{}, fmt.Errorf("%w: %s", ErrShopNotFound, id)
	}
	return s, err
}

func collectItems(rows pgx.Rows) ([]OrderItem, error) {
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
