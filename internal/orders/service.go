package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/fanout"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultCommissionRate dipakai kalau toko belum set rate sendiri.
// Rate efektif selalu ke-snapshot ke kolom commission order, jadi
// provenance-nya tercatat di order itu sendiri.
const DefaultCommissionRate = 0.05

type Service struct {
	Store     Store
	Producer  string           // nama service, masuk ke envelope event
	Publisher EventPublisher   // optional: fan-out realtime
	Stream    LifecycleStream  // optional: topic kafka durable
	Sink      NotificationSink // optional: notifikasi persist + push
}

// StatusUpdate: axis yang nil tidak diubah.
type StatusUpdate struct {
	PaymentStatus  *PaymentStatus  `json:"payment_status,omitempty"`
	DeliveryStatus *DeliveryStatus `json:"delivery_status,omitempty"`
}

// Checkout memecah cart per toko lalu menjalankan satu unit atomik per
// toko. Tidak ada atomicity lintas toko: order toko A bisa commit walau
// toko B gagal. Hasilnya "0..N order" + daftar kegagalan per toko supaya
// caller bisa menampilkan partial success dengan jujur.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) ([]Order, []ShopFailure, error) {
	intents, err := SplitCheckout(ctx, s.Store, req)
	if err != nil {
		return nil, nil, err
	}

	created := make([]*Order, len(intents))
	failed := make([]*ShopFailure, len(intents))
	var allEffects = make([][]Effect, len(intents))

	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range intents {
		i, intent := i, intent
		g.Go(func() error {
			o, effects, err := s.createForIntent(gctx, intent)
			if err != nil {
				reason := err.Error()
				if !IsBusinessError(err) {
					// detail error infra cuma buat log, jangan sampai ke client
					log.Printf("checkout shop=%s: %v", intent.ShopID, err)
					reason = "internal error, please retry"
				}
				failed[i] = &ShopFailure{ShopID: intent.ShopID, Reason: reason}
				return nil // gagal satu toko tidak membatalkan toko lain
			}
			created[i] = &o
			allEffects[i] = effects
			return nil
		})
	}
	_ = g.Wait()

	// side effect jalan setelah semua unit per toko resolve, di luar
	// batas transaksi
	for _, effects := range allEffects {
		s.runEffects(ctx, effects)
	}

	var ords []Order
	var fails []ShopFailure
	for i := range intents {
		if created[i] != nil {
			ords = append(ords, *created[i])
		}
		if failed[i] != nil {
			fails = append(fails, *failed[i])
		}
	}
	return ords, fails, nil
}

// createForIntent = transaction executor: validasi stok, snapshot harga,
// hitung komisi, kurangi stok + log SALE, insert order + item. Semua atau
// tidak sama sekali untuk satu toko.
func (s *Service) createForIntent(ctx context.Context, intent OrderIntent) (Order, []Effect, error) {
	var order Order
	var effects []Effect

	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		shop, err := tx.ShopByID(ctx, intent.ShopID)
		if err != nil {
			return err
		}
		rate := shop.CommissionRate
		if rate <= 0 {
			rate = DefaultCommissionRate
		}

		now := time.Now().UTC()
		orderID := uuid.NewString()
		var total, commission int64
		items := make([]OrderItem, 0, len(intent.Items))

		for _, it := range intent.Items {
			// re-read otoritatif DI DALAM transaksi (row lock); hasil
			// pre-fetch splitter bisa stale dan tidak boleh dipakai
			// untuk validasi stok
			p, err := tx.ProductForUpdate(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.TrackStock && p.Stock < it.Quantity {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   it.Quantity,
					Available:   p.Stock,
				}
			}

			// harga snapshot: buyer bayar harga katalog saat transaksi
			// ini, bukan saat add-to-cart
			subtotal := p.Price * int64(it.Quantity)
			total += subtotal
			commission += int64(math.Round(float64(subtotal) * rate))
			items = append(items, OrderItem{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				Price:       p.Price,
				Subtotal:    subtotal,
			})

			if p.TrackStock {
				if err := tx.AdjustStock(ctx, p.ID, p.ShopID, -it.Quantity, StockReasonSale); err != nil {
					return err
				}
			}
		}

		order = Order{
			ID:              orderID,
			BuyerID:         intent.BuyerID,
			ShopID:          intent.ShopID,
			TotalAmount:     total,
			Commission:      commission,
			NetAmount:       total - commission,
			PaymentStatus:   PaymentPending,
			DeliveryStatus:  DeliveryPending,
			Status:          StatusPending,
			PaymentMethod:   intent.PaymentMethod,
			ShippingAddress: intent.ShippingAddress,
			Notes:           intent.Notes,
			Items:           items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}

		effects = []Effect{{
			Event:    s.newEvent(EventOrderCreated, order.ID, orderPayload(&order)),
			Channels: orderChannels(&order),
			Notifications: []NotificationIntent{{
				UserID: shop.OwnerID,
				Title:  "New order received",
				Body:   fmt.Sprintf("Order %s: %d item(s), total %d", order.ID, len(items), total),
				Type:   NotifNewOrder,
				Link:   "/orders/" + order.ID,
			}},
		}}
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, effects, nil
}

// UpdateOrderStatus: hanya pemilik toko order tsb. Status agregat selalu
// diturunkan lewat DeriveStatus, tidak pernah di-set manual.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, upd StatusUpdate) (Order, error) {
	if upd.PaymentStatus != nil && !validPayment[*upd.PaymentStatus] {
		return Order{}, fmt.Errorf("%w: payment status %q", ErrInvalidTransition, *upd.PaymentStatus)
	}
	if upd.DeliveryStatus != nil && !validDelivery[*upd.DeliveryStatus] {
		return Order{}, fmt.Errorf("%w: delivery status %q", ErrInvalidTransition, *upd.DeliveryStatus)
	}

	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		if !ownsShop(actor, o.ShopID) {
			return nil, ErrUnauthorized
		}
		if o.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: order already %s", ErrInvalidTransition, o.Status)
		}
		prev := o.Status
		if upd.PaymentStatus != nil {
			o.PaymentStatus = *upd.PaymentStatus
		}
		if upd.DeliveryStatus != nil {
			o.DeliveryStatus = *upd.DeliveryStatus
		}
		o.Status = DeriveStatus(o.PaymentStatus, o.DeliveryStatus, prev)

		// update yang berujung cancelled (mis. payment failed) tetap
		// wajib restitusi stok, atomik dengan perubahan status
		if o.Status == StatusCancelled && prev != StatusCancelled {
			if err := restockItems(ctx, tx, o); err != nil {
				return nil, err
			}
		}

		return []Effect{{
			Event:    s.newEvent(EventOrderStatusChanged, o.ID, orderPayload(o)),
			Channels: orderChannels(o),
			Notifications: []NotificationIntent{{
				UserID: o.BuyerID,
				Title:  "Order status updated",
				Body:   fmt.Sprintf("Order %s: payment %s, delivery %s", o.ID, o.PaymentStatus, o.DeliveryStatus),
				Type:   NotifStatusChange,
				Link:   "/orders/" + o.ID,
			}},
		}}, nil
	})
}

// UploadPaymentProof: buyer simpan bukti transfer. Tidak mengubah
// paymentStatus; verifikasi tetap manual di sisi toko.
func (s *Service) UploadPaymentProof(ctx context.Context, actor Actor, orderID, proofRef string) (Order, error) {
	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		if actor.ID != o.BuyerID {
			return nil, ErrUnauthorized
		}
		if o.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: order already %s", ErrInvalidTransition, o.Status)
		}
		o.PaymentProof = proofRef

		shop, err := tx.ShopByID(ctx, o.ShopID)
		if err != nil {
			return nil, err
		}
		return []Effect{{
			Event:    s.newEvent(EventPaymentProofUploaded, o.ID, orderPayload(o)),
			Channels: orderChannels(o),
			Notifications: []NotificationIntent{{
				UserID: shop.OwnerID,
				Title:  "Payment proof uploaded",
				Body:   fmt.Sprintf("Buyer uploaded payment proof for order %s", o.ID),
				Type:   NotifPaymentProof,
				Link:   "/orders/" + o.ID,
			}},
		}}, nil
	})
}

// VerifyPayment: pemilik toko atau admin menandai pembayaran sah.
func (s *Service) VerifyPayment(ctx context.Context, actor Actor, orderID string) (Order, error) {
	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		if !ownsShop(actor, o.ShopID) && !actor.IsAdmin() {
			return nil, ErrUnauthorized
		}
		return s.markPaid(o)
	})
}

// ConfirmPayment: buyer lapor sudah bayar (self-report).
func (s *Service) ConfirmPayment(ctx context.Context, actor Actor, orderID string) (Order, error) {
	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		if actor.ID != o.BuyerID {
			return nil, ErrUnauthorized
		}
		return s.markPaid(o)
	})
}

func (s *Service) markPaid(o *Order) ([]Effect, error) {
	if o.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order already %s", ErrInvalidTransition, o.Status)
	}
	o.PaymentStatus = PaymentPaid
	o.Status = DeriveStatus(o.PaymentStatus, o.DeliveryStatus, o.Status)
	return []Effect{{
		Event:    s.newEvent(EventOrderStatusChanged, o.ID, orderPayload(o)),
		Channels: orderChannels(o),
		Notifications: []NotificationIntent{{
			UserID: o.BuyerID,
			Title:  "Payment confirmed",
			Body:   fmt.Sprintf("Payment for order %s is confirmed", o.ID),
			Type:   NotifStatusChange,
			Link:   "/orders/" + o.ID,
		}},
	}}, nil
}

// ReceiveOrder: buyer konfirmasi barang sampai. Payment ikut di-upgrade ke
// paid sebagai safety (barang diterima berarti transaksi selesai).
func (s *Service) ReceiveOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		if actor.ID != o.BuyerID {
			return nil, ErrUnauthorized
		}
		if o.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: order already %s", ErrInvalidTransition, o.Status)
		}
		o.DeliveryStatus = DeliveryDelivered
		o.PaymentStatus = PaymentPaid
		o.Status = DeriveStatus(o.PaymentStatus, o.DeliveryStatus, o.Status)

		return []Effect{{
			Event:    s.newEvent(EventOrderStatusChanged, o.ID, orderPayload(o)),
			Channels: orderChannels(o),
			Notifications: []NotificationIntent{{
				UserID: o.BuyerID,
				Title:  "Order completed",
				Body:   fmt.Sprintf("Order %s marked as received", o.ID),
				Type:   NotifStatusChange,
				Link:   "/orders/" + o.ID,
			}},
		}}, nil
	})
}

// CancelOrder: gate berbeda untuk buyer vs merchant, restitusi stok atomik
// dengan perubahan status. Cancel dua kali ditolak (terminal), jadi tidak
// mungkin double-restock.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	return s.transition(ctx, orderID, func(tx Tx, o *Order) ([]Effect, error) {
		var notifyUserID string
		switch {
		case actor.ID == o.BuyerID:
			if !canBuyerCancel(o) {
				return nil, fmt.Errorf("%w: buyer can only cancel while everything is pending", ErrInvalidTransition)
			}
			shop, err := tx.ShopByID(ctx, o.ShopID)
			if err != nil {
				return nil, err
			}
			notifyUserID = shop.OwnerID
		case ownsShop(actor, o.ShopID):
			if !canMerchantCancel(o) {
				return nil, fmt.Errorf("%w: order already shipped or finished", ErrInvalidTransition)
			}
			notifyUserID = o.BuyerID
		default:
			return nil, ErrUnauthorized
		}

		o.PaymentStatus = PaymentFailed
		o.DeliveryStatus = DeliveryCancelled
		o.Status = DeriveStatus(o.PaymentStatus, o.DeliveryStatus, o.Status)

		if err := restockItems(ctx, tx, o); err != nil {
			return nil, err
		}

		return []Effect{{
			Event:    s.newEvent(EventOrderCancelled, o.ID, orderPayload(o)),
			Channels: orderChannels(o),
			Notifications: []NotificationIntent{{
				UserID: notifyUserID,
				Title:  "Order cancelled",
				Body:   fmt.Sprintf("Order %s has been cancelled", o.ID),
				Type:   NotifCancelled,
				Link:   "/orders/" + o.ID,
			}},
		}}, nil
	})
}

// WriteOffExpired: sweep berkala menghapus stok kedaluwarsa. Admin only.
// Menghormati kontrak StockLog yang sama: counter turun + entry EXPIRED.
func (s *Service) WriteOffExpired(ctx context.Context, actor Actor, productID string, qty int) error {
	if !actor.IsAdmin() {
		return ErrUnauthorized
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	var effects []Effect
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		p, err := tx.ProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !p.TrackStock {
			return fmt.Errorf("%w: product %s does not track stock", ErrInvalidQuantity, productID)
		}
		if p.Stock < qty {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
		}
		if err := tx.AdjustStock(ctx, p.ID, p.ShopID, -qty, StockReasonExpired); err != nil {
			return err
		}
		effects = []Effect{{
			Event: s.newEvent(EventStockWrittenOff, "", StockWrittenOffPayload{
				ProductID: p.ID, ShopID: p.ShopID, Quantity: qty,
			}),
			Channels: []string{fanout.ShopChannel(p.ShopID)},
		}}
		return nil
	})
	if err != nil {
		return err
	}
	s.runEffects(ctx, effects)
	return nil
}

// GetOrder: read dengan cek kepemilikan ganda (buyer, pemilik toko, admin).
func (s *Service) GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	o, err := s.Store.OrderByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !actor.CanAccessOrder(o.BuyerID, o.ShopID) {
		return Order{}, ErrUnauthorized
	}
	return o, nil
}

// transition menjalankan satu langkah state machine: lock order, cek +
// mutasi lewat fn, simpan, lalu eksekusi effect setelah commit.
func (s *Service) transition(ctx context.Context, orderID string, fn func(tx Tx, o *Order) ([]Effect, error)) (Order, error) {
	var order Order
	var effects []Effect
	err := s.Store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		o.Items = items

		effects, err = fn(tx, &o)
		if err != nil {
			return err
		}
		o.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.runEffects(ctx, effects)
	return order, nil
}

// restockItems: restitusi stok saat cancel, kebalikan persis dari decrement
// SALE. Hanya produk yang track stock.
func restockItems(ctx context.Context, tx Tx, o *Order) error {
	for _, it := range o.Items {
		p, err := tx.ProductForUpdate(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if !p.TrackStock {
			continue
		}
		if err := tx.AdjustStock(ctx, p.ID, p.ShopID, it.Quantity, StockReasonCancelReturn); err != nil {
			return err
		}
	}
	return nil
}

func ownsShop(actor Actor, shopID string) bool {
	return actor.ShopID != "" && actor.ShopID == shopID
}

func orderChannels(o *Order) []string {
	return []string{fanout.UserChannel(o.BuyerID), fanout.ShopChannel(o.ShopID)}
}

func (s *Service) newEvent(eventType, orderID string, payload any) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Producer,
		CorrelationID: orderID,
		Payload:       mustMarshal(payload),
	}
}

// runEffects: best-effort, setelah commit. Gagal publish/notify cuma
// di-log; order yang sudah commit tidak boleh kelihatan gagal.
func (s *Service) runEffects(ctx context.Context, effects []Effect) {
	for _, ef := range effects {
		payload, err := json.Marshal(ef.Event)
		if err != nil {
			log.Printf("marshal event %s: %v", ef.Event.EventType, err)
			continue
		}
		if s.Publisher != nil {
			s.Publisher.Publish(ef.Channels, payload)
		}
		if s.Stream != nil {
			s.Stream.Publish(PartitionKey(ef.Event.CorrelationID), ef.Event.EventType, payload)
		}
		if s.Sink != nil {
			for _, n := range ef.Notifications {
				s.Sink.Notify(ctx, n)
			}
		}
	}
}
