package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Identitas datang dari gateway upstream yang sudah autentikasi; handler
// tinggal baca header. Issuance token bukan urusan service ini.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
	headerShopID = "X-Shop-ID"
)

// StatusCache: read-only lookup ke cache status yang diisi worker
// statuscache. redisx.Cache memenuhinya; nil berarti selalu fallback DB.
type StatusCache interface {
	Get(ctx context.Context, key string) (string, error)
}

type OrdersHandler struct {
	Service     *orders.Service
	NotifyStore notify.Store
	Cache       StatusCache // optional, cache status
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/checkout", h.checkout)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)
		r.Patch("/orders/{id}/status", h.updateStatus)
		r.Post("/orders/{id}/payment-proof", h.uploadPaymentProof)
		r.Post("/orders/{id}/verify-payment", h.verifyPayment)
		r.Post("/orders/{id}/confirm-payment", h.confirmPayment)
		r.Post("/orders/{id}/receive", h.receiveOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
		r.Get("/notifications", h.listNotifications)
		r.Post("/admin/stock/write-off", h.writeOffStock)
	})
}

func actorFrom(r *http.Request) (orders.Actor, bool) {
	id := r.Header.Get(headerUserID)
	if id == "" {
		return orders.Actor{}, false
	}
	role := orders.Role(r.Header.Get(headerRole))
	if role == "" {
		role = orders.RoleBuyer
	}
	return orders.Actor{ID: id, Role: role, ShopID: r.Header.Get(headerShopID)}, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var stockErr *orders.InsufficientStockError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &stockErr), errors.Is(err, orders.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, orders.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrUnknownProduct),
		errors.Is(err, orders.ErrShopNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrEmptyCart), errors.Is(err, orders.ErrInvalidQuantity):
		code = http.StatusBadRequest
	case orders.IsBusinessError(err):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		// jangan bocorkan detail infra ke client; aman untuk retry
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type checkoutRequest struct {
	Items           []orders.CartItem `json:"items"`
	PaymentMethod   string            `json:"payment_method"`
	ShippingAddress string            `json:"shipping_address"`
	Notes           string            `json:"notes"`
}

type checkoutResponse struct {
	Orders   []orderResponse      `json:"orders"`
	Failures []orders.ShopFailure `json:"failures,omitempty"`
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	created, failures, err := h.Service.Checkout(ctx, orders.CheckoutRequest{
		BuyerID:         actor.ID,
		Items:           req.Items,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := checkoutResponse{Failures: failures}
	for i := range created {
		resp.Orders = append(resp.Orders, toOrderResponse(&created[i]))
	}
	code := http.StatusCreated
	if len(created) == 0 {
		code = http.StatusConflict // semua grup toko gagal
	}
	writeJSON(w, code, resp)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	o, err := h.Service.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(&o))
}

// getOrderStatus: coba cache redis dulu (diisi worker statuscache),
// fallback DB kalau miss.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	orderID := chi.URLParam(r, "id")

	if h.Cache != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Cache.Get(r.Context(), key); err == nil && s != "" {
			var ids struct {
				BuyerID string `json:"buyer_id"`
				ShopID  string `json:"shop_id"`
			}
			// cache hit tetap lewat cek kepemilikan yang sama dengan jalur
			// DB; entry tanpa identitas tidak dilayani dari cache
			if err := json.Unmarshal([]byte(s), &ids); err == nil && ids.BuyerID != "" {
				if !actor.CanAccessOrder(ids.BuyerID, ids.ShopID) {
					writeErr(w, orders.ErrUnauthorized)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(s))
				return
			}
		}
	}

	o, err := h.Service.GetOrder(r.Context(), actor, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":        o.ID,
		"buyer_id":        o.BuyerID,
		"shop_id":         o.ShopID,
		"status":          o.Status,
		"payment_status":  o.PaymentStatus,
		"delivery_status": o.DeliveryStatus,
		"updated_at":      o.UpdatedAt,
	})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		var upd orders.StatusUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			return orders.Order{}, fmt.Errorf("%w: invalid json", orders.ErrMalformedRequest)
		}
		return h.Service.UpdateOrderStatus(ctx, actor, orderID, upd)
	})
}

func (h *OrdersHandler) uploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		var body struct {
			ProofRef string `json:"proof_ref"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProofRef == "" {
			return orders.Order{}, fmt.Errorf("%w: missing proof_ref", orders.ErrMalformedRequest)
		}
		return h.Service.UploadPaymentProof(ctx, actor, orderID, body.ProofRef)
	})
}

func (h *OrdersHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		return h.Service.VerifyPayment(ctx, actor, orderID)
	})
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		return h.Service.ConfirmPayment(ctx, actor, orderID)
	})
}

func (h *OrdersHandler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		return h.Service.ReceiveOrder(ctx, actor, orderID)
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
		return h.Service.CancelOrder(ctx, actor, orderID)
	})
}

func (h *OrdersHandler) mutate(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error)) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, actor, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(&o))
}

func (h *OrdersHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	if h.NotifyStore == nil {
		writeJSON(w, http.StatusOK, []notify.Notification{})
		return
	}
	ns, err := h.NotifyStore.ListByUser(r.Context(), actor.ID, 50)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ns == nil {
		ns = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *OrdersHandler) writeOffStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	var body struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Service.WriteOffExpired(r.Context(), actor, body.ProductID, body.Quantity); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written_off"})
}

// ---- presenter ----

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	Subtotal    int64  `json:"subtotal"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	BuyerID         string                `json:"buyer_id"`
	ShopID          string                `json:"shop_id"`
	TotalAmount     int64                 `json:"total_amount"`
	Commission      int64                 `json:"commission"`
	NetAmount       int64                 `json:"net_amount"`
	PaymentStatus   orders.PaymentStatus  `json:"payment_status"`
	DeliveryStatus  orders.DeliveryStatus `json:"delivery_status"`
	Status          orders.OrderStatus    `json:"status"`
	PaymentMethod   string                `json:"payment_method"`
	PaymentProof    string                `json:"payment_proof,omitempty"`
	ShippingAddress string                `json:"shipping_address"`
	Notes           string                `json:"notes,omitempty"`
	Items           []orderItemResponse   `json:"items"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func toOrderResponse(o *orders.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Subtotal:    it.Subtotal,
		})
	}
	return orderResponse{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		ShopID:          o.ShopID,
		TotalAmount:     o.TotalAmount,
		Commission:      o.Commission,
		NetAmount:       o.NetAmount,
		PaymentStatus:   o.PaymentStatus,
		DeliveryStatus:  o.DeliveryStatus,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentProof:    o.PaymentProof,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
