package orders

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor adalah identitas yang sudah terautentikasi di layer atas.
// ShopID hanya terisi untuk seller (toko yang dia miliki).
type Actor struct {
	ID     string
	Role   Role
	ShopID string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccessOrder: read order dibatasi buyer-nya sendiri, pemilik toko
// order tsb, atau admin. Berlaku untuk semua jalur baca, termasuk cache.
func (a Actor) CanAccessOrder(buyerID, shopID string) bool {
	return a.ID == buyerID || (a.ShopID != "" && a.ShopID == shopID) || a.IsAdmin()
}

type Shop struct {
	ID             string
	OwnerID        string
	Name           string
	CommissionRate float64 // 0 -> pakai DefaultCommissionRate
	CreatedAt      time.Time
}

type Product struct {
	ID         string
	ShopID     string
	Name       string
	Price      int64
	Stock      int
	TrackStock bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Order struct {
	ID              string
	BuyerID         string
	ShopID          string
	TotalAmount     int64
	Commission      int64
	NetAmount       int64 // TotalAmount - Commission
	PaymentStatus   PaymentStatus
	DeliveryStatus  DeliveryStatus
	Status          OrderStatus
	PaymentMethod   string
	PaymentProof    string
	ShippingAddress string
	Notes           string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem menyimpan snapshot harga saat transaksi; tidak pernah
// di-update walau harga produk berubah belakangan.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	Price       int64
	Subtotal    int64 // Price * Quantity
}

type StockReason string

const (
	StockReasonSale         StockReason = "SALE"
	StockReasonCancelReturn StockReason = "CANCEL_RETURN"
	StockReasonExpired      StockReason = "EXPIRED"
)

// StockLogEntry append-only; tidak pernah diubah atau dihapus.
type StockLogEntry struct {
	ID        string
	ProductID string
	ShopID    string
	Delta     int
	Reason    StockReason
	CreatedAt time.Time
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest hidup hanya selama pemanggilan checkout; tidak dipersist.
type CheckoutRequest struct {
	BuyerID         string
	Items           []CartItem
	PaymentMethod   string
	ShippingAddress string
	Notes           string
}

// OrderIntent adalah partisi per toko dari satu checkout multi-toko,
// sebelum persist.
type OrderIntent struct {
	ShopID          string
	BuyerID         string
	Items           []CartItem
	PaymentMethod   string
	ShippingAddress string
	Notes           string
}

// ShopFailure melaporkan grup toko yang gagal pada checkout parsial.
type ShopFailure struct {
	ShopID string `json:"shop_id"`
	Reason string `json:"reason"`
}
