package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitterStore(t *testing.T) *MemoryStore {
	t.Helper()
	st := NewMemoryStore()
	st.SeedShop(Shop{ID: "shop-a", OwnerID: "seller-a"})
	st.SeedShop(Shop{ID: "shop-b", OwnerID: "seller-b"})
	st.SeedProduct(Product{ID: "p-1", ShopID: "shop-a", Name: "Kopi", Price: 15000, Stock: 10, TrackStock: true})
	st.SeedProduct(Product{ID: "p-2", ShopID: "shop-b", Name: "Teh", Price: 8000, Stock: 10, TrackStock: true})
	st.SeedProduct(Product{ID: "p-3", ShopID: "shop-a", Name: "Gula", Price: 5000, Stock: 10, TrackStock: true})
	return st
}

func TestSplitCheckout_GroupsByShop(t *testing.T) {
	st := splitterStore(t)
	req := CheckoutRequest{
		BuyerID:         "buyer-1",
		PaymentMethod:   "bank_transfer",
		ShippingAddress: "Jl. Sudirman 1",
		Items: []CartItem{
			{ProductID: "p-1", Quantity: 1},
			{ProductID: "p-2", Quantity: 2},
			{ProductID: "p-3", Quantity: 3},
		},
	}

	intents, err := SplitCheckout(context.Background(), st, req)
	require.NoError(t, err)
	require.Len(t, intents, 2)

	// urutan kemunculan shop dipertahankan, begitu juga urutan item per shop
	assert.Equal(t, "shop-a", intents[0].ShopID)
	assert.Equal(t, []CartItem{{ProductID: "p-1", Quantity: 1}, {ProductID: "p-3", Quantity: 3}}, intents[0].Items)
	assert.Equal(t, "shop-b", intents[1].ShopID)
	assert.Equal(t, []CartItem{{ProductID: "p-2", Quantity: 2}}, intents[1].Items)

	for _, in := range intents {
		assert.Equal(t, "buyer-1", in.BuyerID)
		assert.Equal(t, "bank_transfer", in.PaymentMethod)
		assert.Equal(t, "Jl. Sudirman 1", in.ShippingAddress)
	}
}

func TestSplitCheckout_Idempotent(t *testing.T) {
	st := splitterStore(t)
	req := CheckoutRequest{
		BuyerID: "buyer-1",
		Items:   []CartItem{{ProductID: "p-1", Quantity: 2}, {ProductID: "p-2", Quantity: 1}},
	}
	first, err := SplitCheckout(context.Background(), st, req)
	require.NoError(t, err)
	second, err := SplitCheckout(context.Background(), st, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// splitter tidak menyentuh stok
	products, err := st.ProductsByIDs(context.Background(), []string{"p-1", "p-2"})
	require.NoError(t, err)
	assert.Equal(t, 10, products["p-1"].Stock)
	assert.Equal(t, 10, products["p-2"].Stock)
	assert.Empty(t, st.StockLog())
}

func TestSplitCheckout_Errors(t *testing.T) {
	st := splitterStore(t)

	_, err := SplitCheckout(context.Background(), st, CheckoutRequest{BuyerID: "buyer-1"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = SplitCheckout(context.Background(), st, CheckoutRequest{
		BuyerID: "buyer-1",
		Items:   []CartItem{{ProductID: "p-1", Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = SplitCheckout(context.Background(), st, CheckoutRequest{
		BuyerID: "buyer-1",
		Items:   []CartItem{{ProductID: "p-1", Quantity: 1}, {ProductID: "missing", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}
