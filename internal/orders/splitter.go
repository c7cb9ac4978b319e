package orders

import (
	"context"
	"fmt"
)

// SplitCheckout memecah cart datar jadi satu OrderIntent per toko.
// Murni partitioning: tidak menyentuh stok, tidak persist apa pun, dan
// idempotent untuk input yang sama. Urutan item per toko dipertahankan.
func SplitCheckout(ctx context.Context, store Store, req CheckoutRequest) ([]OrderIntent, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}

	// satu batch lookup untuk resolve product -> shop
	products, err := store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	var intents []OrderIntent
	index := map[string]int{} // shopID -> posisi di intents, jaga urutan kemunculan
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		i, ok := index[p.ShopID]
		if !ok {
			i = len(intents)
			index[p.ShopID] = i
			intents = append(intents, OrderIntent{
				ShopID:          p.ShopID,
				BuyerID:         req.BuyerID,
				PaymentMethod:   req.PaymentMethod,
				ShippingAddress: req.ShippingAddress,
				Notes:           req.Notes,
			})
		}
		intents[i].Items = append(intents[i].Items, it)
	}
	return intents, nil
}
