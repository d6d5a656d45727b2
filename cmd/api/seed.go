package main

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/money"
)

// seed loads a small demo catalog into the memory backend.
func seed(ctx context.Context, st *memstore.Store, loc *time.Location) error {
	cakePrice := money.MustParse("45.00")
	st.AddProduct(memstore.Product{ID: "cheesecake-slice", BasePrice: &cakePrice, TracksInventory: true})
	st.AddProduct(memstore.Product{ID: "sourdough-loaf", TracksInventory: true})
	st.AddProduct(memstore.Product{ID: "latte"})
	st.AddDrinkVariant("latte", true)
	st.AddDrinkVariant("latte", false)

	today := inventory.DateOf(time.Now(), loc)
	tomorrow := today.AddDate(0, 0, 1)
	lots := []inventory.Lot{
		{ProductID: "cheesecake-slice", Quantity: 6, ExpiresOn: &today},
		{ProductID: "cheesecake-slice", Quantity: 12, ExpiresOn: &tomorrow},
		{ProductID: "sourdough-loaf", Quantity: 20, ExpiresOn: &tomorrow},
	}
	for _, l := range lots {
		if _, err := st.ReceiveLot(ctx, l, "seed"); err != nil {
			return err
		}
	}
	return nil
}
