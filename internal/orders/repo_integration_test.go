package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/money"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/pgtest"
)

func TestRepoPlaceAndGet(t *testing.T) {
	db := pgtest.DB(t)
	ctx := context.Background()
	inv := &inventory.Repo{DB: db}

	cake := pgtest.Product(t, db, "1000.00", true)
	latte := pgtest.Product(t, db, "", false)
	pgtest.DrinkVariant(t, db, latte, true)

	today := inventory.DateOf(time.Now(), time.UTC)
	later := today.AddDate(0, 0, 3)
	lotToday, err := inv.ReceiveLot(ctx, inventory.Lot{ProductID: cake, Quantity: 2, ExpiresOn: &today}, "")
	require.NoError(t, err)
	lotLater, err := inv.ReceiveLot(ctx, inventory.Lot{ProductID: cake, Quantity: 4, ExpiresOn: &later}, "")
	require.NoError(t, err)

	svc := &orders.Service{Store: &orders.Repo{DB: db}, Location: time.UTC}
	c := orders.Cart{
		StaffID:         "staff-1",
		PaymentMethodID: "cash",
		ExternalID:      uuid.NewString(),
		Lines: []orders.CartLine{
			{ProductID: cake, Option: orders.OptionDiscount, Quantity: 2, UnitPrice: money.MustParse("400.00")},
			{ProductID: cake, Option: orders.OptionRegular, Quantity: 1, UnitPrice: money.MustParse("1000.00")},
			{ProductID: latte, Option: orders.OptionHot, Quantity: 1, UnitPrice: money.MustParse("4.50")},
		},
	}
	o, existed, err := svc.PlaceOrder(ctx, c)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "3004.50", money.String(o.Subtotal))
	assert.Equal(t, "1200.00", money.String(o.DiscountAmount))
	assert.Equal(t, "1804.50", money.String(o.GrandTotal))

	lots, err := inv.ListLots(ctx, cake)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, lotToday.ID, lots[0].ID)
	assert.Equal(t, 0, lots[0].Quantity)
	assert.Equal(t, lotLater.ID, lots[1].ID)
	assert.Equal(t, 3, lots[1].Quantity)

	moves, err := inv.MovementsForLine(ctx, o.Lines[0].ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, -2, moves[0].Delta)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.GrandTotal.Equal(o.GrandTotal))
	assert.True(t, got.ChargedTotal().Equal(got.GrandTotal))
	require.Len(t, got.Lines, 3)
	assert.NotNil(t, got.Lines[2].DrinkVariantID)

	again, existed, err := svc.PlaceOrder(ctx, c)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, o.ID, again.ID)
}

func TestRepoConcurrentPlacementsNeverOversell(t *testing.T) {
	db := pgtest.DB(t)
	ctx := context.Background()
	inv := &inventory.Repo{DB: db}

	bread := pgtest.Product(t, db, "", true)
	_, err := inv.ReceiveLot(ctx, inventory.Lot{ProductID: bread, Quantity: 5}, "")
	require.NoError(t, err)

	svc := &orders.Service{Store: &orders.Repo{DB: db}, Location: time.UTC}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.PlaceOrder(ctx, orders.Cart{
				StaffID: "staff-1", PaymentMethodID: "cash",
				Lines: []orders.CartLine{{ProductID: bread, Option: orders.OptionRegular, Quantity: 3, UnitPrice: money.MustParse("2.00")}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			var stockErr *inventory.InsufficientStockError
			assert.ErrorAs(t, err, &stockErr)
			fail++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, fail)
	n, tracked, err := inv.StockLevel(ctx, bread)
	require.NoError(t, err)
	assert.True(t, tracked)
	assert.Equal(t, 2, n)
}

func TestRepoRejectsMalformedProductID(t *testing.T) {
	db := pgtest.DB(t)
	svc := &orders.Service{Store: &orders.Repo{DB: db}, Location: time.UTC}

	_, _, err := svc.PlaceOrder(context.Background(), orders.Cart{
		StaffID: "staff-1", PaymentMethodID: "cash",
		Lines: []orders.CartLine{{ProductID: "cake", Option: orders.OptionRegular, Quantity: 1, UnitPrice: money.MustParse("1.00")}},
	})
	assert.ErrorIs(t, err, orders.ErrInvalidCart)
}
