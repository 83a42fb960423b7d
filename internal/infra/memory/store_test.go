package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogStore_FindCategoryByName(t *testing.T) {
	store := NewCatalogStore(DemoCatalog())

	cat, err := store.FindCategoryByName(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, "Running", cat.Name)

	_, err = store.FindCategoryByName(context.Background(), "Sandal")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestCatalogStore_FindProducts(t *testing.T) {
	store := NewCatalogStore(DemoCatalog())
	ctx := context.Background()

	max := 2000000.0
	cheap, err := store.FindProducts(ctx, domain.ProductFilter{Price: &domain.PriceRange{Max: &max}})
	require.NoError(t, err)
	for _, p := range cheap {
		assert.LessOrEqual(t, p.Price, max)
	}
	assert.Len(t, cheap, 3)

	discounted, err := store.FindProducts(ctx, domain.ProductFilter{DiscountedOnly: true})
	require.NoError(t, err)
	require.Len(t, discounted, 2)
	assert.NotNil(t, discounted[0].Discount)

	running, err := store.FindProducts(ctx, domain.ProductFilter{Keywords: []string{"Running"}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, running, 2)
	assert.Equal(t, "Running", running[0].CategoryName())
}

func TestCatalogStore_ReturnsCopies(t *testing.T) {
	store := NewCatalogStore(DemoCatalog())
	ctx := context.Background()

	p, err := store.GetProduct(ctx, "prod-pegasus")
	require.NoError(t, err)
	p.Colors[0] = "Tím"

	again, err := store.GetProduct(ctx, "prod-pegasus")
	require.NoError(t, err)
	assert.Equal(t, "Đen", again.Colors[0])
}

func TestOrderStore_Lifecycle(t *testing.T) {
	catalog := NewCatalogStore(DemoCatalog())
	orders := NewOrderStore(catalog)
	ctx := context.Background()

	created, err := orders.CreateOrder(ctx, &domain.Order{
		UserID: "u1",
		Lines:  []domain.OrderLine{{ProductID: "prod-oxford", Quantity: 1, Price: 2400000, Size: "41", Color: "Nâu"}},
		Status: domain.OrderPending,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, orders.Count())

	require.NoError(t, orders.UpdateOrderEmail(ctx, created.ID, "khach@example.com"))

	got, err := orders.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "khach@example.com", got.Email)
	line, ok := got.FirstLine()
	require.True(t, ok)
	require.NotNil(t, line.Product)
	assert.Equal(t, "Clarks Oxford Leather", line.Product.Name)

	var nf *domain.ErrNotFound
	assert.True(t, errors.As(orders.UpdateOrderEmail(ctx, "missing", "a@b.c"), &nf))
	_, err = orders.GetOrder(ctx, "missing")
	assert.True(t, errors.As(err, &nf))
}
