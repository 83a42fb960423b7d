package pricing_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:              "p1",
		Name:            "Nike Pegasus 40",
		Price:           2_500_000,
		AvailableSizes:  []int{39, 40, 41},
		AvailableColors: []string{"Đen", "Trắng"},
		StockQuantity:   5,
	}
}

func TestValidateSize(t *testing.T) {
	size, err := pricing.ValidateSize(snapshot(), "41")
	require.NoError(t, err)
	assert.Equal(t, 41, size)

	size, err = pricing.ValidateSize(snapshot(), "40.0")
	require.NoError(t, err)
	assert.Equal(t, 40, size)

	_, err = pricing.ValidateSize(snapshot(), "44")
	var serr *pricing.SelectionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "size", serr.Field)
	assert.Equal(t, "Size 44 không có sẵn. Các size hiện có: 39, 40, 41", err.Error())

	_, err = pricing.ValidateSize(snapshot(), "lớn")
	assert.Error(t, err)
}

func TestValidateColor_ExactMatch(t *testing.T) {
	color, err := pricing.ValidateColor(snapshot(), "Đen")
	require.NoError(t, err)
	assert.Equal(t, "Đen", color)

	_, err = pricing.ValidateColor(snapshot(), "Đỏ")
	require.Error(t, err)
	assert.Equal(t, "Màu Đỏ không có sẵn. Các màu hiện có: Đen, Trắng", err.Error())

	_, err = pricing.ValidateColor(snapshot(), "đen")
	assert.Error(t, err)
}

func TestValidateQuantity(t *testing.T) {
	qty, err := pricing.ValidateQuantity(snapshot(), "2 đôi")
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	qty, err = pricing.ValidateQuantity(snapshot(), "5")
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	_, err = pricing.ValidateQuantity(snapshot(), "7")
	var serr *pricing.SelectionError
	require.True(t, errors.As(err, &serr))
	assert.True(t, serr.OverStock)
	assert.Equal(t, "Xin lỗi, hiện chỉ còn 5 sản phẩm trong kho.", err.Error())

	for _, bad := range []string{"0", "-1", "vài đôi", ""} {
		_, err = pricing.ValidateQuantity(snapshot(), bad)
		require.Error(t, err, bad)
		assert.Equal(t, "Số lượng không hợp lệ. Vui lòng nhập số lượng lớn hơn 0.", err.Error())
	}
}

func TestValidateSelection(t *testing.T) {
	sel, err := pricing.ValidateSelection(snapshot(), "40", "Trắng", "1")
	require.NoError(t, err)
	assert.Equal(t, pricing.Selection{Size: 40, Color: "Trắng", Quantity: 1}, sel)

	_, err = pricing.ValidateSelection(snapshot(), "40", "Xanh", "1")
	var serr *pricing.SelectionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "color", serr.Field)
}

func TestParseLeadingInt(t *testing.T) {
	n, ok := pricing.ParseLeadingInt(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = pricing.ParseLeadingInt("size 42")
	assert.False(t, ok)
}
