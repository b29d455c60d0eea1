package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeDiscountPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount int
		want     string
	}{
		{"no discount", "100.00", 0, "100.00"},
		{"plain percent", "200.00", 10, "180.00"},
		{"cents survive", "19.99", 25, "14.99"},
		{"bankers rounding half to even down", "10.10", 25, "7.58"},
		{"bankers rounding half to even up", "10.30", 25, "7.72"},
		{"max discount", "50.00", 99, "0.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscountPrice(dec(tt.price), tt.discount)
			assert.True(t, dec(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestComputeDiscountPriceIdempotent(t *testing.T) {
	// Recomputing from the same inputs must always give the same value,
	// the stored column is derived and never accumulated.
	price := dec("149.99")
	first := ComputeDiscountPrice(price, 15)
	second := ComputeDiscountPrice(price, 15)
	assert.True(t, first.Equal(second))
}

func TestSpecificationEffectivePrice(t *testing.T) {
	spec := Specification{
		Price:         dec("100.00"),
		Discount:      20,
		DiscountPrice: ComputeDiscountPrice(dec("100.00"), 20),
	}
	assert.True(t, dec("80.00").Equal(spec.EffectivePrice()), "discount price wins over list price")

	spec.SalePrice = dec("65.00")
	assert.True(t, dec("65.00").Equal(spec.EffectivePrice()), "sale price wins over discount")

	spec = Specification{Price: dec("100.00")}
	assert.True(t, dec("100.00").Equal(spec.EffectivePrice()), "list price when nothing else set")
}

func TestRoundToPacking(t *testing.T) {
	tests := []struct {
		name    string
		qty     string
		packing string
		want    string
	}{
		{"multiple of half", "1.3", "0.5", "1.0"},
		{"exact multiple kept", "1.5", "0.5", "1.5"},
		{"below one pack", "0.4", "0.5", "0.0"},
		{"integer packing truncates", "2.9", "1", "2"},
		{"integer stays", "3", "1", "3"},
		{"quarter packs", "1.1", "0.25", "1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToPacking(dec(tt.qty), dec(tt.packing))
			assert.True(t, dec(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestProductKindIsValid(t *testing.T) {
	for _, k := range AllKinds {
		assert.True(t, k.IsValid())
	}
	assert.False(t, ProductKind("book").IsValid())
	assert.False(t, ProductKind("").IsValid())
}

func TestProductViewAttributes(t *testing.T) {
	tv := Product{ID: 1, Kind: KindTV, Name: "Bravia", ScreenDiagonal: "55", ScreenResolution: "3840x2160"}
	view := tv.View()
	assert.Equal(t, "55", view.Attributes["screen_diagonal"])
	assert.Equal(t, "3840x2160", view.Attributes["screen_resolution"])

	food := Product{ID: 2, Kind: KindFood, Name: "Rice"}
	assert.Nil(t, food.View().Attributes, "food carries no kind-specific columns")
}

func TestSpecificationInStock(t *testing.T) {
	assert.True(t, (&Specification{AvailableQty: dec("0.001")}).InStock())
	assert.False(t, (&Specification{AvailableQty: dec("0")}).InStock())
}
