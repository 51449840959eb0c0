package types

import "fmt"

// Category classifies a taxed transfer. The set is closed: every taxed
// transfer is exactly one of plain transfer, buy, or sell, and rates,
// accruals and payout plans exist per category.
type Category uint8

const (
	// CategoryTransfer is a plain wallet-to-wallet transfer.
	CategoryTransfer Category = iota
	// CategoryBuy is a transfer originating from a marked counterparty,
	// such as a liquidity-pool account.
	CategoryBuy
	// CategorySell is a transfer toward a marked counterparty.
	CategorySell

	// CategoryCount is the number of defined categories.
	CategoryCount
)

// Categories lists every category in stable order.
func Categories() []Category {
	return []Category{CategoryTransfer, CategoryBuy, CategorySell}
}

// Valid reports whether c names a known category.
func (c Category) Valid() bool {
	return c < CategoryCount
}

func (c Category) String() string {
	switch c {
	case CategoryTransfer:
		return "transfer"
	case CategoryBuy:
		return "buy"
	case CategorySell:
		return "sell"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory converts a category name to its Category value.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "transfer":
		return CategoryTransfer, nil
	case "buy":
		return CategoryBuy, nil
	case "sell":
		return CategorySell, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}
