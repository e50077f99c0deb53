package domain

import "github.com/shopspring/decimal"

// CartLine is one product in the cart. Price and MaxQuantity are snapshots
// taken from the catalog when the line was last added or updated.
type CartLine struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"maxQuantity"`
	Image       string          `json:"image"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps lines in insertion order, at most one line per product id.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

func NewCart(lines ...CartLine) Cart {
	return Cart{Lines: lines}
}

func (c Cart) Find(productID string) (int, bool) {
	for i := range c.Lines {
		if c.Lines[i].ID == productID {
			return i, true
		}
	}
	return -1, false
}

// Total is the exact sum of price*quantity. Round only for display.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) Count() int {
	count := 0
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// Valid reports whether every line satisfies 1 <= quantity <= maxQuantity
// and no product id appears twice.
func (c Cart) Valid() bool {
	seen := make(map[string]struct{}, len(c.Lines))
	for _, l := range c.Lines {
		if l.ID == "" || l.Quantity < 1 || l.Quantity > l.MaxQuantity {
			return false
		}
		if _, dup := seen[l.ID]; dup {
			return false
		}
		seen[l.ID] = struct{}{}
	}
	return true
}
