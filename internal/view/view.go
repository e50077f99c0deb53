// Package view maps catalog and cart snapshots to the render model used by
// the storefront pages. Every function here is pure.
package view

import (
	"github.com/fjod/storefront/internal/domain"
)

const (
	LabelInStock    = "In Stock"
	LabelOutOfStock = "Out of Stock"
	EmptyCartText   = "Your cart is empty"
)

type ProductCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	ImageURL    string `json:"imageUrl"`
	StockLabel  string `json:"stockLabel"`
	AddDisabled bool   `json:"addDisabled"`
}

// CartLine is one rendered line. CanIncrement follows the stock snapshot;
// the engine still decides.
type CartLine struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	Price        string `json:"price"`
	Quantity     int    `json:"quantity"`
	Subtotal     string `json:"subtotal"`
	CanIncrement bool   `json:"canIncrement"`
}

type Cart struct {
	Lines     []CartLine `json:"lines"`
	Total     string     `json:"total"`
	Count     int        `json:"count"`
	Empty     bool       `json:"empty"`
	EmptyText string     `json:"emptyText,omitempty"`
}

type Page struct {
	Products []ProductCard `json:"products"`
	Featured []ProductCard `json:"featured"`
	Cart     Cart          `json:"cart"`
}

// Build renders a full page from the catalog snapshot, the featured subset
// and the session's cart.
func Build(products, featured []domain.Product, cart domain.Cart) Page {
	return Page{
		Products: Cards(products),
		Featured: Cards(featured),
		Cart:     BuildCart(cart),
	}
}

func Cards(products []domain.Product) []ProductCard {
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, Card(p))
	}
	return cards
}

func Card(p domain.Product) ProductCard {
	label := LabelInStock
	if !p.InStock() {
		label = LabelOutOfStock
	}
	return ProductCard{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.StringFixed(2),
		ImageURL:    p.ImageURL,
		StockLabel:  label,
		AddDisabled: !p.InStock(),
	}
}

func BuildCart(cart domain.Cart) Cart {
	lines := make([]CartLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, CartLine{
			ID:           l.ID,
			Name:         l.Name,
			Image:        l.Image,
			Price:        l.Price.StringFixed(2),
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal().StringFixed(2),
			CanIncrement: l.Quantity < l.MaxQuantity,
		})
	}

	v := Cart{
		Lines: lines,
		Total: cart.Total().StringFixed(2),
		Count: cart.Count(),
		Empty: cart.IsEmpty(),
	}
	if v.Empty {
		v.EmptyText = EmptyCartText
	}
	return v
}
