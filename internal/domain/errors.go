package domain

import "errors"

var (
	ErrUnknownProduct      = errors.New("unknown product")
	ErrOutOfStock          = errors.New("product out of stock")
	ErrStockLimitReached   = errors.New("not enough stock")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutCancelled   = errors.New("checkout cancelled: email and name are required")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrStockUpdateFailed   = errors.New("stock update failed")
	ErrNotificationFailed  = errors.New("order notification failed")
	ErrCatalogLoadFailed   = errors.New("catalog load failed")
	ErrIllegalTransition   = errors.New("illegal transition of checkout status")
	ErrCheckoutInProgress  = errors.New("checkout already in progress for this cart")
)
