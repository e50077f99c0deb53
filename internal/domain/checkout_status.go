package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle                   CheckoutStatus = "IDLE"
	CheckoutStatusCollectingCustomerInfo CheckoutStatus = "COLLECTING_CUSTOMER_INFO"
	CheckoutStatusCreatingOrder          CheckoutStatus = "CREATING_ORDER"
	CheckoutStatusDecrementingStock      CheckoutStatus = "DECREMENTING_STOCK"
	CheckoutStatusSendingNotifications   CheckoutStatus = "SENDING_NOTIFICATIONS"
	CheckoutStatusDone                   CheckoutStatus = "DONE"
	CheckoutStatusFailed                 CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusDone || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutStatus]CheckoutStatus{
	CheckoutStatusIdle:                   CheckoutStatusCollectingCustomerInfo,
	CheckoutStatusCollectingCustomerInfo: CheckoutStatusCreatingOrder,
	CheckoutStatusCreatingOrder:          CheckoutStatusDecrementingStock,
	CheckoutStatusDecrementingStock:      CheckoutStatusSendingNotifications,
	CheckoutStatusSendingNotifications:   CheckoutStatusDone,
}

// CanTransitionTo allows the single forward step of the checkout sequence,
// or a move to FAILED from any non-terminal state.
func CanTransitionTo(from, to CheckoutStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == CheckoutStatusFailed {
		return true
	}
	next, ok := checkoutTransitions[from]
	return ok && next == to
}
