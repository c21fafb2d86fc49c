package panel

import "errors"

var (
	// ErrNoCredential indicates the request carries no bearer credential, so nothing was loaded.
	ErrNoCredential = errors.New("panel: no credential")
	// ErrNoOrders indicates the customer has no order to put in view.
	ErrNoOrders = errors.New("panel: no orders")
)
