package quicktrade

import "errors"

// Quote and execution failures surface as one of these sentinels (or a
// wrapped collaborator error). No path retries internally; every error is the
// terminal outcome of its call.
var (
	ErrInvalidSymbol              = errors.New("invalid symbol")
	ErrUserNotFound               = errors.New("user not found")
	ErrUserNotRegisteredOnNetwork = errors.New("user not registered on network")
	ErrTokenExpired               = errors.New("quote token expired")
	ErrBrokerNotFound             = errors.New("broker pair not found")
	ErrBrokerPaused               = errors.New("broker pair is paused")
	ErrBrokerSizeExceeded         = errors.New("size is outside the broker pair limits")
	ErrOrderCannotBeFilled        = errors.New("order with current size cannot be filled")
	ErrCurrentPriceDeviates       = errors.New("estimated price deviates too far from the last traded price")
	ErrValueTooSmall              = errors.New("quick trade value is too small")
	ErrFairPriceBroker            = errors.New("broker price is not fair against the reference")
	ErrAmountNegative             = errors.New("amount cannot be negative")
	ErrConfigNotFound             = errors.New("quick trade config not found for pair")
	ErrTypeNotSupported           = errors.New("quick trade type is not supported")
	ErrPriceNotFound              = errors.New("price could not be determined")
	ErrInvalidPrice               = errors.New("invalid price")
	ErrInvalidSize                = errors.New("invalid size")
)
