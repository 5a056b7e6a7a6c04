package exception

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder  = errors.New("order: invalid order")
	ErrOrderNotFound = errors.New("order: not found")
)

var (
	ErrOrderSide              = fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	ErrOrderQuantity          = fmt.Errorf("%w: quantity must be > 0", ErrInvalidOrder)
	ErrOrderParticipationRate = fmt.Errorf("%w: participation rate must be in (0, 1]", ErrInvalidOrder)
	ErrOrderTimeWindow        = fmt.Errorf("%w: end time must be after start time", ErrInvalidOrder)
	ErrOrderLimitPrice        = fmt.Errorf("%w: limit price must be > 0", ErrInvalidOrder)
)

var (
	ErrRiskDenied = errors.New("risk: order denied")
)
