package handler

// Rejection reasons reported back on invalid requests. A single request
// can fail several checks at once; all reasons travel in one event.
const (
	ReasonInvalidOrderID             = "invalid order id"
	ReasonOrderQuantityNotPositive   = "order quantity is not positive"
	ReasonOrderPriceNotPositive      = "order price is not positive"
	ReasonStopPriceNegative          = "stop price is negative"
	ReasonUnknownSecurityIsin        = "unknown security isin"
	ReasonUnknownBrokerID            = "unknown broker id"
	ReasonUnknownShareholderID       = "unknown shareholder id"
	ReasonQuantityNotMultipleOfLot   = "quantity is not a multiple of lot size"
	ReasonPriceNotMultipleOfTick     = "price is not a multiple of tick size"
	ReasonInvalidPeakSize            = "iceberg peak size is out of range"
	ReasonInvalidMinimumExecQty      = "minimum execution quantity is out of range"
	ReasonStopLimitWithMinimumExec   = "stop limit order cannot have minimum execution quantity"
	ReasonStopLimitWithIcebergPeak   = "stop limit order cannot be an iceberg"
	ReasonStopLimitInAuction         = "stop limit order is not allowed during an auction"
	ReasonMinimumExecQtyInAuction    = "minimum execution quantity is not allowed during an auction"
	ReasonCannotUpdateMinimumExecQty = "minimum execution quantity cannot be changed"
	ReasonOrderNotFound              = "order not found"
	ReasonNotEnoughCredit            = "buyer does not have enough credit"
	ReasonNotEnoughPositions         = "seller does not have enough positions"
	ReasonMinimumExecQtyNotMet       = "traded quantity is below the minimum execution quantity"
	ReasonCannotDeleteStopInAuction  = "stop limit order cannot be deleted during an auction"
	ReasonIcebergPeakMismatch        = "peak size set on a non-iceberg order"
	ReasonUnknownTargetState         = "unknown target matching state"
)
