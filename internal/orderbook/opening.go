package orderbook

// OpeningData is the discovered auction clearing price and the quantity
// tradable at it.
type OpeningData struct {
	Price            int64 `json:"price"`
	TradableQuantity int64 `json:"tradable_quantity"`
}

// OpeningRange is the set of tied candidate clearing prices, all of which
// maximize tradable quantity.
type OpeningRange struct {
	MinPrice         int64
	MaxPrice         int64
	TradableQuantity int64
}

// FindOpeningRange computes the auction clearing candidates by walking sell
// prices from the worst backward, pairing the cumulative sell quantity at or
// below each price with the cumulative buy quantity willing to pay it. Pure
// function over the current queues; no side effects.
func (b *OrderBook) FindOpeningRange() OpeningRange {
	var sellQty int64
	for _, o := range b.sellQueue {
		sellQty += o.TotalQuantity()
	}

	var (
		buyQty       int64
		bestBuyPrice int64 = -1
		bi           int
		rng          OpeningRange
	)
	for si := len(b.sellQueue) - 1; si >= 0; si-- {
		sell := b.sellQueue[si]
		for bi < len(b.buyQueue) {
			buy := b.buyQueue[bi]
			if sell.Price > buy.Price {
				break
			}
			buyQty += buy.TotalQuantity()
			if bestBuyPrice < 0 {
				bestBuyPrice = buy.Price
			}
			bi++
		}
		q := min64(sellQty, buyQty)
		if q > rng.TradableQuantity {
			rng.MinPrice = sell.Price
			rng.MaxPrice = bestBuyPrice
			rng.TradableQuantity = q
		} else if q == rng.TradableQuantity && rng.TradableQuantity > 0 {
			rng.MinPrice = sell.Price
		}
		sellQty -= sell.TotalQuantity()
	}
	return rng
}

// ClosestTo collapses the tied candidate range to one price: the previous
// transaction price if it lies inside the range, else the nearer boundary.
func (r OpeningRange) ClosestTo(lastTransactionPrice int64) OpeningData {
	if r.TradableQuantity == 0 {
		return OpeningData{}
	}
	switch {
	case lastTransactionPrice < r.MinPrice:
		return OpeningData{Price: r.MinPrice, TradableQuantity: r.TradableQuantity}
	case lastTransactionPrice > r.MaxPrice:
		return OpeningData{Price: r.MaxPrice, TradableQuantity: r.TradableQuantity}
	default:
		return OpeningData{Price: lastTransactionPrice, TradableQuantity: r.TradableQuantity}
	}
}
