package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue/internal/ledger"
	"venue/internal/orderbook"
)

const testIsin = "IRO1TEST0001"

func testSecurity() (*Security, *Matcher) {
	return NewSecurity(testIsin, 1, 1, nil), NewMatcher(nil)
}

func funded(id, credit int64) *ledger.Broker {
	return ledger.NewBroker(id, "broker", credit)
}

func holding(id, qty int64) *ledger.Shareholder {
	sh := ledger.NewShareholder(id, "shareholder")
	sh.IncPosition(testIsin, qty)
	return sh
}

func TestExecuteTradesAtRestingPrice(t *testing.T) {
	sec, m := testSecurity()
	sellerBroker, seller := funded(1, 0), holding(1, 10)
	buyerBroker, buyer := funded(2, 1000), holding(2, 0)

	sell := orderbook.NewOrder(1, testIsin, orderbook.Sell, 10, 100, sellerBroker, seller, time.Now(), 0)
	res := m.Execute(sec, sell)
	require.Equal(t, Executed, res.Outcome)
	require.Empty(t, res.Trades)

	buy := orderbook.NewOrder(2, testIsin, orderbook.Buy, 10, 105, buyerBroker, buyer, time.Now(), 0)
	res = m.Execute(sec, buy)
	require.Equal(t, Executed, res.Outcome)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, int64(100), trade.Price, "trade must price at the resting order")
	assert.Equal(t, int64(10), trade.Quantity)

	assert.Equal(t, int64(0), buyerBroker.Credit())
	assert.Equal(t, int64(1000), sellerBroker.Credit())
	assert.Equal(t, int64(10), buyer.PositionOn(testIsin))
	assert.Equal(t, int64(0), seller.PositionOn(testIsin))
	assert.False(t, sec.Book().HasOrders(orderbook.Buy))
	assert.False(t, sec.Book().HasOrders(orderbook.Sell))
}

func TestExecuteDebitsRestingBuyNotional(t *testing.T) {
	sec, m := testSecurity()
	broker, buyer := funded(1, 1500), holding(1, 0)

	buy := orderbook.NewOrder(1, testIsin, orderbook.Buy, 10, 100, broker, buyer, time.Now(), 0)
	res := m.Execute(sec, buy)

	require.Equal(t, Executed, res.Outcome)
	assert.Equal(t, int64(500), broker.Credit(), "resting notional must be committed")
	require.True(t, sec.Book().HasOrders(orderbook.Buy))
	assert.Equal(t, int64(1), sec.Book().First(orderbook.Buy).ID)
}

func TestExecuteRespectsTimePriorityOnEqualPrices(t *testing.T) {
	sec, m := testSecurity()

	first := orderbook.NewOrder(1, testIsin, orderbook.Sell, 5, 100, funded(1, 0), holding(1, 5), time.Now(), 0)
	second := orderbook.NewOrder(2, testIsin, orderbook.Sell, 5, 100, funded(2, 0), holding(2, 5), time.Now(), 0)
	m.Execute(sec, first)
	m.Execute(sec, second)

	buy := orderbook.NewOrder(3, testIsin, orderbook.Buy, 5, 100, funded(3, 500), holding(3, 0), time.Now(), 0)
	res := m.Execute(sec, buy)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(1), res.Trades[0].Sell.ID, "earlier order at the same price trades first")
	assert.Equal(t, int64(2), sec.Book().First(orderbook.Sell).ID)
}

func TestIcebergReplenishesBetweenTrades(t *testing.T) {
	sec, m := testSecurity()
	sellerBroker, seller := funded(1, 0), holding(1, 10)

	iceberg := orderbook.NewIcebergOrder(1, testIsin, orderbook.Sell, 10, 100, sellerBroker, seller, time.Now(), 3, 0)
	m.Execute(sec, iceberg)

	buy := orderbook.NewOrder(2, testIsin, orderbook.Buy, 4, 100, funded(2, 400), holding(2, 0), time.Now(), 0)
	res := m.Execute(sec, buy)

	require.Equal(t, Executed, res.Outcome)
	require.Len(t, res.Trades, 2, "the slice boundary splits the fill")
	assert.Equal(t, int64(3), res.Trades[0].Quantity)
	assert.Equal(t, int64(1), res.Trades[1].Quantity)

	rest := sec.Book().First(orderbook.Sell)
	require.NotNil(t, rest)
	assert.Equal(t, int64(6), rest.TotalQuantity())
	assert.Equal(t, int64(6), seller.PositionOn(testIsin))
}

func TestIncomingIcebergRestsWithFreshSlice(t *testing.T) {
	sec, m := testSecurity()
	seller := holding(1, 3)
	m.Execute(sec, orderbook.NewOrder(1, testIsin, orderbook.Sell, 3, 100, funded(1, 0), seller, time.Now(), 0))

	broker := funded(2, 1000)
	iceberg := orderbook.NewIcebergOrder(2, testIsin, orderbook.Buy, 10, 100, broker, holding(2, 0), time.Now(), 3, 0)
	res := m.Execute(sec, iceberg)

	require.Equal(t, Executed, res.Outcome)
	rest := sec.Book().First(orderbook.Buy)
	require.NotNil(t, rest)
	assert.Equal(t, int64(7), rest.TotalQuantity())
	assert.Equal(t, int64(3), rest.Quantity(), "remainder must re-enter with a visible slice")
	assert.Equal(t, int64(0), broker.Credit(), "300 traded plus 700 resting notional")
}

func TestMinimumExecutionUnmetRollsBackEverything(t *testing.T) {
	sec, m := testSecurity()
	sellerBroker, seller := funded(1, 0), holding(1, 3)
	m.Execute(sec, orderbook.NewOrder(1, testIsin, orderbook.Sell, 3, 100, sellerBroker, seller, time.Now(), 0))

	buyerBroker, buyer := funded(2, 1000), holding(2, 0)
	buy := orderbook.NewOrder(2, testIsin, orderbook.Buy, 10, 100, buyerBroker, buyer, time.Now(), 5)
	res := m.Execute(sec, buy)

	require.Equal(t, NotEnoughInitialTransaction, res.Outcome)
	assert.Equal(t, int64(1000), buyerBroker.Credit())
	assert.Equal(t, int64(0), sellerBroker.Credit())
	assert.Equal(t, int64(3), seller.PositionOn(testIsin))
	assert.Equal(t, int64(0), buyer.PositionOn(testIsin))

	rest := sec.Book().First(orderbook.Sell)
	require.NotNil(t, rest, "consumed counter order must be restored")
	assert.Equal(t, int64(3), rest.Quantity())
	assert.False(t, sec.Book().HasOrders(orderbook.Buy))
}

func TestMinimumExecutionNotRecheckedAfterFirstEntry(t *testing.T) {
	sec, m := testSecurity()

	buy := orderbook.NewOrder(1, testIsin, orderbook.Buy, 10, 100, funded(1, 1000), holding(1, 0), time.Now(), 5)
	buy.MarkTraded()
	res := m.Execute(sec, buy)

	require.Equal(t, Executed, res.Outcome, "a re-entering order bypasses the entry minimum")
	assert.True(t, sec.Book().HasOrders(orderbook.Buy))
}

func TestInsufficientCreditMidMatchRollsBack(t *testing.T) {
	sec, m := testSecurity()
	broker1, sh1 := funded(1, 0), holding(1, 3)
	broker2, sh2 := funded(2, 0), holding(2, 3)
	m.Execute(sec, orderbook.NewOrder(1, testIsin, orderbook.Sell, 3, 30, broker1, sh1, time.Now(), 0))
	m.Execute(sec, orderbook.NewOrder(2, testIsin, orderbook.Sell, 3, 40, broker2, sh2, time.Now(), 0))

	buyerBroker := funded(3, 100)
	buy := orderbook.NewOrder(3, testIsin, orderbook.Buy, 6, 40, buyerBroker, holding(3, 0), time.Now(), 0)
	res := m.Execute(sec, buy)

	require.Equal(t, NotEnoughCredit, res.Outcome)
	assert.Equal(t, int64(100), buyerBroker.Credit())
	assert.Equal(t, int64(0), broker1.Credit())
	assert.Equal(t, int64(3), sh1.PositionOn(testIsin))

	sells := sec.Book().SellQueue()
	require.Len(t, sells, 2)
	assert.Equal(t, int64(1), sells[0].ID, "restored order regains its queue position")
	assert.Equal(t, int64(3), sells[0].Quantity())
	assert.Equal(t, int64(2), sells[1].ID)
}

func TestInsufficientCreditForRemainderRollsBack(t *testing.T) {
	sec, m := testSecurity()
	sellerBroker, seller := funded(1, 0), holding(1, 3)
	m.Execute(sec, orderbook.NewOrder(1, testIsin, orderbook.Sell, 3, 100, sellerBroker, seller, time.Now(), 0))

	buyerBroker := funded(2, 450)
	buy := orderbook.NewOrder(2, testIsin, orderbook.Buy, 5, 100, buyerBroker, holding(2, 0), time.Now(), 0)
	res := m.Execute(sec, buy)

	require.Equal(t, NotEnoughCredit, res.Outcome, "trading 300 leaves 150, short of the 200 resting notional")
	assert.Equal(t, int64(450), buyerBroker.Credit())
	assert.Equal(t, int64(0), sellerBroker.Credit())
	require.True(t, sec.Book().HasOrders(orderbook.Sell))
	assert.Equal(t, int64(3), sec.Book().First(orderbook.Sell).Quantity())
	assert.False(t, sec.Book().HasOrders(orderbook.Buy))
}
