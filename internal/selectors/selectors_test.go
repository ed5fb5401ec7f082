package selectors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/models"
)

var (
	zeq  = models.Address("0xZEQ")
	meth = models.Address("0xmETH")
	mdai = models.Address("0xmDAI")
	pair = Pair{Base: zeq, Quote: meth}
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// order creates a creation record in the log and returns it.
func order(log *events.Log, id uint64, user models.Address, tokenGet models.Address, amountGet string, tokenGive models.Address, amountGive string, at time.Time) models.Order {
	o := models.Order{
		ID:         id,
		User:       user,
		TokenGet:   tokenGet,
		AmountGet:  amt(amountGet),
		TokenGive:  tokenGive,
		AmountGive: amt(amountGive),
		Timestamp:  at,
	}
	log.Append(at, events.Order{Order: o})
	return o
}

func trade(log *events.Log, o models.Order, taker models.Address, at time.Time) models.Trade {
	tr := models.Trade{
		OrderID:    o.ID,
		User:       taker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Maker:      o.User,
		Timestamp:  at,
	}
	log.Append(at, events.Trade{Trade: tr})
	return tr
}

func TestOpenOrders(t *testing.T) {
	log := events.NewLog()
	now := time.Now()

	o1 := order(log, 1, "0xm", meth, "1", zeq, "1", now)
	o2 := order(log, 2, "0xm", meth, "1", zeq, "1", now)
	o3 := order(log, 3, "0xm", meth, "1", zeq, "1", now)

	log.Append(now, events.Cancel{Order: o1, Cancelled: now})
	trade(log, o2, "0xt", now)

	open := OpenOrders(log)
	assert.Len(t, open, 1)
	assert.Equal(t, o3.ID, open[0].ID)
}

func TestUserOpenOrders(t *testing.T) {
	log := events.NewLog()
	now := time.Now()

	order(log, 1, "0xalice", meth, "1", zeq, "1", now)
	order(log, 2, "0xbob", meth, "1", zeq, "1", now)

	open := UserOpenOrders(log, "0xalice")
	assert.Len(t, open, 1)
	assert.Equal(t, uint64(1), open[0].ID)
}

func TestBook(t *testing.T) {
	log := events.NewLog()
	now := time.Now()

	// Buy orders: give the quote token (mETH) to get the base (ZEQ)
	order(log, 1, "0xa", zeq, "10", meth, "20", now) // price 2
	order(log, 2, "0xb", zeq, "10", meth, "50", now) // price 5
	// Sell order: give the base to get the quote
	order(log, 3, "0xc", meth, "30", zeq, "10", now) // price 3
	// Different pair: excluded
	order(log, 4, "0xd", mdai, "1", zeq, "1", now)

	book := Book(log, pair)

	assert.Len(t, book.Buys, 2)
	assert.Len(t, book.Sells, 1)

	// Buys sorted by price descending
	assert.Equal(t, uint64(2), book.Buys[0].ID)
	assert.True(t, book.Buys[0].Price.Equal(amt("5")))
	assert.True(t, book.Buys[1].Price.Equal(amt("2")))

	assert.Equal(t, SideBuy, book.Buys[0].Side)
	assert.Equal(t, SideSell, book.Sells[0].Side)
	assert.True(t, book.Sells[0].Price.Equal(amt("3")))
	assert.True(t, book.Buys[0].BaseAmount.Equal(amt("10")))
	assert.True(t, book.Buys[0].QuoteAmount.Equal(amt("50")))
}

func TestBookExcludesClosedOrders(t *testing.T) {
	log := events.NewLog()
	now := time.Now()

	o1 := order(log, 1, "0xa", zeq, "10", meth, "20", now)
	order(log, 2, "0xb", zeq, "10", meth, "30", now)
	log.Append(now, events.Cancel{Order: o1, Cancelled: now})

	book := Book(log, pair)
	assert.Len(t, book.Buys, 1)
	assert.Equal(t, uint64(2), book.Buys[0].ID)
}

func TestFilledOrders(t *testing.T) {
	log := events.NewLog()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	o1 := order(log, 1, "0xm", meth, "20", zeq, "10", base) // price 2
	o2 := order(log, 2, "0xm", meth, "50", zeq, "10", base) // price 5
	o3 := order(log, 3, "0xm", meth, "30", zeq, "10", base) // price 3

	// Fills arrive out of order; projection sorts by time
	trade(log, o3, "0xt", base.Add(30*time.Minute))
	trade(log, o1, "0xt", base.Add(10*time.Minute))
	trade(log, o2, "0xt", base.Add(20*time.Minute))

	fills := FilledOrders(log, pair)
	assert.Len(t, fills, 3)
	assert.Equal(t, uint64(1), fills[0].OrderID)
	assert.Equal(t, uint64(2), fills[1].OrderID)
	assert.Equal(t, uint64(3), fills[2].OrderID)

	// Change decorations: 2 (+), 5 (+), 3 (-)
	assert.Equal(t, "+", fills[0].Change)
	assert.Equal(t, "+", fills[1].Change)
	assert.Equal(t, "-", fills[2].Change)
	assert.True(t, fills[1].Price.Equal(amt("5")))
}

func TestPriceChart(t *testing.T) {
	log := events.NewLog()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id uint64, amountQuote string, at time.Time) {
		o := order(log, id, "0xm", meth, amountQuote, zeq, "10", at)
		trade(log, o, "0xt", at)
	}

	// Hour one: prices 2, 5, 1, 3
	mk(1, "20", base.Add(5*time.Minute))
	mk(2, "50", base.Add(15*time.Minute))
	mk(3, "10", base.Add(25*time.Minute))
	mk(4, "30", base.Add(35*time.Minute))
	// Hour two: price 4
	mk(5, "40", base.Add(70*time.Minute))

	series := PriceChart(log, pair)
	assert.Len(t, series.Candles, 2)

	c := series.Candles[0]
	assert.Equal(t, base.Truncate(time.Hour), c.Start)
	assert.True(t, c.Open.Equal(amt("2")))
	assert.True(t, c.High.Equal(amt("5")))
	assert.True(t, c.Low.Equal(amt("1")))
	assert.True(t, c.Close.Equal(amt("3")))

	assert.True(t, series.Candles[1].Open.Equal(amt("4")))
	assert.True(t, series.LastPrice.Equal(amt("4")))
	assert.Equal(t, "+", series.LastChange)
}

func TestPriceChartEmpty(t *testing.T) {
	log := events.NewLog()
	series := PriceChart(log, pair)
	assert.Empty(t, series.Candles)
	assert.True(t, series.LastPrice.IsZero())
}

func TestUserTrades(t *testing.T) {
	log := events.NewLog()
	now := time.Now()

	o1 := order(log, 1, "0xmaker", meth, "1", zeq, "1", now)
	o2 := order(log, 2, "0xother", meth, "1", zeq, "1", now)
	trade(log, o1, "0xtaker", now)
	trade(log, o2, "0xthird", now)

	// Maker and taker both see the first trade; the third party only theirs
	assert.Len(t, UserTrades(log, "0xmaker"), 1)
	assert.Len(t, UserTrades(log, "0xtaker"), 1)
	assert.Len(t, UserTrades(log, "0xthird"), 1)
	assert.Empty(t, UserTrades(log, "0xstranger"))
}
