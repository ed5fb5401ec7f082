// Package selectors derives display-ready views from the exchange event log.
// Every function is a pure, read-only projection: it replays the order,
// cancel, and trade streams and reconciles on order ids, never on delivery
// order.
package selectors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/models"
)

// Order sides as seen from the base token of a pair.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// pricePrecision is the display rounding applied to derived prices.
const pricePrecision = 5

// Pair is a trading pair: prices quote the base token in units of the quote
// token.
type Pair struct {
	Base  models.Address
	Quote models.Address
}

func (p Pair) contains(a models.Address) bool {
	return a == p.Base || a == p.Quote
}

// BookOrder is an open order decorated for display within a pair.
type BookOrder struct {
	models.Order
	Side        string          `json:"side"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	Price       decimal.Decimal `json:"price"`
}

// OrderBook groups a pair's open orders by side, each sorted by price
// descending.
type OrderBook struct {
	Buys  []BookOrder `json:"buys"`
	Sells []BookOrder `json:"sells"`
}

// FilledOrder is a trade decorated with its pair price and the direction of
// change against the preceding trade.
type FilledOrder struct {
	models.Trade
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	Price       decimal.Decimal `json:"price"`
	Change      string          `json:"change"` // "+" or "-"
}

// Candle is one OHLC bucket of the price series.
type Candle struct {
	Start time.Time       `json:"start"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// PriceSeries is the chartable trade history of a pair.
type PriceSeries struct {
	Candles    []Candle        `json:"candles"`
	LastPrice  decimal.Decimal `json:"last_price"`
	LastChange string          `json:"last_change"` // "+" or "-"
}

// OpenOrders returns every created order without a terminal cancel or fill
// record, in creation order.
func OpenOrders(log *events.Log) []models.Order {
	closed := make(map[uint64]bool)
	for _, c := range log.Cancels() {
		closed[c.ID] = true
	}
	for _, t := range log.Trades() {
		closed[t.OrderID] = true
	}

	var open []models.Order
	for _, o := range log.Orders() {
		if !closed[o.ID] {
			open = append(open, o)
		}
	}
	return open
}

// UserOpenOrders returns the open orders created by one account.
func UserOpenOrders(log *events.Log, user models.Address) []models.Order {
	var out []models.Order
	for _, o := range OpenOrders(log) {
		if o.User == user {
			out = append(out, o)
		}
	}
	return out
}

// UserTrades returns every trade an account took part in, as maker or taker,
// in fill order.
func UserTrades(log *events.Log, user models.Address) []models.Trade {
	var out []models.Trade
	for _, t := range log.Trades() {
		if t.User == user || t.Maker == user {
			out = append(out, t)
		}
	}
	return out
}

// Book projects the open orders of a pair into a two-sided display book.
func Book(log *events.Log, pair Pair) OrderBook {
	var book OrderBook
	for _, o := range OpenOrders(log) {
		if !pair.contains(o.TokenGet) || !pair.contains(o.TokenGive) || o.TokenGet == o.TokenGive {
			continue
		}
		book = appendBookOrder(book, decorateOrder(o, pair))
	}

	byPriceDesc := func(orders []BookOrder) func(i, j int) bool {
		return func(i, j int) bool { return orders[i].Price.GreaterThan(orders[j].Price) }
	}
	sort.SliceStable(book.Buys, byPriceDesc(book.Buys))
	sort.SliceStable(book.Sells, byPriceDesc(book.Sells))
	return book
}

func appendBookOrder(book OrderBook, o BookOrder) OrderBook {
	if o.Side == SideBuy {
		book.Buys = append(book.Buys, o)
	} else {
		book.Sells = append(book.Sells, o)
	}
	return book
}

// decorateOrder classifies an order within a pair. An order giving the quote
// token is buying the base; an order giving the base is selling it.
func decorateOrder(o models.Order, pair Pair) BookOrder {
	d := BookOrder{Order: o}
	if o.TokenGive == pair.Quote {
		d.Side = SideBuy
		d.BaseAmount = o.AmountGet
		d.QuoteAmount = o.AmountGive
	} else {
		d.Side = SideSell
		d.BaseAmount = o.AmountGive
		d.QuoteAmount = o.AmountGet
	}
	d.Price = price(d.QuoteAmount, d.BaseAmount)
	return d
}

// FilledOrders returns a pair's trades in time order, each decorated with its
// price and the direction of change from the trade before it.
func FilledOrders(log *events.Log, pair Pair) []FilledOrder {
	var fills []FilledOrder
	for _, t := range log.Trades() {
		if !pair.contains(t.TokenGet) || !pair.contains(t.TokenGive) || t.TokenGet == t.TokenGive {
			continue
		}
		fills = append(fills, decorateTrade(t, pair))
	}

	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Timestamp.Before(fills[j].Timestamp)
	})

	prev := decimal.Zero
	for i := range fills {
		if fills[i].Price.GreaterThanOrEqual(prev) {
			fills[i].Change = "+"
		} else {
			fills[i].Change = "-"
		}
		prev = fills[i].Price
	}
	return fills
}

func decorateTrade(t models.Trade, pair Pair) FilledOrder {
	d := FilledOrder{Trade: t}
	if t.TokenGive == pair.Quote {
		d.BaseAmount = t.AmountGet
		d.QuoteAmount = t.AmountGive
	} else {
		d.BaseAmount = t.AmountGive
		d.QuoteAmount = t.AmountGet
	}
	d.Price = price(d.QuoteAmount, d.BaseAmount)
	return d
}

// PriceChart buckets a pair's trades into hourly OHLC candles.
func PriceChart(log *events.Log, pair Pair) PriceSeries {
	fills := FilledOrders(log, pair)
	if len(fills) == 0 {
		return PriceSeries{}
	}

	var series PriceSeries
	var cur *Candle
	for _, f := range fills {
		start := f.Timestamp.Truncate(time.Hour)
		if cur == nil || !cur.Start.Equal(start) {
			series.Candles = append(series.Candles, Candle{
				Start: start,
				Open:  f.Price,
				High:  f.Price,
				Low:   f.Price,
				Close: f.Price,
			})
			cur = &series.Candles[len(series.Candles)-1]
			continue
		}
		if f.Price.GreaterThan(cur.High) {
			cur.High = f.Price
		}
		if f.Price.LessThan(cur.Low) {
			cur.Low = f.Price
		}
		cur.Close = f.Price
	}

	series.LastPrice = fills[len(fills)-1].Price
	series.LastChange = fills[len(fills)-1].Change
	return series
}

func price(quote, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return quote.DivRound(base, pricePrecision)
}
