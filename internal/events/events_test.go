package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/zeqswap/exchange/internal/models"
)

func TestLog_AppendAssignsSequence(t *testing.T) {
	log := NewLog()
	now := time.Now()

	first := log.Append(now, Transfer{Token: "0xt", From: "0xa", To: "0xb", Value: decimal.New(1, 0)})
	second := log.Append(now, Deposit{User: "0xa", Token: "0xt", Amount: decimal.New(2, 0), Balance: decimal.New(2, 0)})

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	entries := log.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, KindTransfer, entries[0].Event.Kind())
	assert.Equal(t, KindDeposit, entries[1].Event.Kind())
}

func TestLog_AllReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(time.Now(), Transfer{Token: "0xt", From: "0xa", To: "0xb", Value: decimal.New(1, 0)})

	entries := log.All()
	entries[0].Seq = 99

	assert.Equal(t, uint64(1), log.All()[0].Seq)
}

func TestLog_Filters(t *testing.T) {
	log := NewLog()
	now := time.Now()

	order := models.Order{ID: 1, User: "0xmaker", TokenGet: "0xA", TokenGive: "0xB", Timestamp: now}
	log.Append(now, Order{Order: order})
	log.Append(now, Order{Order: models.Order{ID: 2, User: "0xmaker", Timestamp: now}})
	log.Append(now, Cancel{Order: order, Cancelled: now})
	log.Append(now, Trade{Trade: models.Trade{OrderID: 2, User: "0xtaker", Maker: "0xmaker", Timestamp: now}})
	log.Append(now, Transfer{Token: "0xA", From: "0xa", To: "0xb", Value: decimal.New(1, 0)})

	assert.Len(t, log.Orders(), 2)
	assert.Len(t, log.Cancels(), 1)
	assert.Len(t, log.Trades(), 1)
	assert.Equal(t, uint64(1), log.Cancels()[0].ID)
	assert.Equal(t, uint64(2), log.Trades()[0].OrderID)
	assert.Equal(t, 5, log.Len())
}
