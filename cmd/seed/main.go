package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/zeqswap/exchange/internal/logger"
	"github.com/zeqswap/exchange/internal/models"

	"go.uber.org/zap"
)

// client is a minimal authenticated API client for one trader.
type client struct {
	base    string
	token   string
	Address models.Address
}

func (c *client) do(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// login authenticates an existing user, registering them first if needed.
func login(base, username, password string) (*client, error) {
	c := &client{base: base}

	var reg struct {
		Address models.Address `json:"address"`
	}
	err := c.do("POST", "/auth/register", map[string]string{"username": username, "password": password}, &reg)
	if err == nil {
		c.Address = reg.Address
	}

	var res struct {
		Token string `json:"token"`
	}
	if err := c.do("POST", "/auth/login", map[string]string{"username": username, "password": password}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token

	if c.Address.IsZero() {
		// Existing user: recover the address from the authenticated profile.
		var me struct {
			Address models.Address `json:"address"`
		}
		if err := c.do("GET", "/auth/me", nil, &me); err != nil {
			return nil, err
		}
		c.Address = me.Address
	}
	return c, nil
}

func (c *client) transfer(token string, to models.Address, amount string) error {
	return c.do("POST", "/tokens/"+token+"/transfer", map[string]string{"to": string(to), "amount": amount}, nil)
}

func (c *client) approve(token string, spender models.Address, amount string) error {
	return c.do("POST", "/tokens/"+token+"/approve", map[string]string{"spender": string(spender), "amount": amount}, nil)
}

func (c *client) deposit(token, amount string) error {
	return c.do("POST", "/exchange/deposits", map[string]string{"token": token, "amount": amount}, nil)
}

func (c *client) makeOrder(tokenGet, amountGet, tokenGive, amountGive string) (uint64, error) {
	var order struct {
		ID uint64 `json:"id"`
	}
	err := c.do("POST", "/orders", map[string]string{
		"token_get":   tokenGet,
		"amount_get":  amountGet,
		"token_give":  tokenGive,
		"amount_give": amountGive,
	}, &order)
	return order.ID, err
}

func (c *client) cancelOrder(id uint64) error {
	return c.do("DELETE", fmt.Sprintf("/orders/%d", id), nil, nil)
}

func (c *client) fillOrder(id uint64) error {
	return c.do("POST", fmt.Sprintf("/orders/%d/fill", id), nil, nil)
}

// Seed a running exchange with the canonical demo scenario: funded traders,
// one cancelled order, three fills, and a ladder of open orders per side.
func main() {
	base := flag.String("addr", "http://localhost:8080", "exchange server base URL")
	deployerPass := flag.String("deployer-pass", "deployer-pass", "deployer password")
	flag.Parse()

	logger.Init(true)
	defer logger.Log.Sync()

	// Skip if the exchange already has trade history.
	var trades []json.RawMessage
	probe := &client{base: *base}
	if err := probe.do("GET", "/trades?base=ZEQ&quote=mETH", nil, &trades); err != nil {
		logger.Log.Fatal("exchange not reachable", zap.Error(err))
	}
	if len(trades) > 0 {
		fmt.Printf("Exchange already has %d trades. No need to seed.\n", len(trades))
		os.Exit(0)
	}

	deployer, err := login(*base, "deployer", *deployerPass)
	if err != nil {
		logger.Log.Fatal("deployer login failed", zap.Error(err))
	}
	trader1, err := login(*base, "trader1", "trader1-pass")
	if err != nil {
		logger.Log.Fatal("trader1 login failed", zap.Error(err))
	}
	trader2, err := login(*base, "trader2", "trader2-pass")
	if err != nil {
		logger.Log.Fatal("trader2 login failed", zap.Error(err))
	}

	var exchangeCfg struct {
		Address models.Address `json:"address"`
	}
	if err := probe.do("GET", "/exchange/config", nil, &exchangeCfg); err != nil {
		logger.Log.Fatal("failed to read exchange config", zap.Error(err))
	}

	must := func(step string, err error) {
		if err != nil {
			logger.Log.Fatal("seed step failed", zap.String("step", step), zap.Error(err))
		}
	}

	// Distribute supply: trader1 trades ZEQ, trader2 trades mETH.
	must("fund trader1", deployer.transfer("ZEQ", trader1.Address, "10000"))
	must("fund trader2", deployer.transfer("mETH", trader2.Address, "10000"))

	// Both traders move funds into custody.
	must("approve ZEQ", trader1.approve("ZEQ", exchangeCfg.Address, "10000"))
	must("deposit ZEQ", trader1.deposit("ZEQ", "10000"))
	must("approve mETH", trader2.approve("mETH", exchangeCfg.Address, "10000"))
	must("deposit mETH", trader2.deposit("mETH", "10000"))

	// Seed a cancelled order.
	id, err := trader1.makeOrder("mETH", "100", "ZEQ", "5")
	must("make order", err)
	must("cancel order", trader1.cancelOrder(id))
	logger.Log.Info("cancelled order seeded", zap.Uint64("order_id", id))

	// Seed filled orders.
	for _, o := range []struct{ get, give string }{
		{"100", "10"},
		{"50", "15"},
		{"200", "20"},
	} {
		id, err := trader1.makeOrder("mETH", o.get, "ZEQ", o.give)
		must("make order", err)
		must("fill order", trader2.fillOrder(id))
		logger.Log.Info("filled order seeded", zap.Uint64("order_id", id))
		time.Sleep(time.Second)
	}

	// Seed open orders on both sides of the book.
	for i := 1; i <= 10; i++ {
		_, err := trader1.makeOrder("mETH", fmt.Sprintf("%d", 10*i), "ZEQ", "10")
		must("make open order", err)
		_, err = trader2.makeOrder("ZEQ", "10", "mETH", fmt.Sprintf("%d", 10*i))
		must("make open order", err)
	}

	fmt.Println("Successfully seeded the exchange!")
}
