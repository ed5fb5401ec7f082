package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zeqswap/exchange/internal/auth"
	"github.com/zeqswap/exchange/internal/config"
	"github.com/zeqswap/exchange/internal/db"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/exchange"
	"github.com/zeqswap/exchange/internal/models"
	"github.com/zeqswap/exchange/internal/selectors"
	"github.com/zeqswap/exchange/internal/token"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	DB          *db.DB
	Exchange    *exchange.Exchange
	Tokens      *token.Registry
	Log         *events.Log
	AuthService *auth.AuthService
	Networks    map[string]config.Network
	Logger      *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(database *db.DB, ex *exchange.Exchange, tokens *token.Registry, log *events.Log, authService *auth.AuthService, networks map[string]config.Network, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          database,
		Exchange:    ex,
		Tokens:      tokens,
		Log:         log,
		AuthService: authService,
		Networks:    networks,
		Logger:      logger,
	}
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error": "Username and password required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.Logger.Error("failed to register user", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, `{"error": "Failed to register user"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"address":  user.Address,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	tokenString, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": tokenString})
}

// JWTAuthMiddleware verifies JWT tokens and places the caller's address in
// the request context
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, `{"error": "Authorization header required"}`, http.StatusUnauthorized)
			return
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		address, err := h.AuthService.GetUserFromToken(tokenString)
		if err != nil {
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "address", address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func caller(r *http.Request) (models.Address, bool) {
	address, ok := r.Context().Value("address").(models.Address)
	return address, ok
}

// Me returns the authenticated caller's account
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	user, err := h.DB.GetUserByAddress(r.Context(), address)
	if err != nil {
		http.Error(w, `{"error": "Failed to retrieve user"}`, http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"address":  user.Address,
	})
}

// coreError translates a core failure into an HTTP response.
func (h *Handler) coreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrNotOrderOwner):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrOrderClosed):
		status = http.StatusConflict
	case errors.Is(err, exchange.ErrUnknownToken),
		errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrInsufficientCustodialBalance),
		errors.Is(err, exchange.ErrTransferRejected),
		errors.Is(err, token.ErrInvalidRecipient),
		errors.Is(err, token.ErrInvalidSpender),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusBadRequest
	}
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	http.Error(w, string(body), status)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ListTokens returns metadata for every deployed token ledger
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	type tokenInfo struct {
		Address     models.Address  `json:"address"`
		Name        string          `json:"name"`
		Symbol      string          `json:"symbol"`
		Decimals    int             `json:"decimals"`
		TotalSupply decimal.Decimal `json:"total_supply"`
	}
	var out []tokenInfo
	for _, t := range h.Tokens.All() {
		out = append(out, tokenInfo{
			Address:     t.Address(),
			Name:        t.Name(),
			Symbol:      t.Symbol(),
			Decimals:    t.Decimals(),
			TotalSupply: t.TotalSupply(),
		})
	}
	json.NewEncoder(w).Encode(out)
}

func (h *Handler) tokenFromURL(w http.ResponseWriter, r *http.Request) (*token.Token, bool) {
	t, ok := h.Tokens.Resolve(chi.URLParam(r, "address"))
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return nil, false
	}
	return t, true
}

// GetTokenBalance returns an account's ledger balance for a token
func (h *Handler) GetTokenBalance(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tokenFromURL(w, r)
	if !ok {
		return
	}
	account := models.Address(chi.URLParam(r, "account"))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":   t.Address(),
		"account": account,
		"balance": t.BalanceOf(account),
	})
}

// GetAllowance returns the remaining (owner, spender) allowance for a token
func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tokenFromURL(w, r)
	if !ok {
		return
	}
	owner := models.Address(chi.URLParam(r, "owner"))
	spender := models.Address(chi.URLParam(r, "spender"))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":     t.Address(),
		"owner":     owner,
		"spender":   spender,
		"allowance": t.Allowance(owner, spender),
	})
}

// Transfer moves tokens from the caller to another account
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	t, ok := h.tokenFromURL(w, r)
	if !ok {
		return
	}

	var req struct {
		To     models.Address `json:"to"`
		Amount string         `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	if err := t.Transfer(from, req.To, amount); err != nil {
		h.coreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Transfer complete",
		"balance": t.BalanceOf(from),
	})
}

// Approve grants the spender an allowance over the caller's tokens
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	t, ok := h.tokenFromURL(w, r)
	if !ok {
		return
	}

	var req struct {
		Spender models.Address `json:"spender"`
		Amount  string         `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	if err := t.Approve(owner, req.Spender, amount); err != nil {
		h.coreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Approval set",
		"allowance": t.Allowance(owner, req.Spender),
	})
}

// TransferFrom performs a delegated transfer; the caller is the spender
func (h *Handler) TransferFrom(w http.ResponseWriter, r *http.Request) {
	spender, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	t, ok := h.tokenFromURL(w, r)
	if !ok {
		return
	}

	var req struct {
		From   models.Address `json:"from"`
		To     models.Address `json:"to"`
		Amount string         `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	if err := t.TransferFrom(spender, req.From, req.To, amount); err != nil {
		h.coreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"message": "Transfer complete"})
}

// Deposit moves approved tokens from the caller's ledger balance into
// exchange custody
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	t, ok := h.Tokens.Resolve(req.Token)
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	balance, err := h.Exchange.DepositToken(user, t.Address(), amount)
	if err != nil {
		h.coreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Deposit complete",
		"token":   t.Address(),
		"balance": balance,
	})
}

// Withdraw returns custodied tokens to the caller's ledger balance
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	t, ok := h.Tokens.Resolve(req.Token)
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	balance, err := h.Exchange.WithdrawToken(user, t.Address(), amount)
	if err != nil {
		h.coreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Withdrawal complete",
		"token":   t.Address(),
		"balance": balance,
	})
}

// GetExchangeBalance returns a custodial balance
func (h *Handler) GetExchangeBalance(w http.ResponseWriter, r *http.Request) {
	t, ok := h.Tokens.Resolve(r.URL.Query().Get("token"))
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return
	}
	account := models.Address(r.URL.Query().Get("account"))
	if account.IsZero() {
		if addr, ok := caller(r); ok {
			account = addr
		}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":   t.Address(),
		"account": account,
		"balance": h.Exchange.BalanceOf(t.Address(), account),
	})
}

// GetExchangeConfig returns the deployed exchange parameters
func (h *Handler) GetExchangeConfig(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"address":     h.Exchange.Address(),
		"fee_account": h.Exchange.FeeAccount(),
		"fee_percent": h.Exchange.FeePercent(),
		"order_count": h.Exchange.OrderCount(),
	})
}

// GetNetworks returns the per-network contract address map
func (h *Handler) GetNetworks(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.Networks)
}

// PlaceOrder creates a swap order and indexes it
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		TokenGet   string `json:"token_get"`
		AmountGet  string `json:"amount_get"`
		TokenGive  string `json:"token_give"`
		AmountGive string `json:"amount_give"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	tokenGet, ok := h.Tokens.Resolve(req.TokenGet)
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return
	}
	tokenGive, ok := h.Tokens.Resolve(req.TokenGive)
	if !ok {
		http.Error(w, `{"error": "Unknown token"}`, http.StatusNotFound)
		return
	}
	amountGet, err := parseAmount(req.AmountGet)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}
	amountGive, err := parseAmount(req.AmountGive)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	order, err := h.Exchange.MakeOrder(user, tokenGet.Address(), amountGet, tokenGive.Address(), amountGive)
	if err != nil {
		h.coreError(w, err)
		return
	}

	if err := h.DB.RecordOrder(r.Context(), &order); err != nil {
		h.Logger.Error("failed to index order", zap.Uint64("order_id", order.ID), zap.Error(err))
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// CancelOrder cancels an open order owned by the caller
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order ID"}`, http.StatusBadRequest)
		return
	}

	if err := h.Exchange.CancelOrder(user, orderID); err != nil {
		h.coreError(w, err)
		return
	}

	if err := h.DB.RecordCancel(r.Context(), orderID, user, time.Now()); err != nil {
		h.Logger.Error("failed to index cancellation", zap.Uint64("order_id", orderID), zap.Error(err))
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Order cancelled"})
}

// FillOrder settles an open order against the caller's custodial balances
func (h *Handler) FillOrder(w http.ResponseWriter, r *http.Request) {
	taker, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order ID"}`, http.StatusBadRequest)
		return
	}

	trade, err := h.Exchange.FillOrder(taker, orderID)
	if err != nil {
		h.coreError(w, err)
		return
	}

	if err := h.DB.RecordTrade(r.Context(), &trade); err != nil {
		h.Logger.Error("failed to index trade", zap.Uint64("order_id", orderID), zap.Error(err))
	}

	json.NewEncoder(w).Encode(trade)
}

// GetUserOrders retrieves the caller's indexed orders
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orders, err := h.DB.GetUserOrders(r.Context(), user)
	if err != nil {
		h.Logger.Error("failed to retrieve orders", zap.Error(err))
		http.Error(w, `{"error": "Failed to retrieve orders"}`, http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(orders)
}

// pairFromQuery resolves ?base=&quote= into a selectors.Pair.
func (h *Handler) pairFromQuery(w http.ResponseWriter, r *http.Request) (selectors.Pair, bool) {
	base, ok := h.Tokens.Resolve(r.URL.Query().Get("base"))
	if !ok {
		http.Error(w, `{"error": "Unknown base token"}`, http.StatusNotFound)
		return selectors.Pair{}, false
	}
	quote, ok := h.Tokens.Resolve(r.URL.Query().Get("quote"))
	if !ok {
		http.Error(w, `{"error": "Unknown quote token"}`, http.StatusNotFound)
		return selectors.Pair{}, false
	}
	return selectors.Pair{Base: base.Address(), Quote: quote.Address()}, true
}

// GetOrderBook projects the current order book for a pair
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	pair, ok := h.pairFromQuery(w, r)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(selectors.Book(h.Log, pair))
}

// GetTrades returns a pair's decorated fill history
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	pair, ok := h.pairFromQuery(w, r)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(selectors.FilledOrders(h.Log, pair))
}

// GetUserTrades retrieves the caller's indexed trade history
func (h *Handler) GetUserTrades(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	trades, err := h.DB.GetUserTrades(r.Context(), user)
	if err != nil {
		h.Logger.Error("failed to retrieve trades", zap.Error(err))
		http.Error(w, `{"error": "Failed to retrieve trades"}`, http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(trades)
}

// GetPriceChart returns the hourly OHLC series for a pair
func (h *Handler) GetPriceChart(w http.ResponseWriter, r *http.Request) {
	pair, ok := h.pairFromQuery(w, r)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(selectors.PriceChart(h.Log, pair))
}
