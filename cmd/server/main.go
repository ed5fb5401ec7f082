package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zeqswap/exchange/internal/api"
	"github.com/zeqswap/exchange/internal/auth"
	"github.com/zeqswap/exchange/internal/config"
	"github.com/zeqswap/exchange/internal/db"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/exchange"
	"github.com/zeqswap/exchange/internal/logger"
	"github.com/zeqswap/exchange/internal/models"
	"github.com/zeqswap/exchange/internal/seed"
	"github.com/zeqswap/exchange/internal/selectors"
	"github.com/zeqswap/exchange/internal/token"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var (
	clients   = make(map[*WSClient]bool)
	clientsMu sync.RWMutex
)

// broadcastOrderBooks pushes the projected book for every trading pair to all
// connected clients.
func broadcastOrderBooks(log *events.Log, pairs map[string]selectors.Pair) {
	books := make(map[string]selectors.OrderBook, len(pairs))
	for name, pair := range pairs {
		books[name] = selectors.Book(log, pair)
	}
	data, err := json.Marshal(books)
	if err != nil {
		logger.Log.Error("failed to marshal order books", zap.Error(err))
		return
	}

	clientsMu.RLock()
	for client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			logger.Log.Warn("failed to send message", zap.Error(err))
			clientsMu.RUnlock()
			clientsMu.Lock()
			delete(clients, client)
			clientsMu.Unlock()
			clientsMu.RLock()
		}
	}
	clientsMu.RUnlock()
}

func handleWebSocket(log *events.Log, pairs map[string]selectors.Pair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warn("failed to upgrade connection", zap.Error(err))
			return
		}

		client := &WSClient{conn: conn}
		clientsMu.Lock()
		clients[client] = true
		clientsMu.Unlock()

		// Send initial order books
		broadcastOrderBooks(log, pairs)

		// Keep connection alive and handle disconnection
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				clientsMu.Lock()
				delete(clients, client)
				clientsMu.Unlock()
				break
			}
		}
	}
}

// Main entry point: deploys the token ledgers and exchange, then serves the
// HTTP surface over them.
func main() {
	ctx := context.Background()

	cfg, err := config.Load("./configs")
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Server.Debug)
	defer logger.Log.Sync()

	database, err := db.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(ctx)

	// One shared event log is the persisted history of every deployment.
	log := events.NewLog()
	deployer := models.ContractAddress("deployer")

	if err := seed.EnsureDeployer(ctx, database, deployer, cfg.Seed.DeployerPassword); err != nil {
		logger.Log.Fatal("failed to ensure deployer user", zap.Error(err))
	}

	registry := token.NewRegistry()
	for _, tc := range cfg.Tokens {
		supply, err := strconv.ParseInt(tc.Supply, 10, 64)
		if err != nil {
			logger.Log.Fatal("invalid token supply", zap.String("symbol", tc.Symbol), zap.Error(err))
		}
		t := token.New(models.ContractAddress(tc.Symbol), tc.Name, tc.Symbol, supply, deployer, log)
		registry.Add(t)
		logger.Log.Info("token deployed",
			zap.String("symbol", t.Symbol()),
			zap.String("address", string(t.Address())))
	}

	feeAccount := models.Address(cfg.Exchange.FeeAccount)
	if feeAccount.IsZero() {
		feeAccount = models.ContractAddress("fee-account")
	}
	ex := exchange.New(models.ContractAddress("exchange"), feeAccount, cfg.Exchange.FeePercent, log)
	for _, t := range registry.All() {
		ex.RegisterLedger(t.Address(), t)
	}
	logger.Log.Info("exchange deployed",
		zap.String("address", string(ex.Address())),
		zap.String("fee_account", string(feeAccount)),
		zap.Int64("fee_percent", ex.FeePercent()))

	authService := auth.NewAuthService(database, cfg.JWT.Secret)
	handler := api.NewHandler(database, ex, registry, log, authService, cfg.Networks, logger.Log)

	// Quote every deployed token against the first one.
	pairs := make(map[string]selectors.Pair)
	tokens := registry.All()
	if len(tokens) > 1 {
		for _, quote := range tokens[1:] {
			pairs[tokens[0].Symbol()+"/"+quote.Symbol()] = selectors.Pair{
				Base:  tokens[0].Address(),
				Quote: quote.Address(),
			}
		}
	}

	r := handler.Router()
	r.Get("/ws", handleWebSocket(log, pairs))

	// Start periodic order book broadcast
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		for range ticker.C {
			broadcastOrderBooks(log, pairs)
		}
	}()

	logger.Log.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		logger.Log.Fatal("server failed", zap.Error(err))
	}
}
