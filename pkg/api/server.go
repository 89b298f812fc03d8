package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/orderdesk/orderdesk/pkg/book"
	"github.com/orderdesk/orderdesk/pkg/events"
)

// Server exposes the order book over REST and a WebSocket trade feed.
type Server struct {
	orders    *book.Manager
	engine    *book.Engine
	hub       *Hub
	publisher *events.TradePublisher // nil when Kafka is disabled
	router    *mux.Router
	origins   []string
	log       *zap.SugaredLogger
}

func NewServer(orders *book.Manager, engine *book.Engine, publisher *events.TradePublisher, origins []string, logger *zap.Logger) *Server {
	s := &Server{
		orders:    orders,
		engine:    engine,
		hub:       NewHub(logger),
		publisher: publisher,
		router:    mux.NewRouter(),
		origins:   origins,
		log:       logger.Sugar(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(metricsMiddleware)

	s.router.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	s.router.HandleFunc("/orders/{id}", s.handleAddOrder).Methods("POST")
	s.router.HandleFunc("/orders/{id}", s.handleModifyOrder).Methods("PUT", "PATCH")
	s.router.HandleFunc("/orders/{id}", s.handleRemoveOrder).Methods("DELETE")

	s.router.HandleFunc("/trade", s.handlePlaceTrade).Methods("POST")
	s.router.HandleFunc("/trade/price", s.handleCalculatePrice).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// Order Handlers
// ==============================

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.serverError(w, "get order", err)
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}

	respondJSON(w, http.StatusOK, OrderResponse{
		ID:     order.ID,
		Symbol: order.Symbol,
		Side:   string(order.Side),
		Amount: order.Amount,
		Price:  order.Price,
	})
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AddOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	side, err := book.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	if req.Symbol == "" || req.Amount <= 0 || req.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid order", "symbol required, amount must be positive, price must be non-negative")
		return
	}

	if err := s.orders.AddOrder(r.Context(), id, req.Symbol, side, req.Amount, req.Price); err != nil {
		if errors.Is(err, book.ErrOrderAlreadyExists) {
			respondError(w, http.StatusConflict, err.Error(), "")
			return
		}
		s.serverError(w, "add order", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ModifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Amount <= 0 || req.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid order", "amount must be positive, price must be non-negative")
		return
	}

	if err := s.orders.ModifyOrder(r.Context(), id, req.Amount, req.Price); err != nil {
		if errors.Is(err, book.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		s.serverError(w, "modify order", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.orders.RemoveOrder(r.Context(), id); err != nil {
		if errors.Is(err, book.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		s.serverError(w, "remove order", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ==============================
// Trade Handlers
// ==============================

func (s *Server) handlePlaceTrade(w http.ResponseWriter, r *http.Request) {
	req, side, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	trade, err := s.engine.PlaceTrade(r.Context(), req.Symbol, side, req.Amount)
	if err != nil {
		if errors.Is(err, book.ErrInsufficientLiquidity) || errors.Is(err, book.ErrConcurrentModification) {
			tradesRejectedTotal.WithLabelValues(req.Symbol, rejectReason(err)).Inc()
			respondJSON(w, http.StatusOK, TradeResult{
				Successful: false,
				Timestamp:  time.Now().UTC(),
				Reason:     err.Error(),
			})
			return
		}
		s.serverError(w, "place trade", err)
		return
	}

	tradesPlacedTotal.WithLabelValues(req.Symbol, req.Side).Inc()
	tradedVolumeTotal.WithLabelValues(req.Symbol).Add(float64(req.Amount))
	s.broadcastTrade(trade)

	respondJSON(w, http.StatusOK, TradeResult{
		Successful: true,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	req, side, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	price, err := s.engine.CalculatePrice(r.Context(), req.Symbol, side, req.Amount)
	if err != nil {
		if errors.Is(err, book.ErrInsufficientLiquidity) {
			respondJSON(w, http.StatusOK, TradePriceResult{
				Successful: false,
				Timestamp:  time.Now().UTC(),
				Reason:     err.Error(),
			})
			return
		}
		s.serverError(w, "calculate price", err)
		return
	}

	respondJSON(w, http.StatusOK, TradePriceResult{
		Successful: true,
		Price:      price,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) decodeTradeRequest(w http.ResponseWriter, r *http.Request) (TradeRequest, book.Side, bool) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, "", false
	}
	side, err := book.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return req, "", false
	}
	if req.Symbol == "" || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid trade", "symbol required, amount must be positive")
		return req, "", false
	}
	return req, side, true
}

// broadcastTrade fans a committed trade out to WebSocket subscribers and,
// when configured, to Kafka. Both paths are best-effort: the trade is
// already durable.
func (s *Server) broadcastTrade(trade *book.Trade) {
	s.hub.BroadcastToChannel("trades:"+trade.Symbol, TradeUpdate{
		Type:      "trade",
		ID:        trade.ID,
		Symbol:    trade.Symbol,
		Side:      string(trade.Side),
		Amount:    trade.Amount,
		Timestamp: time.Now().UnixMilli(),
	})
	if s.publisher != nil {
		if err := s.publisher.Publish(trade); err != nil {
			s.log.Errorw("trade_publish_failed", "trade_id", trade.ID, "err", err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Errorw("request_failed", "op", op, "err", err)
	respondError(w, http.StatusInternalServerError, "internal server error", "")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}

func rejectReason(err error) string {
	if errors.Is(err, book.ErrConcurrentModification) {
		return "concurrent_modification"
	}
	return "insufficient_liquidity"
}
