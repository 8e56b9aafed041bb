// Package server exposes the order lifecycle over HTTP. Mutating methods sit
// behind basic auth; every request goes through the logging middleware.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/config"
	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/lifecycle"
	"github.com/farmtofork/coldchain/internal/middleware"
	"github.com/farmtofork/coldchain/internal/models"
	"github.com/farmtofork/coldchain/internal/notify"
	"github.com/farmtofork/coldchain/internal/service"
)

type Server struct {
	svc      *service.OrderService
	center   *notify.Center
	user     string
	password string
	logger   zerolog.Logger
}

func NewServer(svc *service.OrderService, center *notify.Center, cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		svc:      svc,
		center:   center,
		user:     cfg.Username,
		password: cfg.Password,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.handleWith(mux, "/orders", s.handleOrders, "POST")
	s.handleWith(mux, "/orders/", s.handleOrderOne, "PUT")
	s.handleWith(mux, "/products", s.handleProducts, "POST")
	s.handleWith(mux, "/products/", s.handleProductOne, "PUT")
	s.handleWith(mux, "/manufacturers", s.handleManufacturers, "POST")
	s.handleWith(mux, "/retailers", s.handleRetailers, "POST")
	s.handleWith(mux, "/distributors", s.handleDistributors, "POST")
	s.handleWith(mux, "/notifications", s.handleNotifications, "DELETE")
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return middleware.LogMiddleware(s.logger)(mux)
}

func (s *Server) handleWith(mux *http.ServeMux, path string, handlerFunc http.HandlerFunc, authMethods ...string) {
	mux.Handle(path, middleware.BasicAuthMiddleware(s.user, s.password, authMethods...)(handlerFunc))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateOrder(w, r)
	case http.MethodGet:
		s.handleListOrders(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleOrderOne routes /orders/{id} and its sub-resources: track,
// eligible-distributors, status, reject, assign, cancel.
func (s *Server) handleOrderOne(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/orders/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad order id", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGetOrder(w, r, id)
	case action == "track" && r.Method == http.MethodGet:
		s.handleTrackOrder(w, r, id)
	case action == "eligible-distributors" && r.Method == http.MethodGet:
		s.handleEligibleDistributors(w, r, id)
	case action == "status" && r.Method == http.MethodPut:
		s.handleUpdateStatus(w, r, id)
	case action == "reject" && r.Method == http.MethodPut:
		s.handleReject(w, r, id)
	case action == "assign" && r.Method == http.MethodPut:
		s.handleAssign(w, r, id)
	case action == "cancel" && r.Method == http.MethodPut:
		s.handleCancel(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Retailer        string `json:"retailer"`
		ProductID       int64  `json:"productId"`
		Quantity        int    `json:"quantity"`
		DeliveryDate    string `json:"deliveryDate"`
		DeliveryTime    string `json:"deliveryTime"`
		ShippingAddress string `json:"shippingAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	o, err := s.svc.CreateOrder(r.Context(), service.CreateOrderInput{
		Retailer:        in.Retailer,
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		DeliveryDate:    in.DeliveryDate,
		DeliveryTime:    in.DeliveryTime,
		ShippingAddress: in.ShippingAddress,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		orders, err := s.svc.ListOrders(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
		return
	}
	orders, err := s.svc.ListOrdersFor(r.Context(), actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, id int64) {
	o, err := s.svc.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleTrackOrder(w http.ResponseWriter, r *http.Request, id int64) {
	history, err := s.svc.TrackOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleEligibleDistributors(w http.ResponseWriter, r *http.Request, id int64) {
	eligible, err := s.svc.EligibleDistributors(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligible)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, id int64) {
	var in struct {
		Actor  string `json:"actor"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.svc.UpdateOrderStatus(r.Context(), id, in.Actor, models.OrderStatus(in.Status)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, id int64) {
	var in struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.svc.RejectOrder(r.Context(), id, in.Actor, in.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request, id int64) {
	var in struct {
		Actor       string `json:"actor"`
		Distributor string `json:"distributor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.svc.AssignDistributor(r.Context(), id, in.Actor, in.Distributor); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, id int64) {
	var in struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.svc.CancelOrder(r.Context(), id, in.Actor); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var p models.Product
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		if _, err := s.svc.CreateProduct(r.Context(), &p); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	case http.MethodGet:
		manufacturer := r.URL.Query().Get("manufacturer")
		if manufacturer == "" {
			http.Error(w, "missing manufacturer", http.StatusBadRequest)
			return
		}
		products, err := s.svc.ListProductsByManufacturer(r.Context(), manufacturer)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProductOne(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/products/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad product id", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		p, err := s.svc.GetProduct(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case action == "status" && r.Method == http.MethodPut:
		var in struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		if err := s.svc.SetProductStatus(r.Context(), id, models.ProductStatus(in.Status)); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleManufacturers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var m models.Manufacturer
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		if err := s.svc.RegisterManufacturer(r.Context(), &m); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	case http.MethodGet:
		ms, err := s.svc.ListManufacturers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ms)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRetailers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ret models.Retailer
	if err := json.NewDecoder(r.Body).Decode(&ret); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}
	if err := s.svc.RegisterRetailer(r.Context(), &ret); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (s *Server) handleDistributors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var d models.Distributor
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		if err := s.svc.RegisterDistributor(r.Context(), &d); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	case http.MethodGet:
		ds, err := s.svc.ListDistributors(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ds)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.center.Active())
	case http.MethodDelete:
		var in struct {
			OrderID  int64  `json:"orderId"`
			Category string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}
		if err := s.center.Dismiss(in.OrderID, notify.Category(in.Category)); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrOrderNotFound),
		errors.Is(err, ledger.ErrProductNotFound),
		errors.Is(err, ledger.ErrParticipantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrActorNotPermitted),
		errors.Is(err, lifecycle.ErrUnknownActor):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ledger.ErrStaleStatus),
		errors.Is(err, ledger.ErrDistributorSet),
		errors.Is(err, lifecycle.ErrInvalidStatusTransition),
		errors.Is(err, lifecycle.ErrStatusAlreadySet):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error().Err(err).Msg("request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
