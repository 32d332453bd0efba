package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/transport"
	"github.com/yuchialin/cvspay/pkg/logger"
)

type ServiceAPI interface {
	CreateOrder(ctx context.Context, clientSystem string, dto CreateOrderDTO) (*CreateOrderResponse, error)
	GetStatus(ctx context.Context, orderID int64, clientSystem string) (*StatusResponse, error)
	RefreshStatus(ctx context.Context, orderID int64, clientSystem string) (*RefreshResponse, error)
	Cancel(ctx context.Context, orderID int64, clientSystem string) (*StatusResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	clientSystem := internal.ClientSystemFromContext(r.Context())
	if clientSystem == "" {
		h.Logger.Error("CreateOrder: client system not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateOrder: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.CreateOrder(r.Context(), clientSystem, dto)
	if err != nil {
		h.Logger.Error("CreateOrder: service error", "error", err, "client_system", clientSystem)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateOrder: order created",
		"order_id", resp.OrderID,
		"client_system", clientSystem,
		"mode", resp.Mode)

	h.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetBarcodeStatus(w http.ResponseWriter, r *http.Request) {
	clientSystem := internal.ClientSystemFromContext(r.Context())
	if clientSystem == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := h.orderIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	resp, err := h.Service.GetStatus(r.Context(), orderID, clientSystem)
	if err != nil {
		h.Logger.Error("GetBarcodeStatus: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) QueryBarcode(w http.ResponseWriter, r *http.Request) {
	clientSystem := internal.ClientSystemFromContext(r.Context())
	if clientSystem == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := h.orderIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	resp, err := h.Service.RefreshStatus(r.Context(), orderID, clientSystem)
	if err != nil {
		h.Logger.Error("QueryBarcode: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	clientSystem := internal.ClientSystemFromContext(r.Context())
	if clientSystem == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := h.orderIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	resp, err := h.Service.Cancel(r.Context(), orderID, clientSystem)
	if err != nil {
		h.Logger.Error("CancelOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
