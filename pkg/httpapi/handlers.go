package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erain9/runebook/pkg/api"
	"github.com/erain9/runebook/pkg/core"
	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/server"
)

type handlers struct {
	engine server.Engine
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req api.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "reasons": []string{err.Error()}})
		return
	}
	placeReq, err := server.ParsePlaceOrderRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid order", "reasons": []string{err.Error()}})
		return
	}

	done, err := h.engine.PlaceOrder(c.Request.Context(), placeReq)
	if err != nil {
		body := errorBody(err)
		if done != nil {
			body["orderId"] = done.OrderID()
		}
		c.JSON(statusFromError(err), body)
		return
	}
	c.JSON(http.StatusCreated, server.ToPlaceOrderResponse(done))
}

func (h *handlers) cancelOrder(c *gin.Context) {
	order, err := h.engine.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.OrderResponse{Order: server.ToAPIOrder(order)})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.OrderResponse{Order: server.ToAPIOrder(order)})
}

func (h *handlers) getOrdersByAddress(c *gin.Context) {
	orders, err := h.engine.GetOrdersByAddress(c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.OrdersResponse{Orders: server.ToAPIOrders(orders)})
}

func (h *handlers) getOrderBook(c *gin.Context) {
	depth := server.MaxBookDepth
	if raw := c.Query("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "depth must be a positive integer"})
			return
		}
		depth = min(n, server.MaxBookDepth)
	}
	c.JSON(http.StatusOK, server.ToOrderBookResponse(h.engine.GetOrderBook(c.Param("runeId")), depth))
}

func (h *handlers) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, server.ToStatsResponse(h.engine.Stats()))
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		logger := logging.FromContext(c.Request.Context())
		logger.Error().Err(err).Str("route", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, errorBody(err))
}

func errorBody(err error) gin.H {
	body := gin.H{"message": err.Error()}
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		body["reasons"] = validation.Reasons
	}
	return body
}

// statusFromError maps engine errors onto HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, core.ErrSettlementFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
