package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketsync/internal/client/marketplace"
)

// OutboundHandler forwards write operations to the marketplace. Every call
// goes through the shared rate limiter, so manual operator actions and sync
// runs draw from the same request budget.
type OutboundHandler struct {
	Client *marketplace.Client
	Logger *zap.Logger
}

func (h *OutboundHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.POST("/orders/:id/acknowledge", h.acknowledgeOrder)
	group.PUT("/offers/:id", h.updateOffer)
	group.POST("/returns", h.createReturn)
	group.POST("/invoices", h.createInvoice)
}

func (h *OutboundHandler) forwardError(c *gin.Context, op string, err error) {
	if h.Logger != nil {
		h.Logger.Warn("outbound call failed", zap.String("op", op), zap.Error(err))
	}
	switch {
	case marketplace.IsAuthError(err):
		Error(c, http.StatusUnauthorized, err.Error(), nil)
	case marketplace.IsRemoteRejected(err):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}

// @Summary Acknowledge an order on the marketplace
// @Tags outbound
// @Param id path string true "remote order id"
// @Param account query string true "account scope"
// @Success 200 {object} apiResponse
// @Router /api/orders/{id}/acknowledge [post]
func (h *OutboundHandler) acknowledgeOrder(c *gin.Context) {
	if h.Client == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	account := c.Query("account")
	remoteID := c.Param("id")
	if err := h.Client.AcknowledgeOrder(c.Request.Context(), account, remoteID); err != nil {
		h.forwardError(c, "acknowledge_order", err)
		return
	}
	Ok(c, gin.H{"remote_id": remoteID, "acknowledged": true}, nil)
}

// @Summary Push a price/stock change to the marketplace
// @Tags outbound
// @Param id path string true "remote offer id"
// @Param account query string true "account scope"
// @Param request body marketplace.OfferUpdate true "offer fields"
// @Success 200 {object} apiResponse
// @Router /api/offers/{id} [put]
func (h *OutboundHandler) updateOffer(c *gin.Context) {
	if h.Client == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var update marketplace.OfferUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	account := c.Query("account")
	remoteID := c.Param("id")
	if err := h.Client.UpdateOffer(c.Request.Context(), account, remoteID, update); err != nil {
		h.forwardError(c, "update_offer", err)
		return
	}
	Ok(c, gin.H{"remote_id": remoteID, "updated": true}, nil)
}

// @Summary Create a return on the marketplace
// @Tags outbound
// @Param account query string true "account scope"
// @Param request body marketplace.ReturnRequest true "return fields"
// @Success 200 {object} apiResponse
// @Router /api/returns [post]
func (h *OutboundHandler) createReturn(c *gin.Context) {
	if h.Client == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req marketplace.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	account := c.Query("account")
	if err := h.Client.CreateReturn(c.Request.Context(), account, req); err != nil {
		h.forwardError(c, "create_return", err)
		return
	}
	Ok(c, gin.H{"order_id": req.OrderRemoteID, "created": true}, nil)
}

// @Summary Attach an invoice to an order
// @Tags outbound
// @Param account query string true "account scope"
// @Param request body marketplace.InvoiceRequest true "invoice fields"
// @Success 200 {object} apiResponse
// @Router /api/invoices [post]
func (h *OutboundHandler) createInvoice(c *gin.Context) {
	if h.Client == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req marketplace.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	account := c.Query("account")
	if err := h.Client.CreateInvoice(c.Request.Context(), account, req); err != nil {
		h.forwardError(c, "create_invoice", err)
		return
	}
	Ok(c, gin.H{"number": req.Number, "created": true}, nil)
}
