package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

const defaultOrderPageSize = 20

type orderLineRequest struct {
	ItemID   int64           `json:"item_id" binding:"required"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Discount int             `json:"discount"`
	Quantity int             `json:"quantity"`
}

type placeOrderRequest struct {
	Items           []orderLineRequest     `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	claims, _ := auth.CurrentUser(c)

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	lines := make([]store.OrderLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = store.OrderLine{
			ItemID:          it.ItemID,
			Name:            it.Name,
			Slug:            it.Slug,
			Image:           it.Image,
			UnitPrice:       it.Price,
			DiscountPercent: it.Discount,
			Quantity:        it.Quantity,
		}
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), store.PlaceOrderRequest{
		UserID:          claims.UserID,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	claims, _ := auth.CurrentUser(c)
	limit := queryInt(c, "limit", defaultOrderPageSize)
	if h.maxPageSize > 0 && limit > h.maxPageSize {
		limit = h.maxPageSize
	}

	page, err := h.orders.ListOrdersCursor(c.Request.Context(), claims.UserID, c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// visibleOrder loads the order named by the path and checks that the caller
// owns it or is an admin.
func (h *Handler) visibleOrder(c *gin.Context) (*models.Order, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	claims, _ := auth.CurrentUser(c)
	if !claims.IsAdmin && !order.OwnedBy(claims.UserID) {
		h.respondError(c, database.ErrForbidden)
		return nil, false
	}
	return order, true
}

func (h *Handler) getOrder(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) payOrder(c *gin.Context) {
	order, ok := h.visibleOrder(c)
	if !ok {
		return
	}
	var result models.PaymentResult
	if err := c.ShouldBindJSON(&result); err != nil {
		badRequest(c, "invalid payment result")
		return
	}

	paid, err := h.orders.CapturePayment(c.Request.Context(), order.ID, result)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paid)
}

func (h *Handler) deliverOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	delivered, err := h.orders.MarkDelivered(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivered)
}
