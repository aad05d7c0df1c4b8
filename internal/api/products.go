package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

// itemView is a catalog item as served to shoppers: the live item plus the
// unit price after any discount still active at request time.
type itemView struct {
	models.Item
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
}

func (h *Handler) view(item models.Item) itemView {
	percent := 0
	if discount.Active(item.DiscountPercent, item.DiscountExpiry, h.clock.Now().Unix()) {
		percent = item.DiscountPercent
	}
	return itemView{Item: item, DiscountedPrice: pricing.DiscountedUnitPrice(item.Price, percent)}
}

func (h *Handler) views(items []models.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, item := range items {
		out = append(out, h.view(item))
	}
	return out
}

func (h *Handler) viewPage(p *store.OffsetPage[models.Item]) *store.OffsetPage[itemView] {
	return &store.OffsetPage[itemView]{
		Items:      h.views(p.Items),
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

func (h *Handler) pageParams(c *gin.Context) (page, pageSize int, err error) {
	page = queryInt(c, "page", 1)
	pageSize = queryInt(c, "pageSize", h.pageSize)
	if h.maxPageSize > 0 && pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}
	if _, err := store.Offset(page, pageSize); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func (h *Handler) searchItems(c *gin.Context) {
	minPrice, maxPrice, err := store.ParsePriceRange(c.Query("price"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	minRating, err := store.ParseRating(c.Query("rating"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	filter := store.ItemFilter{
		Query:     c.Query("query"),
		Category:  c.Query("category"),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		MinRating: minRating,
	}
	page, pageSize, err := h.pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.catalog.FindItems(c.Request.Context(), filter, store.ParseSortOrder(c.Query("order")), page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewPage(result))
}

func (h *Handler) adminItems(c *gin.Context) {
	page, pageSize, err := h.pageParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.catalog.FindItems(c.Request.Context(), store.ItemFilter{}, store.SortDefault, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewPage(result))
}

func (h *Handler) listDiscounted(c *gin.Context) {
	items, err := h.catalog.ListDiscounted(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.views(items))
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.catalog.GetItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(*item))
}

func (h *Handler) getItemBySlug(c *gin.Context) {
	item, err := h.catalog.GetItemBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(*item))
}

type countdownResponse struct {
	Active          bool               `json:"active"`
	Discount        int                `json:"discount"`
	Remaining       discount.Countdown `json:"remaining"`
	Label           string             `json:"label"`
	DiscountedPrice decimal.Decimal    `json:"discounted_price"`
}

func (h *Handler) getCountdown(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.catalog.GetItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := countdownResponse{DiscountedPrice: h.view(*item).DiscountedPrice}
	if remaining, ok := discount.Remaining(item.DiscountExpiry, h.clock.Now().Unix()); ok && item.DiscountPercent > 0 {
		resp.Active = true
		resp.Discount = item.DiscountPercent
		resp.Remaining = remaining
		resp.Label = remaining.String()
	}
	c.JSON(http.StatusOK, resp)
}

// discountWindow is how long a newly set discount stays active.
type discountWindow struct {
	Days    int `json:"discount_days"`
	Hours   int `json:"discount_hours"`
	Minutes int `json:"discount_minutes"`
}

type createItemRequest struct {
	Slug         string          `json:"slug" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	Image        string          `json:"image"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
	Discount     int             `json:"discount"`
	discountWindow
}

func (h *Handler) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	item := models.Item{
		Slug:            req.Slug,
		Name:            req.Name,
		Category:        req.Category,
		Brand:           req.Brand,
		Image:           req.Image,
		Description:     req.Description,
		Price:           req.Price,
		CountInStock:    req.CountInStock,
		DiscountPercent: req.Discount,
	}
	if req.Discount > 0 {
		item.DiscountExpiry = discount.ComputeExpiry(h.clock.Now(), req.Days, req.Hours, req.Minutes)
	}

	created, err := h.catalog.CreateItem(c.Request.Context(), item)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// createSampleItem adds a placeholder entry for an admin to fill in
// afterwards.
func (h *Handler) createSampleItem(c *gin.Context) {
	stamp := strconv.FormatInt(h.clock.Now().UnixMilli(), 10)
	created, err := h.catalog.CreateItem(c.Request.Context(), models.Item{
		Slug:        "sample-name-" + stamp,
		Name:        "sample name " + stamp,
		Category:    "sample category",
		Brand:       "sample brand",
		Image:       "/images/p1.jpg",
		Description: "sample description",
		Price:       decimal.Zero,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type updateItemRequest struct {
	Slug         *string          `json:"slug"`
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	Brand        *string          `json:"brand"`
	Image        *string          `json:"image"`
	Description  *string          `json:"description"`
	Price        *decimal.Decimal `json:"price"`
	CountInStock *int             `json:"count_in_stock"`
	Discount     *int             `json:"discount"`
	discountWindow
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	patch := models.ItemPatch{
		Slug:         req.Slug,
		Name:         req.Name,
		Category:     req.Category,
		Brand:        req.Brand,
		Image:        req.Image,
		Description:  req.Description,
		Price:        req.Price,
		CountInStock: req.CountInStock,
	}
	if req.Discount != nil {
		var expiry int64
		if *req.Discount > 0 {
			expiry = discount.ComputeExpiry(h.clock.Now(), req.Days, req.Hours, req.Minutes)
		}
		patch.DiscountPercent = req.Discount
		patch.DiscountExpiry = &expiry
	}

	updated, err := h.catalog.UpdateItem(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteItem(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}
