// README: Owner-facing handlers: registration, fleet listing and sales.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideon/internal/http/middleware"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/types"
)

type OwnerHandler struct {
	accounts *account.Service
	chairs   *chair.Service
}

func NewOwnerHandler(accounts *account.Service, chairs *chair.Service) *OwnerHandler {
	return &OwnerHandler{accounts: accounts, chairs: chairs}
}

type registerOwnerBody struct {
	Name string `json:"name"`
}

func (h *OwnerHandler) Register(c *gin.Context) {
	var body registerOwnerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := h.accounts.RegisterOwner(c.Request.Context(), body.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	setSessionCookie(c, "owner_session", o.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{
		"id":                   o.ID,
		"chair_register_token": o.ChairRegisterToken,
	})
}

type ownerChairResponse struct {
	ID                     types.ID `json:"id"`
	Name                   string   `json:"name"`
	Model                  string   `json:"model"`
	Active                 bool     `json:"active"`
	RegisteredAt           int64    `json:"registered_at"`
	TotalDistance          int      `json:"total_distance"`
	TotalDistanceUpdatedAt *int64   `json:"total_distance_updated_at,omitempty"`
}

func (h *OwnerHandler) ListChairs(c *gin.Context) {
	ctx := c.Request.Context()
	owner := middleware.CurrentOwner(c)
	chairs, err := h.chairs.ListByOwner(ctx, owner.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	distances, err := h.chairs.TotalDistanceByOwner(ctx, owner.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	items := make([]ownerChairResponse, 0, len(chairs))
	for _, ch := range chairs {
		item := ownerChairResponse{
			ID:           ch.ID,
			Name:         ch.Name,
			Model:        ch.Model,
			Active:       ch.IsActive,
			RegisteredAt: ch.CreatedAt.UnixMilli(),
		}
		if d, ok := distances[ch.ID]; ok {
			item.TotalDistance = d.Distance
			updatedAt := d.UpdatedAt.UnixMilli()
			item.TotalDistanceUpdatedAt = &updatedAt
		}
		items = append(items, item)
	}
	writeJSON(c, http.StatusOK, gin.H{"chairs": items})
}

type chairSalesResponse struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Sales int      `json:"sales"`
}

type modelSalesResponse struct {
	Model string `json:"model"`
	Sales int    `json:"sales"`
}

func (h *OwnerHandler) Sales(c *gin.Context) {
	since := time.UnixMilli(0)
	until := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	var err error
	if v := c.Query("since"); v != "" {
		if since, err = parseMillis(v); err != nil {
			writeError(c, http.StatusBadRequest, "since is invalid")
			return
		}
	}
	if v := c.Query("until"); v != "" {
		if until, err = parseMillis(v); err != nil {
			writeError(c, http.StatusBadRequest, "until is invalid")
			return
		}
	}
	owner := middleware.CurrentOwner(c)
	sales, err := h.chairs.SalesByOwner(c.Request.Context(), owner.ID, since, until)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	chairItems := make([]chairSalesResponse, 0, len(sales.Chairs))
	for _, cs := range sales.Chairs {
		chairItems = append(chairItems, chairSalesResponse{ID: cs.ID, Name: cs.Name, Sales: cs.Sales})
	}
	modelItems := make([]modelSalesResponse, 0, len(sales.Models))
	for _, ms := range sales.Models {
		modelItems = append(modelItems, modelSalesResponse{Model: ms.Model, Sales: ms.Sales})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"total_sales": sales.TotalSales,
		"chairs":      chairItems,
		"models":      modelItems,
	})
}
