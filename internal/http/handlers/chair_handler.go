// README: Chair-facing handlers: registration, activity, coordinates,
// notifications and explicit status reports.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideon/internal/http/middleware"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/notification"
	"rideon/internal/modules/ride"
	"rideon/internal/types"
)

type ChairHandler struct {
	chairs        *chair.Service
	rides         *ride.Service
	notifications *notification.Service
}

func NewChairHandler(chairs *chair.Service, rides *ride.Service, notifications *notification.Service) *ChairHandler {
	return &ChairHandler{chairs: chairs, rides: rides, notifications: notifications}
}

type registerChairBody struct {
	Name               string `json:"name"`
	Model              string `json:"model"`
	ChairRegisterToken string `json:"chair_register_token"`
}

func (h *ChairHandler) Register(c *gin.Context) {
	var body registerChairBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	reg, err := h.chairs.Register(c.Request.Context(), chair.RegisterCommand{
		Name:          body.Name,
		Model:         body.Model,
		RegisterToken: body.ChairRegisterToken,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	setSessionCookie(c, "chair_session", reg.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{"id": reg.ID, "owner_id": reg.OwnerID})
}

type activityBody struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *ChairHandler) SetActivity(c *gin.Context) {
	var body activityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "is_active is required")
		return
	}
	ch := middleware.CurrentChair(c)
	if err := h.chairs.SetActivity(c.Request.Context(), ch.ID, *body.IsActive); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChairHandler) PostCoordinate(c *gin.Context) {
	var body coordinateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "required fields: latitude, longitude")
		return
	}
	ch := middleware.CurrentChair(c)
	recordedAt, err := h.chairs.RecordCoordinate(c.Request.Context(), ch.ID, body.toCoordinate())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"recorded_at": recordedAt.UnixMilli()})
}

type chairNotificationUser struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

type chairNotificationData struct {
	RideID                types.ID              `json:"ride_id"`
	User                  chairNotificationUser `json:"user"`
	PickupCoordinate      coordinateResponse    `json:"pickup_coordinate"`
	DestinationCoordinate coordinateResponse    `json:"destination_coordinate"`
	Status                ride.Status           `json:"status"`
}

func (h *ChairHandler) Notification(c *gin.Context) {
	ch := middleware.CurrentChair(c)
	n, err := h.notifications.ChairPoll(c.Request.Context(), ch.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := gin.H{"retry_after_ms": n.RetryAfterMS}
	if snap := n.Snapshot; snap != nil {
		resp["data"] = chairNotificationData{
			RideID: snap.Ride.ID,
			User: chairNotificationUser{
				ID:   snap.User.ID,
				Name: snap.User.Firstname + " " + snap.User.Lastname,
			},
			PickupCoordinate:      toCoordinateResponse(snap.Ride.Pickup),
			DestinationCoordinate: toCoordinateResponse(snap.Ride.Destination),
			Status:                snap.Status,
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

type statusBody struct {
	Status string `json:"status"`
}

func (h *ChairHandler) PostRideStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Status == "" {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	ch := middleware.CurrentChair(c)
	err := h.rides.PostStatus(c.Request.Context(), ride.StatusCommand{
		RideID:  types.ID(c.Param("ride_id")),
		ChairID: ch.ID,
		Status:  ride.Status(body.Status),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
