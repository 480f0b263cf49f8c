// README: Requester-facing handlers: registration, rides, fares,
// evaluation, notifications and nearby chairs.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideon/internal/http/middleware"
	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/notification"
	"rideon/internal/modules/pricing"
	"rideon/internal/modules/ride"
	"rideon/internal/modules/settlement"
	"rideon/internal/types"
)

type AppHandler struct {
	accounts      *account.Service
	rides         *ride.Service
	pricing       *pricing.Service
	settlement    *settlement.Service
	notifications *notification.Service
	chairs        *chair.Service
}

func NewAppHandler(
	accounts *account.Service,
	rides *ride.Service,
	pricingSvc *pricing.Service,
	settlementSvc *settlement.Service,
	notifications *notification.Service,
	chairs *chair.Service,
) *AppHandler {
	return &AppHandler{
		accounts:      accounts,
		rides:         rides,
		pricing:       pricingSvc,
		settlement:    settlementSvc,
		notifications: notifications,
		chairs:        chairs,
	}
}

type registerUserBody struct {
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	DateOfBirth    string `json:"date_of_birth"`
	InvitationCode string `json:"invitation_code"`
}

func (h *AppHandler) RegisterUser(c *gin.Context) {
	var body registerUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.accounts.RegisterUser(c.Request.Context(), account.RegisterUserCommand{
		Username:       body.Username,
		Firstname:      body.Firstname,
		Lastname:       body.Lastname,
		DateOfBirth:    body.DateOfBirth,
		InvitationCode: body.InvitationCode,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	setSessionCookie(c, "app_session", u.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{
		"id":              u.ID,
		"invitation_code": u.InvitationCode,
	})
}

type paymentMethodBody struct {
	Token string `json:"token"`
}

func (h *AppHandler) RegisterPaymentMethod(c *gin.Context) {
	var body paymentMethodBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	user := middleware.CurrentUser(c)
	if err := h.accounts.AddPaymentToken(c.Request.Context(), user.ID, body.Token); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type rideBody struct {
	PickupCoordinate      *coordinateBody `json:"pickup_coordinate" binding:"required"`
	DestinationCoordinate *coordinateBody `json:"destination_coordinate" binding:"required"`
}

func (h *AppHandler) CreateRide(c *gin.Context) {
	var body rideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "required fields: pickup_coordinate, destination_coordinate")
		return
	}
	user := middleware.CurrentUser(c)
	rideID, fare, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		UserID:      user.ID,
		Pickup:      body.PickupCoordinate.toCoordinate(),
		Destination: body.DestinationCoordinate.toCoordinate(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"ride_id": rideID, "fare": fare})
}

func (h *AppHandler) EstimateFare(c *gin.Context) {
	var body rideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "required fields: pickup_coordinate, destination_coordinate")
		return
	}
	user := middleware.CurrentUser(c)
	quote, err := h.pricing.Estimate(c.Request.Context(), user.ID,
		body.PickupCoordinate.toCoordinate(), body.DestinationCoordinate.toCoordinate())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"fare": quote.Fare, "discount": quote.Discount})
}

type evaluateBody struct {
	Evaluation *int `json:"evaluation" binding:"required"`
}

func (h *AppHandler) EvaluateRide(c *gin.Context) {
	var body evaluateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "evaluation is required")
		return
	}
	completedAt, err := h.settlement.CompleteRide(c.Request.Context(), settlement.EvaluateCommand{
		RideID:     types.ID(c.Param("ride_id")),
		Evaluation: *body.Evaluation,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"completed_at": completedAt.UnixMilli()})
}

type rideHistoryChair struct {
	ID    types.ID `json:"id"`
	Owner string   `json:"owner"`
	Name  string   `json:"name"`
	Model string   `json:"model"`
}

type rideHistoryItem struct {
	ID                    types.ID           `json:"id"`
	PickupCoordinate      coordinateResponse `json:"pickup_coordinate"`
	DestinationCoordinate coordinateResponse `json:"destination_coordinate"`
	Chair                 rideHistoryChair   `json:"chair"`
	Fare                  int                `json:"fare"`
	Evaluation            int                `json:"evaluation"`
	RequestedAt           int64              `json:"requested_at"`
	CompletedAt           int64              `json:"completed_at"`
}

func (h *AppHandler) ListRides(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	completed, err := h.rides.CompletedByUser(ctx, user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	items := make([]rideHistoryItem, 0, len(completed))
	for _, cr := range completed {
		r := cr.Ride
		item := rideHistoryItem{
			ID:                    r.ID,
			PickupCoordinate:      toCoordinateResponse(r.Pickup),
			DestinationCoordinate: toCoordinateResponse(r.Destination),
			Fare:                  cr.Fare,
			RequestedAt:           r.CreatedAt.UnixMilli(),
			CompletedAt:           r.UpdatedAt.UnixMilli(),
		}
		if r.Evaluation != nil {
			item.Evaluation = *r.Evaluation
		}
		if r.ChairID != nil {
			ch, err := h.chairs.Get(ctx, *r.ChairID)
			if err != nil {
				writeServiceError(c, err)
				return
			}
			owner, err := h.accounts.Owner(ctx, ch.OwnerID)
			if err != nil {
				writeServiceError(c, err)
				return
			}
			item.Chair = rideHistoryChair{ID: ch.ID, Owner: owner.Name, Name: ch.Name, Model: ch.Model}
		}
		items = append(items, item)
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": items})
}

type appNotificationChairStats struct {
	TotalRidesCount    int     `json:"total_rides_count"`
	TotalEvaluationAvg float64 `json:"total_evaluation_avg"`
}

type appNotificationChair struct {
	ID    types.ID                  `json:"id"`
	Name  string                    `json:"name"`
	Model string                    `json:"model"`
	Stats appNotificationChairStats `json:"stats"`
}

type appNotificationData struct {
	RideID                types.ID              `json:"ride_id"`
	PickupCoordinate      coordinateResponse    `json:"pickup_coordinate"`
	DestinationCoordinate coordinateResponse    `json:"destination_coordinate"`
	Fare                  int                   `json:"fare"`
	Status                ride.Status           `json:"status"`
	Chair                 *appNotificationChair `json:"chair,omitempty"`
	CreatedAt             int64                 `json:"created_at"`
	UpdatedAt             int64                 `json:"updated_at"`
}

func (h *AppHandler) Notification(c *gin.Context) {
	user := middleware.CurrentUser(c)
	n, err := h.notifications.AppPoll(c.Request.Context(), user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := gin.H{"retry_after_ms": n.RetryAfterMS}
	if snap := n.Snapshot; snap != nil {
		data := appNotificationData{
			RideID:                snap.Ride.ID,
			PickupCoordinate:      toCoordinateResponse(snap.Ride.Pickup),
			DestinationCoordinate: toCoordinateResponse(snap.Ride.Destination),
			Fare:                  snap.Fare,
			Status:                snap.Status,
			CreatedAt:             snap.Ride.CreatedAt.UnixMilli(),
			UpdatedAt:             snap.Ride.UpdatedAt.UnixMilli(),
		}
		if snap.Chair != nil {
			data.Chair = &appNotificationChair{
				ID:    snap.Chair.ID,
				Name:  snap.Chair.Name,
				Model: snap.Chair.Model,
				Stats: appNotificationChairStats{
					TotalRidesCount:    snap.Stats.TotalRides,
					TotalEvaluationAvg: snap.Stats.EvaluationAvg,
				},
			}
		}
		resp["data"] = data
	}
	writeJSON(c, http.StatusOK, resp)
}

const defaultNearbyDistance = 50

type nearbyChairResponse struct {
	ID                types.ID           `json:"id"`
	Name              string             `json:"name"`
	Model             string             `json:"model"`
	CurrentCoordinate coordinateResponse `json:"current_coordinate"`
}

func (h *AppHandler) NearbyChairs(c *gin.Context) {
	var center types.Coordinate
	var err error
	if center.Latitude, err = intQuery(c, "latitude"); err != nil {
		writeError(c, http.StatusBadRequest, "latitude is invalid")
		return
	}
	if center.Longitude, err = intQuery(c, "longitude"); err != nil {
		writeError(c, http.StatusBadRequest, "longitude is invalid")
		return
	}
	distance := defaultNearbyDistance
	if c.Query("distance") != "" {
		if distance, err = intQuery(c, "distance"); err != nil {
			writeError(c, http.StatusBadRequest, "distance is invalid")
			return
		}
	}
	chairs, retrievedAt, err := h.chairs.Nearby(c.Request.Context(), center, distance)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	items := make([]nearbyChairResponse, 0, len(chairs))
	for _, ch := range chairs {
		items = append(items, nearbyChairResponse{
			ID:                ch.ID,
			Name:              ch.Name,
			Model:             ch.Model,
			CurrentCoordinate: toCoordinateResponse(ch.Current),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"chairs":       items,
		"retrieved_at": retrievedAt.UnixMilli(),
	})
}
