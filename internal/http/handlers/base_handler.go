// README: Shared handler utilities: JSON helpers and service error mapping.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
	"rideon/internal/modules/ride"
	"rideon/internal/modules/settlement"
	"rideon/internal/types"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Message: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, account.ErrBadRequest),
		errors.Is(err, chair.ErrBadRequest),
		errors.Is(err, chair.ErrInvalidToken),
		errors.Is(err, account.ErrInvitationUnusable),
		errors.Is(err, account.ErrNoPaymentToken),
		errors.Is(err, settlement.ErrBadEvaluation),
		errors.Is(err, settlement.ErrNotArrived),
		errors.Is(err, ride.ErrInvalidState):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, chair.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrActiveRide):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, settlement.ErrUpstream),
		errors.Is(err, settlement.ErrLedgerMismatch):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// coordinateBody is the wire shape of a coordinate; pointer fields so a
// missing value binds as nil instead of zero.
type coordinateBody struct {
	Latitude  *int `json:"latitude" binding:"required"`
	Longitude *int `json:"longitude" binding:"required"`
}

func (b *coordinateBody) toCoordinate() types.Coordinate {
	return types.Coordinate{Latitude: *b.Latitude, Longitude: *b.Longitude}
}

type coordinateResponse struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

func toCoordinateResponse(c types.Coordinate) coordinateResponse {
	return coordinateResponse{Latitude: c.Latitude, Longitude: c.Longitude}
}

func intQuery(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Query(name))
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func setSessionCookie(c *gin.Context, name, token string) {
	c.SetCookie(name, token, 0, "/", "", false, true)
}
