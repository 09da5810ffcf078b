package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"expensetracker/internal/errors"
)

// UserIDContextKey is where the bearer middleware stores the authenticated user id.
const UserIDContextKey = "user_id"

// CurrentUserID returns the id stored by the bearer middleware.
func CurrentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, errors.ErrUnauthenticated
	}
	return userID, nil
}
