package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gridsim/internal/api/models"
)

// Recovery converts handler panics into the control API's uniform
// error envelope instead of dropping the connection. The simulation
// keeps running; only the one request fails.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		msg := "internal error"
		switch v := recovered.(type) {
		case error:
			msg = v.Error()
		case string:
			msg = v
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: msg,
			},
		})
	})
}
