package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/models"
	"github.com/sirupsen/logrus"
)

const callerKey = "caller"

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the gin context.
func RequireAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		userID, err := v.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(callerKey, Caller{UserID: userID, Role: models.RoleCustomer})
		c.Next()
	}
}

// RequireAdmin resolves the caller's role from profiles. It must run after
// RequireAuth.
func RequireAdmin(roles RoleLookup, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		if !caller.IsAuthenticated() {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		role, err := roles.GetProfileRole(c.Request.Context(), caller.UserID)
		if err != nil {
			logger.WithError(err).WithField("user_id", caller.UserID).Error("role lookup failed")
			abort(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
			return
		}
		if role != models.RoleAdmin {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}

		caller.Role = role
		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the anonymous caller when no identity was resolved.
func CallerFrom(c *gin.Context) Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(Caller); ok {
			return caller
		}
	}
	return Caller{}
}
