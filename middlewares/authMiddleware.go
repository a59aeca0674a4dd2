package middlewares

import (
	"net/http"
	"strings"

	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// AuthMiddleware validates the staff access token and puts the caller's
// company, user and permissions in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		auth = strings.TrimSpace(auth[len(bearerPrefix):])

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.UserId <= 0 || claim.CompanyId == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetCompanyIdInContext(ctx, claim.CompanyId)
		ctx = utils.SetUserIdInContext(ctx, claim.UserId)
		ctx = utils.SetUserNameInContext(ctx, claim.Name)
		ctx = utils.SetPermissionsInContext(ctx, claim.Permissions)
		ctx = utils.SetIsAdminInContext(ctx, claim.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequirePermission rejects callers whose token does not grant perm.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.HasPermission(c.Request.Context(), perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "permission": perm})
			return
		}
		c.Next()
	}
}
