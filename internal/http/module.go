// Package http defines how feature modules plug their routes into the API.
package http

import "github.com/gin-gonic/gin"

// Module is implemented by each feature package that serves HTTP.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the groups they may mount on. Admin requires a
// staff token with the admin role; Webhook requires a service token.
type RouterContext struct {
	Engine  *gin.Engine
	V1      *gin.RouterGroup // /api/v1
	Admin   *gin.RouterGroup // /api/v1/admin
	Webhook *gin.RouterGroup // /api/v1/webhook
}
