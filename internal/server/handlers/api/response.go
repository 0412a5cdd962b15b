package api

import "github.com/gin-gonic/gin"

// AbortWithError stops the handler chain and replies with an APIError.
// err is also attached to the gin context so the request logger reports it.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}
