package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type DataResponse struct {
	Data any `json:"data"`
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

// pathID parses the :id path parameter, aborting the request when it is not a snowflake ID.
func pathID(c *gin.Context) (snowflake.ID, bool) {
	return pathParamID(c, "id")
}

func pathParamID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid "+name))
		return 0, false
	}
	return id, true
}

func actorFromHeader(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader("X-Actor")); actor != "" {
		return actor
	}
	return "api"
}
