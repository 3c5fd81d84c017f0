package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
	"github.com/noah-isme/report-card-api/pkg/response"
)

// pageParams reads optional page and limit query parameters. Without limit every row
// is returned.
func pageParams(c *gin.Context) (page, limit int) {
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}

func search(c *gin.Context) string {
	return strings.TrimSpace(c.Query("search"))
}

// bindJSON decodes the body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload: "+err.Error()))
		return false
	}
	return true
}
