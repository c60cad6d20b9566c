package handler

import (
	"net/http"

	search "anoa.com/classboard/internal/modules/search/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service  search.SearchService
	registry *workspace.Registry
}

func NewSearchHandler(service search.SearchService, registry *workspace.Registry) *SearchHandler {
	return &SearchHandler{service: service, registry: registry}
}

func (h *SearchHandler) Search(c *gin.Context) {
	deviceID, err := response.GetDeviceID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	ws := h.registry.Get(c.Request.Context(), deviceID)
	results, err := h.service.Search(c.Request.Context(), ws.Session.Current(), c.Query("q"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}
