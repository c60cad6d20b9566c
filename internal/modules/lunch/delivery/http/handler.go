package handler

import (
	"net/http"

	lunch "anoa.com/classboard/internal/modules/lunch/service"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type LunchHandler struct {
	service lunch.LunchService
}

func NewLunchHandler(service lunch.LunchService) *LunchHandler {
	return &LunchHandler{service: service}
}

func (h *LunchHandler) GetMenu(c *gin.Context) {
	menu, err := h.service.Menu(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": menu})
}
