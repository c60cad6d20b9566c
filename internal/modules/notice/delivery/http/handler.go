package handler

import (
	"net/http"

	notice "anoa.com/classboard/internal/modules/notice/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type NoticeHandler struct {
	service  notice.NoticeService
	registry *workspace.Registry
}

func NewNoticeHandler(service notice.NoticeService, registry *workspace.Registry) *NoticeHandler {
	return &NoticeHandler{service: service, registry: registry}
}

func (h *NoticeHandler) GetProfileImage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": h.service.ProfileImageURL(c.Request.Context())}})
}

func (h *NoticeHandler) UploadProfileImage(c *gin.Context) {
	deviceID, err := response.GetDeviceID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "사진 파일이 필요합니다."})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "사진 파일을 열 수 없습니다."})
		return
	}
	defer src.Close()

	ws := h.registry.Get(c.Request.Context(), deviceID)
	url, msg, err := h.service.UpdateProfileImage(c.Request.Context(), deviceID, ws.Session.Current(), src, file.Filename)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg, "data": gin.H{"url": url}})
}
