package handler

import (
	"errors"
	"net/http"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/modules/board/dto"
	board "anoa.com/classboard/internal/modules/board/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
)

// submitHeadroom covers the title, body and JSON framing around the
// base64 image.
const submitHeadroom = 64 << 10

type BoardHandler struct {
	service  board.BoardService
	registry *workspace.Registry
	maxBody  int64
}

// NewBoardHandler caps submit bodies at the base64 size of maxImageBytes
// plus some headroom.
func NewBoardHandler(service board.BoardService, registry *workspace.Registry, maxImageBytes int) *BoardHandler {
	return &BoardHandler{
		service:  service,
		registry: registry,
		maxBody:  int64(maxImageBytes)*4/3 + submitHeadroom,
	}
}

// resolve reads the device workspace and the :category param. It writes
// the error response itself and returns ok=false on failure.
func (h *BoardHandler) resolve(c *gin.Context) (*workspace.Workspace, entity.Category, bool) {
	deviceID, err := response.GetDeviceID(c)
	if err != nil {
		response.ResponseError(c, err)
		return nil, 0, false
	}

	var uri dto.BoardURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "게시판을 지정해주세요."})
		return nil, 0, false
	}
	category, err := entity.ParseCategory(uri.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "존재하지 않는 게시판입니다."})
		return nil, 0, false
	}

	return h.registry.Get(c.Request.Context(), deviceID), category, true
}

func (h *BoardHandler) Navigate(c *gin.Context) {
	ws, category, ok := h.resolve(c)
	if !ok {
		return
	}
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "페이지 번호가 올바르지 않습니다."})
		return
	}

	view, err := h.service.Navigate(c.Request.Context(), ws, category, q.Page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (h *BoardHandler) RevealMore(c *gin.Context) {
	ws, category, ok := h.resolve(c)
	if !ok {
		return
	}

	view, err := h.service.RevealMore(c.Request.Context(), ws, category)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (h *BoardHandler) Reload(c *gin.Context) {
	ws, category, ok := h.resolve(c)
	if !ok {
		return
	}

	view, err := h.service.Reload(c.Request.Context(), ws, category)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (h *BoardHandler) Detail(c *gin.Context) {
	ws, category, ok := h.resolve(c)
	if !ok {
		return
	}
	var uri dto.ItemURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "글 번호가 올바르지 않습니다."})
		return
	}

	detail, err := h.service.Detail(c.Request.Context(), ws, category, uri.Index)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (h *BoardHandler) Submit(c *gin.Context) {
	ws, category, ok := h.resolve(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "이미지가 너무 큽니다."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청입니다."})
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), ws, category, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}
