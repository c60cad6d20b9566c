package handler

import (
	"net/http"

	board "anoa.com/classboard/internal/modules/board/service"
	gate "anoa.com/classboard/internal/modules/gate/service"
	"anoa.com/classboard/internal/modules/session/dto"
	session "anoa.com/classboard/internal/modules/session/service"
	"anoa.com/classboard/internal/workspace"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	auth     session.AuthService
	boards   board.BoardService
	registry *workspace.Registry
}

func NewSessionHandler(auth session.AuthService, boards board.BoardService, registry *workspace.Registry) *SessionHandler {
	return &SessionHandler{auth: auth, boards: boards, registry: registry}
}

func (h *SessionHandler) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	deviceID, err := response.GetDeviceID(c)
	if err != nil {
		response.ResponseError(c, err)
		return nil, false
	}
	return h.registry.Get(c.Request.Context(), deviceID), true
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청입니다."})
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), ws.Session, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청입니다."})
		return
	}

	msg, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	msg, err := h.auth.Logout(c.Request.Context(), ws.Session)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "session": ws.Session.Current()})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current := ws.Session.Current()

	c.JSON(http.StatusOK, dto.SessionResponse{
		Session:      current,
		Surfaces:     gate.Evaluate(current),
		Unread:       h.boards.Unread(ctx, ws),
		RememberedID: ws.Session.RememberedID(ctx),
	})
}
