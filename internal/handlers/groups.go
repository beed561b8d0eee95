package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openbiolabs/noderepo/internal/authz"
	"github.com/openbiolabs/noderepo/internal/middleware"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/response"
)

type GroupHandler struct {
	index *authz.Index
	gate  *authz.Gate
}

type membershipRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func NewGroupHandler(index *authz.Index, gate *authz.Gate) *GroupHandler {
	return &GroupHandler{index: index, gate: gate}
}

// GET /api/groups/public
func (h *GroupHandler) Public(c *gin.Context) {
	group, err := h.index.PublicGroup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// GET /api/groups/me
func (h *GroupHandler) Mine(c *gin.Context) {
	userID := middleware.UserID(c)
	if authz.IsAnonymous(userID) {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	group, err := h.index.GetOrCreateIndividualGroup(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, group)
}

// POST /api/groups/:id/members — admin only
func (h *GroupHandler) AddMember(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var body membershipRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.index.AddUserToGroup(c.Request.Context(), c.Param("id"), strings.TrimSpace(body.UserID)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"added": true})
}

// DELETE /api/groups/:id/members/:userID — admin only
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	if err := h.index.RemoveUserFromGroup(c.Request.Context(), c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

func (h *GroupHandler) requireAdmin(c *gin.Context) bool {
	ok, err := h.gate.IsAdmin(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return false
	}
	return true
}
