package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openbiolabs/noderepo/internal/revision"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/response"
)

type RevisionHandler struct {
	manager *revision.Manager
}

type reviseRequest struct {
	Name         string         `json:"name" validate:"required,min=1,max=256"`
	Description  string         `json:"description"`
	NodeType     string         `json:"node_type" validate:"required"`
	ParentID     *string        `json:"parent_id"`
	Annotations  map[string]any `json:"annotations"`
	RevisionDate *time.Time     `json:"revision_date"`
}

func NewRevisionHandler(manager *revision.Manager) *RevisionHandler {
	return &RevisionHandler{manager: manager}
}

// POST /api/series/:id/revisions
func (h *RevisionHandler) Revise(c *gin.Context) {
	var body reviseRequest
	if !bindAndValidate(c, &body) {
		return
	}

	next := &revision.Revision{
		Name:        body.Name,
		Description: body.Description,
		NodeType:    body.NodeType,
		ParentID:    body.ParentID,
		Annotations: body.Annotations,
	}
	var stamp time.Time
	if body.RevisionDate != nil {
		stamp = *body.RevisionDate
	}

	version, err := h.manager.Revise(c.Request.Context(), c.Param("id"), next, stamp)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"version": version})
}

// GET /api/series/:id/latest
func (h *RevisionHandler) Latest(c *gin.Context) {
	latest, err := h.manager.GetLatest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, latest)
}

// GET /api/series/:id/revisions
func (h *RevisionHandler) All(c *gin.Context) {
	versions, err := h.manager.AllVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, versions)
}

// GET /api/series/:id/revisions/:version
func (h *RevisionHandler) Version(c *gin.Context) {
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		response.Error(c, apperrors.NewInvalidModel("version must be an integer"))
		return
	}

	rev, err := h.manager.GetVersion(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rev)
}

// DELETE /api/series/:id
func (h *RevisionHandler) DeleteAll(c *gin.Context) {
	if err := h.manager.DeleteAllVersions(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
