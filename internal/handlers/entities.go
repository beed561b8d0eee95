package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openbiolabs/noderepo/internal/entity"
	"github.com/openbiolabs/noderepo/internal/middleware"
	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/response"
)

type EntityHandler struct {
	manager *entity.Manager
}

type entityRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=256"`
	Description string         `json:"description" validate:"max=4096"`
	NodeType    string         `json:"node_type" validate:"required"`
	Etag        string         `json:"etag"`
	ParentID    *string        `json:"parent_id"`
	Annotations map[string]any `json:"annotations"`
}

type annotationsRequest struct {
	Etag   string         `json:"etag" validate:"required"`
	Values map[string]any `json:"values"`
}

type aggregateUpdateRequest struct {
	Children []entityChildRequest `json:"children" validate:"required,min=1,dive"`
}

type entityChildRequest struct {
	ID          string         `json:"id"`
	Etag        string         `json:"etag"`
	Name        string         `json:"name" validate:"required,min=1,max=256"`
	Description string         `json:"description"`
	NodeType    string         `json:"node_type" validate:"required"`
	Annotations map[string]any `json:"annotations"`
}

func NewEntityHandler(manager *entity.Manager) *EntityHandler {
	return &EntityHandler{manager: manager}
}

// POST /api/entities
func (h *EntityHandler) Create(c *gin.Context) {
	var body entityRequest
	if !bindAndValidate(c, &body) {
		return
	}

	e := &entity.Entity{
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		NodeType:    body.NodeType,
		ParentID:    body.ParentID,
		Annotations: body.Annotations,
	}
	id, err := h.manager.CreateEntity(c.Request.Context(), middleware.UserID(c), e)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"id": id, "etag": e.Etag})
}

// GET /api/entities/:id
func (h *EntityHandler) Get(c *gin.Context) {
	e, err := h.manager.GetEntity(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, e)
}

// GET /api/entities
func (h *EntityHandler) List(c *gin.Context) {
	start := parseIntQuery(c, "start", 0)
	end := parseIntQuery(c, "end", start+20)
	sortBy := strings.TrimSpace(c.Query("sort"))
	asc := c.DefaultQuery("order", "asc") != "desc"
	userID := middleware.UserID(c)

	store := h.manager.Store()
	var (
		entities []*entity.Entity
		err      error
	)
	if sortBy == "" {
		entities, err = store.ListInRange(c.Request.Context(), userID, start, end)
	} else {
		entities, err = store.ListSorted(c.Request.Context(), userID, start, end, sortBy, asc)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	total, err := store.Count(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entities, &response.Meta{Start: start, End: end, Total: total})
}

// PUT /api/entities/:id
func (h *EntityHandler) Update(c *gin.Context) {
	var body entityRequest
	if !bindAndValidate(c, &body) {
		return
	}

	e := &entity.Entity{
		ID:          c.Param("id"),
		Etag:        body.Etag,
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		NodeType:    body.NodeType,
		ParentID:    body.ParentID,
		Annotations: body.Annotations,
	}
	if err := h.manager.UpdateEntity(c.Request.Context(), middleware.UserID(c), e); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": e.ID, "etag": e.Etag})
}

// DELETE /api/entities/:id
func (h *EntityHandler) Delete(c *gin.Context) {
	if err := h.manager.DeleteEntity(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/entities/:id/children
func (h *EntityHandler) Children(c *gin.Context) {
	children, err := h.manager.GetEntityChildren(
		c.Request.Context(), middleware.UserID(c), c.Param("id"), strings.TrimSpace(c.Query("type")),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, children)
}

// POST /api/entities/:id/children
func (h *EntityHandler) AggregateUpdate(c *gin.Context) {
	var body aggregateUpdateRequest
	if !bindAndValidate(c, &body) {
		return
	}

	children := make([]*entity.Entity, 0, len(body.Children))
	for _, child := range body.Children {
		children = append(children, &entity.Entity{
			ID:          child.ID,
			Etag:        child.Etag,
			Name:        strings.TrimSpace(child.Name),
			Description: child.Description,
			NodeType:    child.NodeType,
			Annotations: child.Annotations,
		})
	}

	ids, err := h.manager.AggregateEntityUpdate(c.Request.Context(), middleware.UserID(c), c.Param("id"), children)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ids": ids})
}

// GET /api/entities/:id/annotations
func (h *EntityHandler) GetAnnotations(c *gin.Context) {
	annos, err := h.manager.GetAnnotations(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, annos)
}

// PUT /api/entities/:id/annotations
func (h *EntityHandler) UpdateAnnotations(c *gin.Context) {
	var body annotationsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	annos := &entity.Annotations{
		NodeID: c.Param("id"),
		Etag:   body.Etag,
		Values: body.Values,
	}
	if err := h.manager.UpdateAnnotations(c.Request.Context(), middleware.UserID(c), c.Param("id"), annos); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, annos)
}

// GET /api/entities/:id/access
func (h *EntityHandler) WhoHasAccess(c *gin.Context) {
	accessType, err := parseAccessType(c.DefaultQuery("access_type", string(models.AccessRead)))
	if err != nil {
		response.Error(c, err)
		return
	}

	id := c.Param("id")
	userID := middleware.UserID(c)
	store := h.manager.Store()

	// Introspection itself requires READ on the entity.
	if _, err := store.Get(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	groups, err := store.WhoHasAccess(c.Request.Context(), id, accessType)
	if err != nil {
		response.Error(c, err)
		return
	}

	names := make([]gin.H, 0, len(groups))
	for _, g := range groups {
		names = append(names, gin.H{"id": g.ID, "name": g.Name, "is_public": g.IsPublic})
	}
	response.Success(c, http.StatusOK, names)
}

// GET /api/entities/:id/access/check
func (h *EntityHandler) HasAccess(c *gin.Context) {
	accessType, err := parseAccessType(c.DefaultQuery("access_type", string(models.AccessRead)))
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, err := h.manager.Store().HasAccess(c.Request.Context(), middleware.UserID(c), c.Param("id"), accessType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": ok})
}

func parseAccessType(raw string) (models.AccessType, error) {
	switch at := models.AccessType(strings.ToUpper(strings.TrimSpace(raw))); at {
	case models.AccessRead, models.AccessChange, models.AccessShare:
		return at, nil
	default:
		return "", apperrors.NewInvalidModel("unknown access type " + raw)
	}
}
