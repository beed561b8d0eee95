package entity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openbiolabs/noderepo/internal/models"
	"github.com/openbiolabs/noderepo/internal/repo"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

// NodeResourceType is the registered grant key for all node-backed entities.
const NodeResourceType = "node"

func init() {
	repo.MustRegisterType(&repo.ResourceType{
		Name:        NodeResourceType,
		Description: "hierarchical entity backed by a node and its annotations",
		SortFields:  []string{"name", "node_type", "creation_date"},
	})

	for _, nt := range []string{"project", "dataset", "layer", "folder"} {
		MustRegisterNodeType(nt)
	}
}

// Entity is the external representation of a node plus its annotations,
// exposed to callers as one logical object. Shallow fields live on the node;
// everything else is carried in the Annotations map.
type Entity struct {
	ID           string         `json:"id"`
	Etag         string         `json:"etag"`
	CreationDate time.Time      `json:"creation_date"`
	Name         string         `json:"name" validate:"required"`
	Description  string         `json:"description"`
	NodeType     string         `json:"node_type" validate:"required"`
	ParentID     *string        `json:"parent_id,omitempty"`
	Annotations  map[string]any `json:"annotations,omitempty"`
}

func (e *Entity) GetID() string               { return e.ID }
func (e *Entity) SetID(id string)             { e.ID = id }
func (e *Entity) GetEtag() string             { return e.Etag }
func (e *Entity) SetEtag(etag string)         { e.Etag = etag }
func (e *Entity) GetCreationDate() time.Time  { return e.CreationDate }
func (e *Entity) SetCreationDate(t time.Time) { e.CreationDate = t }

// Annotations is the open key/value map attached to a node, with the etag
// used for optimistic concurrency at the annotation layer.
type Annotations struct {
	NodeID string         `json:"node_id"`
	Etag   string         `json:"etag"`
	Values map[string]any `json:"values"`
}

// nodeMapper translates between Entity and the persisted node record. The
// annotation map is deliberately excluded: it is not a shallow field and is
// maintained by the Manager alongside the node.
type nodeMapper struct{}

func (nodeMapper) ResourceType() string { return NodeResourceType }

func (nodeMapper) NewDTO() *Entity { return &Entity{} }

func (nodeMapper) NewRecord() *models.Node { return &models.Node{} }

func (nodeMapper) ToDTO(record *models.Node, dto *Entity) error {
	dto.ID = record.ID
	dto.Etag = record.Etag
	dto.CreationDate = record.CreationDate
	dto.Name = record.Name
	dto.Description = record.Description
	dto.NodeType = record.NodeType
	dto.ParentID = record.ParentID
	return nil
}

func (nodeMapper) FromDTO(dto *Entity, record *models.Node) error {
	if strings.TrimSpace(dto.Name) == "" {
		return apperrors.NewInvalidModel("name is required")
	}
	if !KnownNodeType(dto.NodeType) {
		return apperrors.NewInvalidModel(fmt.Sprintf("unknown node type %q", dto.NodeType))
	}
	record.Name = dto.Name
	record.Description = dto.Description
	record.NodeType = dto.NodeType
	record.ParentID = dto.ParentID
	return nil
}

var (
	nodeTypesMu sync.RWMutex
	nodeTypes   = make(map[string]struct{})
)

// RegisterNodeType adds a node-type discriminator to the known set. The set is
// an explicit enumeration fixed at registration, never derived from runtime types.
func RegisterNodeType(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewInvalidModel("node type name is required")
	}

	nodeTypesMu.Lock()
	defer nodeTypesMu.Unlock()
	nodeTypes[name] = struct{}{}
	return nil
}

// MustRegisterNodeType registers a node type and panics on failure.
func MustRegisterNodeType(name string) {
	if err := RegisterNodeType(name); err != nil {
		panic(err)
	}
}

// KnownNodeType reports whether the discriminator has been registered.
func KnownNodeType(name string) bool {
	nodeTypesMu.RLock()
	defer nodeTypesMu.RUnlock()
	_, ok := nodeTypes[name]
	return ok
}

// NodeTypes returns the registered discriminators in sorted order.
func NodeTypes() []string {
	nodeTypesMu.RLock()
	defer nodeTypesMu.RUnlock()

	names := make([]string, 0, len(nodeTypes))
	for name := range nodeTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
