package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/internal/service"
	"github.com/atrai/atrai-backend-go/pkg/response"
)

const defaultItemLimit = 1000

// CollectionHandler serves published collections
type CollectionHandler struct {
	service *service.QueryService
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(service *service.QueryService) *CollectionHandler {
	return &CollectionHandler{service: service}
}

type collectionView struct {
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Analyzer    string            `json:"analyzer"`
	Campaign    string            `json:"campaign"`
	BBox        [4]float64        `json:"bbox"`
	Schema      map[string]string `json:"schema"`
}

// ListCollections lists every collection
// GET /api/v1/collections
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	collections, err := h.service.ListCollections(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	views := make([]collectionView, 0, len(collections))
	for _, col := range collections {
		views = append(views, collectionView{
			Name:        col.Name,
			Title:       col.Title,
			Description: col.Description,
			Analyzer:    col.Analyzer,
			Campaign:    col.Campaign,
			BBox:        col.Extent(),
			Schema:      col.Schema,
		})
	}
	response.Success(c, gin.H{"collections": views})
}

// GetCollection returns the metadata of one collection
// GET /api/v1/collections/:name
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	col, err := h.service.GetCollection(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, collectionView{
		Name:        col.Name,
		Title:       col.Title,
		Description: col.Description,
		Analyzer:    col.Analyzer,
		Campaign:    col.Campaign,
		BBox:        col.Extent(),
		Schema:      col.Schema,
	})
}

// Items returns the collection as a GeoJSON FeatureCollection
// GET /api/v1/collections/:name/items?campaign=&limit=
func (h *CollectionHandler) Items(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultItemLimit)))
	if err != nil || limit <= 0 {
		limit = defaultItemLimit
	}

	fc, err := h.service.CollectionItems(c.Request.Context(), c.Param("name"), c.Query("campaign"), limit)
	if err != nil {
		fail(c, err)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// DeleteCollection unpublishes a collection; delete_source=true also drops
// the stored output behind it
// DELETE /api/v1/collections/:name?delete_source=
func (h *CollectionHandler) DeleteCollection(c *gin.Context) {
	purge, err := strconv.ParseBool(c.DefaultQuery("delete_source", "false"))
	if err != nil {
		response.BadRequest(c, "delete_source must be a boolean")
		return
	}

	name := c.Param("name")
	if err := h.service.DeleteCollection(c.Request.Context(), name, purge); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"name": name, "source_deleted": purge})
}
