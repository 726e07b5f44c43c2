package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"otakuhub/internal/auth"
	"otakuhub/internal/events"
	"otakuhub/pkg/repository"
)

// Handler exposes list/retrieve/create/update/delete for one entity
// collection over its repository. The same handler serves anime, manga,
// genres, demographics, producers and reviews; review handlers carry an
// ownership rule on top.
type Handler[T any] struct {
	Repo *repository.Repository[T]
	Hub  *events.Hub

	// OwnerField names the payload field carrying the owning user id
	// (the "user" relation of a review). Owner extracts the owner from a
	// stored entity for update/delete checks. Both empty means the
	// collection is a general resource.
	OwnerField string
	Owner      func(*T) string
}

func NewHandler[T any](repo *repository.Repository[T], hub *events.Hub) *Handler[T] {
	return &Handler[T]{Repo: repo, Hub: hub}
}

// WithOwnership marks the collection as a self-resource: mutations are
// restricted to the owner named by the payload field, or a superuser.
func (h *Handler[T]) WithOwnership(field string, owner func(*T) string) *Handler[T] {
	h.OwnerField = field
	h.Owner = owner
	return h
}

func (h *Handler[T]) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:id", h.retrieve)
	rg.POST("", h.create)
	rg.PATCH("/:id", h.update)
	rg.DELETE("/:id", h.destroy)
}

func (h *Handler[T]) list(c *gin.Context) {
	filter := map[string]any{}
	for key, vals := range c.Request.URL.Query() {
		if len(vals) > 0 {
			filter[key] = queryValue(vals[0])
		}
	}

	var (
		items []T
		err   error
	)
	if len(filter) > 0 {
		items, err = h.Repo.Find(c.Request.Context(), filter)
	} else {
		items, err = h.Repo.GetAll(c.Request.Context())
	}
	if err != nil {
		writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler[T]) retrieve(c *gin.Context) {
	entity, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if entity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Handler[T]) create(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if h.OwnerField != "" {
		if !auth.CanMutateOwned(auth.CurrentUser(c), payloadOwner(fields, h.OwnerField)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
	}

	entity, err := h.Repo.Create(c.Request.Context(), fields)
	if err != nil {
		writeRepoError(c, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastJSON(events.Created(h.Repo.Collection(), entityID(entity)))
	}
	c.JSON(http.StatusCreated, entity)
}

func (h *Handler[T]) update(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	id := c.Param("id")
	if h.Owner != nil {
		existing, err := h.Repo.GetByID(c.Request.Context(), id)
		if err != nil {
			writeRepoError(c, err)
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if !auth.CanMutateOwned(auth.CurrentUser(c), h.Owner(existing)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		// repointing the owner relation follows the create rule: only to
		// an identity the caller may act as
		if _, ok := fields[h.OwnerField]; ok {
			if !auth.CanMutateOwned(auth.CurrentUser(c), payloadOwner(fields, h.OwnerField)) {
				c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
				return
			}
		}
	}

	entity, err := h.Repo.Update(c.Request.Context(), id, fields)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if entity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastJSON(events.Updated(h.Repo.Collection(), id))
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Handler[T]) destroy(c *gin.Context) {
	id := c.Param("id")
	if h.Owner != nil {
		existing, err := h.Repo.GetByID(c.Request.Context(), id)
		if err != nil {
			writeRepoError(c, err)
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if !auth.CanMutateOwned(auth.CurrentUser(c), h.Owner(existing)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
	}

	existed, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastJSON(events.Deleted(h.Repo.Collection(), id))
	}
	c.Status(http.StatusNoContent)
}

// queryValue coerces a query parameter for filtering. Stored numbers
// decode as float64, so numeric-looking parameters filter numerically;
// everything else filters as a string.
func queryValue(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// payloadOwner reads the owning user id from a create payload: either
// the raw relation id, or the _id of an already-embedded document.
func payloadOwner(fields map[string]any, field string) string {
	switch v := fields[field].(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["_id"].(string)
		return id
	default:
		return ""
	}
}

// entityID reads the assigned _id back off a freshly created entity.
func entityID(entity any) string {
	data, err := json.Marshal(entity)
	if err != nil {
		return ""
	}
	var doc struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.ID
}

func writeRepoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, repository.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
