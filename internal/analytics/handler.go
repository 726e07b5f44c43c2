package analytics

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"otakuhub/pkg/docstore"
	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
)

// Handler aggregates stored titles and reviews into the anime stats
// endpoints. Every stat is a pipeline run through the repository, so the
// same guards apply as for caller-supplied pipelines.
type Handler struct {
	Anime   *repository.Repository[models.Anime]
	Reviews *repository.Repository[models.AnimeReview]
}

func NewHandler(anime *repository.Repository[models.Anime], reviews *repository.Repository[models.AnimeReview]) *Handler {
	return &Handler{Anime: anime, Reviews: reviews}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/top-rated", h.topRated)
	rg.GET("/most-popular", h.mostPopular)
	rg.GET("/avg-rating", h.avgRating)
	rg.GET("/most-liked", h.mostLiked)
	rg.GET("/most-disliked", h.mostDisliked)
	rg.GET("/top-demographic", h.topDemographic)
}

// list returns the catalog of available stats.
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, []gin.H{
		{"name": "top_rated", "friendly_name": "Top Rated", "url": "/analytics/anime/top-rated"},
		{"name": "most_popular", "friendly_name": "Most Popular", "url": "/analytics/anime/most-popular"},
		{"name": "avg_rating", "friendly_name": "Average Rating", "url": "/analytics/anime/avg-rating"},
		{"name": "most_liked", "friendly_name": "Most Liked", "url": "/analytics/anime/most-liked"},
		{"name": "most_disliked", "friendly_name": "Most Disliked", "url": "/analytics/anime/most-disliked"},
		{"name": "top_demographic", "friendly_name": "Top Demographic", "url": "/analytics/anime/top-demographic"},
	})
}

func (h *Handler) topRated(c *gin.Context) {
	h.run(c, h.Anime, []docstore.Document{
		{"$match": map[string]any{"score": map[string]any{"$gt": 0}}},
		{"$sort": map[string]any{"score": -1}},
		{"$limit": 10},
		{"$project": map[string]any{"title": 1, "score": 1, "year": 1}},
	})
}

// mostPopular ranks by the source popularity rank (lower is better).
func (h *Handler) mostPopular(c *gin.Context) {
	h.run(c, h.Anime, []docstore.Document{
		{"$match": map[string]any{"rank": map[string]any{"$gt": 0}}},
		{"$sort": map[string]any{"rank": 1}},
		{"$limit": 10},
		{"$project": map[string]any{"title": 1, "rank": 1, "year": 1}},
	})
}

// avgRating groups titles by release year.
func (h *Handler) avgRating(c *gin.Context) {
	h.run(c, h.Anime, []docstore.Document{
		{"$match": map[string]any{"year": map[string]any{"$gt": 0}}},
		{"$group": map[string]any{
			"_id":       "$year",
			"avg_score": map[string]any{"$avg": "$score"},
			"titles":    map[string]any{"$sum": 1},
		}},
		{"$sort": map[string]any{"_id": 1}},
	})
}

// mostLiked counts reviews scoring 7 or higher per title.
func (h *Handler) mostLiked(c *gin.Context) {
	h.run(c, h.Reviews, []docstore.Document{
		{"$match": map[string]any{"score": map[string]any{"$gte": 7}}},
		{"$group": map[string]any{
			"_id":   "$anime.title",
			"likes": map[string]any{"$sum": 1},
		}},
		{"$sort": map[string]any{"likes": -1}},
		{"$limit": 10},
	})
}

// mostDisliked counts reviews scoring 4 or lower per title.
func (h *Handler) mostDisliked(c *gin.Context) {
	h.run(c, h.Reviews, []docstore.Document{
		{"$match": map[string]any{"score": map[string]any{"$lte": 4}}},
		{"$group": map[string]any{
			"_id":      "$anime.title",
			"dislikes": map[string]any{"$sum": 1},
		}},
		{"$sort": map[string]any{"dislikes": -1}},
		{"$limit": 10},
	})
}

func (h *Handler) topDemographic(c *gin.Context) {
	h.run(c, h.Anime, []docstore.Document{
		{"$unwind": "$demographics"},
		{"$group": map[string]any{
			"_id":    "$demographics.name",
			"titles": map[string]any{"$sum": 1},
		}},
		{"$sort": map[string]any{"titles": -1}},
		{"$limit": 5},
	})
}

type aggregator interface {
	Aggregate(ctx context.Context, pipeline []docstore.Document) ([]docstore.Document, error)
}

func (h *Handler) run(c *gin.Context, repo aggregator, pipeline []docstore.Document) {
	out, err := repo.Aggregate(c.Request.Context(), pipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
