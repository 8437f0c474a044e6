package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"github.com/labstack/echo/v4"
)

// TopEntitiesHandler ranks entities by metric, paper_count (default) or
// degree, optionally within one entity type.
func TopEntitiesHandler(c echo.Context) error {
	nodeType, err := entityTypeParam(c)
	if err != nil {
		return util.BadRequest(c, err)
	}
	metric := store.RankMetric(c.QueryParam("metric"))
	if metric == "" {
		metric = store.RankByPapers
	}
	if !metric.IsValid() {
		return util.BadRequest(c, errors.New("metric must be paper_count or degree"))
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	ranked, err := graph.TopEntities(c.Request().Context(), nodeType, metric, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if ranked == nil {
		ranked = []store.RankedNode{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"metric":   metric,
		"entities": ranked,
	})
}

// CoOccurrenceHandler ranks the entities sharing papers with entity_id.
func CoOccurrenceHandler(c echo.Context) error {
	id, err := util.TextQueryParam(c, "entity_id", true)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	ranked, err := graph.CoOccurring(c.Request().Context(), id, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if ranked == nil {
		ranked = []store.RankedNode{}
	}

	return c.JSON(http.StatusOK, ranked)
}

// yearRange reads start_year (default 2000) and end_year (default the
// current year).
func yearRange(c echo.Context) (int, int, error) {
	start, err := util.IntQueryParam(c, "start_year", 2000, 1900, 2100)
	if err != nil {
		return 0, 0, err
	}
	end, err := util.IntQueryParam(c, "end_year", time.Now().Year(), 1900, 2100)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, errors.New("start_year must not be after end_year")
	}
	return start, end, nil
}

func PublicationTrendsHandler(c echo.Context) error {
	start, end, err := yearRange(c)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	years, err := graph.PublicationsByYear(c.Request().Context(), "", start, end)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if years == nil {
		years = []store.YearCount{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"start_year": start,
		"end_year":   end,
		"trends":     years,
	})
}

// EntityTypeDistributionHandler shares entity nodes out by type. Papers are
// not entities.
func EntityTypeDistributionHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph
	stats, err := graph.Statistics(c.Request().Context())
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	shares, total := store.Distribution(stats.Nodes, string(store.NodePaper))
	return c.JSON(http.StatusOK, map[string]any{
		"distribution":   shares,
		"total_entities": total,
	})
}

// RelationshipTypeDistributionHandler shares entity relationships out by
// type. Paper mentions are not counted.
func RelationshipTypeDistributionHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph
	stats, err := graph.Statistics(c.Request().Context())
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	shares, total := store.Distribution(stats.Relationships, "MENTIONS")
	return c.JSON(http.StatusOK, map[string]any{
		"distribution":        shares,
		"total_relationships": total,
	})
}
