package routes

import (
	"errors"
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"

	"github.com/labstack/echo/v4"
)

// GetGraphStatisticsHandler returns node and edge counts and refreshes the
// graph gauges.
func GetGraphStatisticsHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph
	stats, err := graph.Statistics(c.Request().Context())
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	metrics.SetGraphCounts(stats.Nodes, stats.Relationships)
	return c.JSON(http.StatusOK, stats)
}

// GetEntityNeighborsHandler returns the neighbourhood of a node. depth is 1
// to 3, default 1.
func GetEntityNeighborsHandler(c echo.Context) error {
	depth, err := util.IntQueryParam(c, "depth", 1, 1, 3)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 50, 1, 500)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	hood, err := graph.Neighbors(c.Request().Context(), c.Param("id"), depth, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, hood)
}

func GetEntityHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph
	node, err := graph.GetNode(c.Request().Context(), c.Param("id"))
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, node)
}

// GetEntityPapersHandler lists the papers mentioning an entity, newest
// first.
func GetEntityPapersHandler(c echo.Context) error {
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}
	offset, err := util.IntQueryParam(c, "offset", 0, 0, 1<<30)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	papers, err := graph.EntityPapers(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if papers == nil {
		papers = []common.Paper{}
	}

	return c.JSON(http.StatusOK, papers)
}

// GetEntityRelationshipsHandler returns the edges touching a node.
func GetEntityRelationshipsHandler(c echo.Context) error {
	limit, err := util.IntQueryParam(c, "limit", 50, 1, 200)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	hood, err := graph.Neighbors(c.Request().Context(), c.Param("id"), 1, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, hood.Edges)
}

// GetShortestPathHandler finds a shortest path between two nodes.
// max_length is 1 to 10, default 5. Unconnected nodes are found=false.
func GetShortestPathHandler(c echo.Context) error {
	maxLength, err := util.IntQueryParam(c, "max_length", 5, 1, 10)
	if err != nil {
		return util.BadRequest(c, err)
	}
	source, target := c.Param("source"), c.Param("target")
	if source == target {
		return util.BadRequest(c, errors.New("source and target must differ"))
	}

	graph := c.(*middleware.AppContext).App.Graph
	path, err := graph.ShortestPath(c.Request().Context(), source, target, maxLength)
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, path)
}
