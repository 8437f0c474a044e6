package routes

import (
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/labstack/echo/v4"
)

// TimelineHandler counts papers per year, restricted to papers mentioning
// an entity whose name contains topic when given.
func TimelineHandler(c echo.Context) error {
	topic, err := util.TextQueryParam(c, "topic", false)
	if err != nil {
		return util.BadRequest(c, err)
	}
	start, end, err := yearRange(c)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	years, err := graph.PublicationsByYear(c.Request().Context(), topic, start, end)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if years == nil {
		years = []store.YearCount{}
	}

	var total int64
	for _, y := range years {
		total += y.Papers
	}
	return c.JSON(http.StatusOK, map[string]any{
		"topic":        topic,
		"start_year":   start,
		"end_year":     end,
		"timeline":     years,
		"total_papers": total,
	})
}

func EmergingTopicsHandler(c echo.Context) error {
	window, err := util.IntQueryParam(c, "timeframe_years", 5, 1, 20)
	if err != nil {
		return util.BadRequest(c, err)
	}
	minPapers, err := util.IntQueryParam(c, "min_papers", 3, 1, 1000)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	topics, err := graph.EmergingTopics(c.Request().Context(), window, minPapers, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if topics == nil {
		topics = []store.TopicGrowth{}
	}

	return c.JSON(http.StatusOK, topics)
}

// CollaborationsHandler returns the co-author network around author, or
// the strongest co-author pairs when no author is given.
func CollaborationsHandler(c echo.Context) error {
	author, err := util.TextQueryParam(c, "author", false)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 50, 1, 200)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	edges, err := graph.Collaborations(c.Request().Context(), author, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if edges == nil {
		edges = []store.Collaboration{}
	}

	authors := mapset.NewThreadUnsafeSet[string]()
	for _, e := range edges {
		authors.Add(e.Source)
		authors.Add(e.Target)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"focus_author":         author,
		"authors":              mapset.Sorted(authors),
		"edges":                edges,
		"total_authors":        authors.Cardinality(),
		"total_collaborations": len(edges),
	})
}

func TopAuthorsHandler(c echo.Context) error {
	topic, err := util.TextQueryParam(c, "topic", false)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	authors, err := graph.TopAuthors(c.Request().Context(), topic, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if authors == nil {
		authors = []store.AuthorStats{}
	}

	return c.JSON(http.StatusOK, authors)
}

// TopicCoOccurrenceHandler lists entity pairs mentioned together by at
// least min_papers papers.
func TopicCoOccurrenceHandler(c echo.Context) error {
	minPapers, err := util.IntQueryParam(c, "min_papers", 2, 1, 1000)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 50, 1, 200)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	pairs, err := graph.TopicPairs(c.Request().Context(), minPapers, limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if pairs == nil {
		pairs = []store.TopicPair{}
	}

	return c.JSON(http.StatusOK, pairs)
}

func TrendsHealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "trends",
		"message": "Trend analysis service is operational",
	})
}
