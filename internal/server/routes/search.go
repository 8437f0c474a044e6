package routes

import (
	"errors"
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// entityTypeParam reads the optional "type" query parameter.
func entityTypeParam(c echo.Context) (store.NodeType, error) {
	raw := c.QueryParam("type")
	if raw == "" {
		return "", nil
	}
	t, ok := store.ParseNodeType(raw)
	if !ok {
		return "", errors.New("unknown entity type " + raw)
	}
	return t, nil
}

type searchResults struct {
	Query    string            `json:"query"`
	Papers   []common.Paper    `json:"papers"`
	Entities []store.GraphNode `json:"entities"`
}

// SearchHandler searches papers and entities at once.
func SearchHandler(c echo.Context) error {
	type searchBody struct {
		Query      string `json:"query" validate:"required,min=1,max=200"`
		EntityType string `json:"entity_type"`
		Limit      int    `json:"limit" validate:"omitempty,min=1,max=100"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}
	if data.Limit == 0 {
		data.Limit = 20
	}
	var nodeType store.NodeType
	if data.EntityType != "" {
		t, ok := store.ParseNodeType(data.EntityType)
		if !ok {
			return util.BadRequest(c, errors.New("unknown entity type "+data.EntityType))
		}
		nodeType = t
	}

	graph := c.(*middleware.AppContext).App.Graph
	res := searchResults{Query: data.Query}

	g, gctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		papers, err := graph.SearchPapers(gctx, data.Query, data.Limit, 0)
		res.Papers = papers
		return err
	})
	g.Go(func() error {
		entities, err := graph.SearchEntities(gctx, store.EntityQuery{Text: data.Query, Type: nodeType, Limit: data.Limit})
		res.Entities = entities
		return err
	})
	if err := g.Wait(); err != nil {
		return util.ErrorJSON(c, err)
	}
	if res.Papers == nil {
		res.Papers = []common.Paper{}
	}
	if res.Entities == nil {
		res.Entities = []store.GraphNode{}
	}

	return c.JSON(http.StatusOK, res)
}

func SearchPapersHandler(c echo.Context) error {
	q, err := util.TextQueryParam(c, "q", true)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}
	offset, err := util.IntQueryParam(c, "offset", 0, 0, 1<<30)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	papers, err := graph.SearchPapers(c.Request().Context(), q, limit, offset)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if papers == nil {
		papers = []common.Paper{}
	}

	return c.JSON(http.StatusOK, papers)
}

func SearchEntitiesHandler(c echo.Context) error {
	return listEntities(c, true)
}

// ListEntitiesHandler pages through entities, optionally filtered by type
// and name.
func ListEntitiesHandler(c echo.Context) error {
	return listEntities(c, false)
}

func listEntities(c echo.Context, requireText bool) error {
	q, err := util.TextQueryParam(c, "q", requireText)
	if err != nil {
		return util.BadRequest(c, err)
	}
	nodeType, err := entityTypeParam(c)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 20, 1, 100)
	if err != nil {
		return util.BadRequest(c, err)
	}
	offset, err := util.IntQueryParam(c, "offset", 0, 0, 1<<30)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	nodes, err := graph.SearchEntities(c.Request().Context(), store.EntityQuery{
		Text:   q,
		Type:   nodeType,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if nodes == nil {
		nodes = []store.GraphNode{}
	}

	return c.JSON(http.StatusOK, nodes)
}

type suggestion struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Type common.EntityType `json:"type"`
}

// AutocompleteHandler suggests entity names starting with q. Backend
// failures yield no suggestions rather than an error.
func AutocompleteHandler(c echo.Context) error {
	q, err := util.TextQueryParam(c, "q", true)
	if err != nil {
		return util.BadRequest(c, err)
	}
	limit, err := util.IntQueryParam(c, "limit", 10, 1, 50)
	if err != nil {
		return util.BadRequest(c, err)
	}

	graph := c.(*middleware.AppContext).App.Graph
	nodes, err := graph.SearchEntities(c.Request().Context(), store.EntityQuery{Text: q, Prefix: true, Limit: limit})
	if err != nil && !errors.Is(err, store.ErrUnavailable) {
		return util.ErrorJSON(c, err)
	}

	out := make([]suggestion, 0, len(nodes))
	for _, n := range nodes {
		e := n.Entity()
		out = append(out, suggestion{ID: e.ID, Name: e.Name, Type: e.Type})
	}

	return c.JSON(http.StatusOK, map[string]any{"suggestions": out})
}
