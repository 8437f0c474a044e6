package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

func GetPapersHandler(c echo.Context) error {
	corpus := c.(*middleware.AppContext).App.Corpus
	if corpus == nil {
		return util.ErrorJSON(c, fmt.Errorf("document corpus: %w", util.ErrFeatureDisabled))
	}

	limit, err := util.IntQueryParam(c, "limit", 50, 1, 500)
	if err != nil {
		return util.BadRequest(c, err)
	}
	offset, err := util.IntQueryParam(c, "offset", 0, 0, 1<<30)
	if err != nil {
		return util.BadRequest(c, err)
	}

	papers, err := corpus.ListPapers(c.Request().Context(), limit, offset)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if papers == nil {
		papers = []common.Paper{}
	}

	return c.JSON(http.StatusOK, papers)
}

func GetPaperHandler(c echo.Context) error {
	corpus := c.(*middleware.AppContext).App.Corpus
	if corpus == nil {
		return util.ErrorJSON(c, fmt.Errorf("document corpus: %w", util.ErrFeatureDisabled))
	}

	paper, err := corpus.GetPaper(c.Request().Context(), c.Param("pmid"))
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, paper)
}

// SimilarPapersHandler embeds the query text and ranks corpus papers by
// cosine similarity. It needs both the corpus and an embedding model.
func SimilarPapersHandler(c echo.Context) error {
	type similarBody struct {
		Query string `json:"query" validate:"required,min=3,max=2000"`
		Limit int    `json:"limit" validate:"omitempty,min=1,max=50"`
	}

	data := new(similarBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}
	if data.Limit == 0 {
		data.Limit = 10
	}

	app := c.(*middleware.AppContext).App
	if app.Corpus == nil || app.AiClient == nil {
		return util.ErrorJSON(c, fmt.Errorf("similarity search: %w", util.ErrFeatureDisabled))
	}

	ctx := c.Request().Context()
	embedding, err := app.AiClient.GenerateEmbedding(ctx, []byte(strings.TrimSpace(data.Query)))
	if err != nil {
		return util.ErrorJSON(c, fmt.Errorf("%w: embed query: %w", store.ErrUnavailable, err))
	}

	scored, err := app.Corpus.SimilarPapers(ctx, embedding, data.Limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if scored == nil {
		scored = []store.ScoredPaper{}
	}

	return c.JSON(http.StatusOK, scored)
}
