package routes

import (
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetEdgeEvidenceHandler returns the papers supporting one edge. A missing
// edge is a normal answer with found=false.
func GetEdgeEvidenceHandler(c echo.Context) error {
	type edgeEvidenceBody struct {
		SourceID         string `json:"source_id" validate:"required"`
		TargetID         string `json:"target_id" validate:"required"`
		RelationshipType string `json:"relationship_type"`
	}

	data := new(edgeEvidenceBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}

	svc := c.(*middleware.AppContext).App.Evidence
	record, err := svc.GetEdgeEvidence(c.Request().Context(), data.SourceID, data.TargetID, data.RelationshipType)
	if err != nil {
		return util.ErrorJSON(c, err)
	}

	return c.JSON(http.StatusOK, record)
}

func SearchPapersByEntitiesHandler(c echo.Context) error {
	type entitySearchBody struct {
		Entities []string `json:"entities" validate:"required,max=20"`
		Limit    int      `json:"limit" validate:"omitempty,min=1,max=100"`
	}

	data := new(entitySearchBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}

	svc := c.(*middleware.AppContext).App.Evidence
	matches, err := svc.SearchPapersByEntities(c.Request().Context(), data.Entities, data.Limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if matches == nil {
		matches = []store.PaperMatch{}
	}

	return c.JSON(http.StatusOK, matches)
}
