package routes

import (
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetAllEdgeEvidenceHandler lists edges by supporting paper count.
// limit is 1 to 500, default 100.
func GetAllEdgeEvidenceHandler(c echo.Context) error {
	limit, err := util.IntQueryParam(c, "limit", 100, 1, 500)
	if err != nil {
		return util.BadRequest(c, err)
	}

	svc := c.(*middleware.AppContext).App.Evidence
	edges, err := svc.GetAllEdgeEvidence(c.Request().Context(), limit)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if edges == nil {
		edges = []common.EdgeEvidence{}
	}

	return c.JSON(http.StatusOK, edges)
}

func EvidenceHealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "evidence",
		"message": "Evidence service is operational",
	})
}
