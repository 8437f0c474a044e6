package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NimaFathima/astrobiomers/internal/queue"
	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/util"
	"github.com/NimaFathima/astrobiomers/internal/storage"
	iutil "github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// maxInlinePapers is the largest batch sent through the queue itself.
// Bigger batches go through object storage when it is configured.
const maxInlinePapers = 200

type ingestResponse struct {
	JobID      string          `json:"job_id"`
	Status     store.JobStatus `json:"status"`
	PaperCount int             `json:"paper_count"`
	S3Key      string          `json:"s3_key,omitempty"`
}

// IngestPapersHandler registers an ingest job and hands the papers to the
// worker.
func IngestPapersHandler(c echo.Context) error {
	type ingestBody struct {
		Papers []common.Paper `json:"papers" validate:"required,min=1,max=50000"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return util.BadRequest(c, nil)
	}
	if err := c.Validate(data); err != nil {
		return util.BadRequest(c, err)
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return util.ErrorJSON(c, fmt.Errorf("ingest queue: %w", util.ErrFeatureDisabled))
	}

	ctx := c.Request().Context()
	jobID := iutil.NewID()

	if app.Jobs != nil {
		if err := app.Jobs.CreateJob(ctx, jobID, len(data.Papers)); err != nil {
			return util.ErrorJSON(c, err)
		}
	}

	msg := queue.IngestMsg{JobID: jobID}
	if len(data.Papers) > maxInlinePapers && app.S3 != nil {
		key := storage.CorpusKey(jobID)
		body, err := encodeJSONL(data.Papers)
		if err != nil {
			return util.ErrorJSON(c, err)
		}
		err = iutil.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
			return storage.PutFile(ctx, app.S3, app.Config.S3.Bucket, key, body)
		})
		if err != nil {
			return util.ErrorJSON(c, fmt.Errorf("%w: %w", store.ErrUnavailable, err))
		}
		msg.S3Key = key
	} else {
		msg.Papers = data.Papers
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	if err := queue.PublishFIFO(ctx, app.Queue, queue.IngestQueue, payload); err != nil {
		return util.ErrorJSON(c, fmt.Errorf("%w: publish ingest job: %w", store.ErrUnavailable, err))
	}

	logger.Info("[Server] Queued ingest job", "job_id", jobID, "papers", len(data.Papers), "s3_key", msg.S3Key)
	return c.JSON(http.StatusAccepted, ingestResponse{
		JobID:      jobID,
		Status:     store.JobQueued,
		PaperCount: len(data.Papers),
		S3Key:      msg.S3Key,
	})
}

func GetIngestJobHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.Jobs == nil {
		return util.ErrorJSON(c, fmt.Errorf("job tracking: %w", util.ErrFeatureDisabled))
	}

	id := c.Param("id")
	if !iutil.IsNanoid(id) {
		return util.ErrorJSON(c, fmt.Errorf("job %q: %w", id, store.ErrNotFound))
	}

	job, err := app.Jobs.GetJob(c.Request().Context(), id)
	if err != nil {
		return util.ErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func encodeJSONL(papers []common.Paper) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range papers {
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
