package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/graph"
	"github.com/NimaFathima/astrobiomers/pkg/leaselock"
	"github.com/NimaFathima/astrobiomers/pkg/loader"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/store"
)

// ErrMalformedMessage marks messages that can never succeed. They skip the
// retry queue.
var ErrMalformedMessage = errors.New("malformed message")

// IngestMsg asks the worker to load papers into the graph. Papers travel
// inline or, for large corpora, as a JSONL object in S3.
type IngestMsg struct {
	JobID  string         `json:"job_id"`
	Papers []common.Paper `json:"papers,omitempty"`
	S3Key  string         `json:"s3_key,omitempty"`
}

// JobStatusMsg is published on the status exchange whenever a job changes
// state.
type JobStatusMsg struct {
	JobID      string          `json:"job_id"`
	Status     store.JobStatus `json:"status"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Error      string          `json:"error,omitempty"`
}

const jobLeaseTTL = 2 * time.Minute

// JobLeaser serializes the processing of one job across workers.
type JobLeaser interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Processor executes ingest messages.
type Processor struct {
	graph      *graph.GraphClient
	graphStore store.GraphStorage
	corpus     store.PaperStorage
	jobs       store.JobStorage
	leases     JobLeaser
	loader     loader.CorpusLoader
	status     Publisher
}

// NewProcessorParams wires a Processor. Everything but Graph and GraphStore
// is optional: without Loader messages must carry papers inline, without
// Jobs no progress is recorded and without Leases a redelivered message may
// run next to its first delivery.
type NewProcessorParams struct {
	Graph      *graph.GraphClient
	GraphStore store.GraphStorage
	Corpus     store.PaperStorage
	Jobs       store.JobStorage
	Leases     JobLeaser
	Loader     loader.CorpusLoader
	Status     Publisher
}

func NewProcessor(params NewProcessorParams) *Processor {
	return &Processor{
		graph:      params.Graph,
		graphStore: params.GraphStore,
		corpus:     params.Corpus,
		jobs:       params.Jobs,
		leases:     params.Leases,
		loader:     params.Loader,
		status:     params.Status,
	}
}

// DecodeIngestMsg parses and validates a message body.
func DecodeIngestMsg(body []byte) (IngestMsg, error) {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return IngestMsg{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.JobID == "" {
		return IngestMsg{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	if len(msg.Papers) == 0 && msg.S3Key == "" {
		return IngestMsg{}, fmt.Errorf("%w: job %s carries no papers", ErrMalformedMessage, msg.JobID)
	}
	return msg, nil
}

// ProcessIngestMessage loads the papers of one message into the graph and
// records the outcome on the job. A returned error means the message should
// be retried, unless it wraps ErrMalformedMessage. Jobs that already
// completed are skipped.
func (p *Processor) ProcessIngestMessage(ctx context.Context, body []byte) (*graph.Report, error) {
	msg, err := DecodeIngestMsg(body)
	if err != nil {
		return nil, err
	}

	if p.leases == nil {
		return p.process(ctx, msg)
	}

	var report *graph.Report
	err = p.leases.WithLease(ctx, "ingest:"+msg.JobID, leaselock.Options{TTL: jobLeaseTTL, Holder: "worker-"}, func(ctx context.Context) error {
		var err error
		report, err = p.process(ctx, msg)
		return err
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Job is running on another worker", "job_id", msg.JobID)
		return nil, fmt.Errorf("job %s: %w", msg.JobID, err)
	}
	return report, err
}

func (p *Processor) process(ctx context.Context, msg IngestMsg) (*graph.Report, error) {
	if p.jobs != nil {
		job, err := p.jobs.GetJob(ctx, msg.JobID)
		if err == nil && job.Status == store.JobCompleted {
			logger.Info("[Queue] Skipping completed job", "job_id", msg.JobID)
			return &graph.Report{}, nil
		}
	}

	p.setStatus(ctx, msg.JobID, store.JobProcessing)

	papers := msg.Papers
	if len(papers) == 0 {
		if p.loader == nil {
			return nil, fmt.Errorf("%w: job %s references %s but object storage is disabled", ErrMalformedMessage, msg.JobID, msg.S3Key)
		}
		var err error
		papers, err = loader.NewCorpusFile(msg.S3Key, p.loader).GetPapers(ctx)
		if err != nil {
			p.setStatus(ctx, msg.JobID, store.JobQueued)
			return nil, err
		}
	}

	logger.Info("[Queue] Ingesting papers", "job_id", msg.JobID, "papers", len(papers))

	report, err := p.graph.ProcessPapers(ctx, papers, p.graphStore, p.corpus)
	if err != nil {
		// Storage failures are retried; the job goes back to queued.
		p.setStatus(ctx, msg.JobID, store.JobQueued)
		return report, fmt.Errorf("failed to process job %s: %w", msg.JobID, err)
	}

	p.finish(ctx, msg.JobID, jobSummary(report))
	return report, nil
}

// FailJob marks a job as failed for good, after its message was moved to
// the dead-letter queue.
func (p *Processor) FailJob(ctx context.Context, body []byte, cause error) {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
		return
	}
	if p.jobs != nil {
		if err := p.jobs.FinishJob(ctx, msg.JobID, common.BatchSummary{}, cause); err != nil {
			logger.Error("[Queue] Failed to mark job failed", "job_id", msg.JobID, "err", err)
		}
	}
	p.publish(ctx, JobStatusMsg{JobID: msg.JobID, Status: store.JobFailed, Error: cause.Error()})
}

func jobSummary(report *graph.Report) common.BatchSummary {
	summary := common.BatchSummary{
		Successful: report.NER.Successful,
		Failed:     report.NER.Failed,
		Errors:     append([]common.BatchError{}, report.NER.Errors...),
	}
	summary.Errors = append(summary.Errors, report.Relation.Errors...)
	return summary
}

func (p *Processor) setStatus(ctx context.Context, jobID string, status store.JobStatus) {
	if p.jobs != nil {
		err := p.jobs.UpdateJobStatus(ctx, jobID, status)
		if errors.Is(err, store.ErrNotFound) {
			// Messages published without the API, e.g. by the CLI.
			err = p.jobs.CreateJob(ctx, jobID, 0)
			if err == nil {
				err = p.jobs.UpdateJobStatus(ctx, jobID, status)
			}
		}
		if err != nil {
			logger.Warn("[Queue] Failed to update job status", "job_id", jobID, "status", status, "err", err)
		}
	}
	p.publish(ctx, JobStatusMsg{JobID: jobID, Status: status})
}

func (p *Processor) finish(ctx context.Context, jobID string, summary common.BatchSummary) {
	if p.jobs != nil {
		if err := p.jobs.FinishJob(ctx, jobID, summary, nil); err != nil {
			logger.Warn("[Queue] Failed to finish job", "job_id", jobID, "err", err)
		}
	}
	p.publish(ctx, JobStatusMsg{
		JobID:      jobID,
		Status:     store.JobCompleted,
		Successful: summary.Successful,
		Failed:     summary.Failed,
	})
}

func (p *Processor) publish(ctx context.Context, msg JobStatusMsg) {
	if p.status == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := PublishTopic(ctx, p.status, "ingest."+msg.JobID, data); err != nil {
		logger.Debug("[Queue] Failed to publish job status", "job_id", msg.JobID, "err", err)
	}
}
