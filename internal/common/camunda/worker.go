// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"outputrocks-nodes/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	// Timeout is how long the job stays locked to this worker.
	Timeout time.Duration
}

type CamundaWorker struct {
	worker worker.JobWorker
	logger logger.Logger
	opts   WorkerOptions
}

func NewWorker(client zbc.Client, opts WorkerOptions, handler JobHandler, log logger.Logger) *CamundaWorker {
	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(handler.Handle).
		MaxJobsActive(opts.MaxJobsActive)
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}

	return &CamundaWorker{
		worker: builder.Open(),
		logger: log.WithFields(map[string]interface{}{"taskType": opts.TaskType}),
		opts:   opts,
	}
}

func (w *CamundaWorker) Start() {
	w.logger.Info("worker started", map[string]interface{}{"maxJobsActive": w.opts.MaxJobsActive})
}

// Stop closes the job worker and waits for running handlers. The shared
// client stays open.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
