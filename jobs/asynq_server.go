// Package jobs runs background work over asynq: the scheduled forecast
// refresh plus ad-hoc enqueues from the API process.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// QueueDefault is the queue every task runs on. A single-user system
// has no reason for priority tiers.
const QueueDefault = "default"

// Worker owns the asynq server, its mux, and an optional scheduler for
// cron-driven tasks. Register handlers and schedules before calling Run.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	redisOpts asynq.RedisClientOpt
	logger    *slog.Logger
}

// NewWorker constructs an idle worker bound to the given redis.
func NewWorker(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	server := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{QueueDefault: 1},
	})
	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		redisOpts: redisOpts,
		logger:    logger,
	}
}

// Handle registers a task handler under its type string.
func (w *Worker) Handle(taskType string, handler asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, handler)
}

// Schedule registers a cron entry. The scheduler is created lazily on
// the first call and always runs in UTC.
func (w *Worker) Schedule(spec string, task *asynq.Task, opts ...asynq.Option) error {
	if spec == "" || task == nil {
		return errors.New("jobs: schedule needs a cron spec and a task")
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.redisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	}
	entryID, err := w.scheduler.Register(spec, task, opts...)
	if err != nil {
		return err
	}
	w.logger.Info("cron entry registered",
		slog.String("task", task.Type()),
		slog.String("spec", spec),
		slog.String("entry_id", entryID))
	return nil
}

// Run processes tasks until the context is cancelled or the server
// fails. The scheduler, when present, starts first so cron entries are
// live before the first task lands.
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		defer w.scheduler.Shutdown()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-serverErr:
		return err
	}
}

// Client enqueues tasks from the API process.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an enqueue-only asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueForecastRefresh queues an immediate forecast refresh run, as
// used after bulk rule edits when waiting for the next cron tick is
// not acceptable.
func (c *Client) EnqueueForecastRefresh(ctx context.Context, payload ForecastRefreshPayload) (*asynq.TaskInfo, error) {
	task, err := NewForecastRefreshTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
