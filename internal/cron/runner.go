package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled unit of work. Errors are logged, never retried.
type Job func(ctx context.Context) error

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	timeout time.Duration
}

// New builds a seconds-resolution scheduler whose jobs run under baseCtx.
// Overlapping runs of the same job are skipped and panics are recovered.
// Extra options, such as cron.WithLocation, are applied last.
func New(logger *zap.Logger, baseCtx context.Context, opts ...cron.Option) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := zapLogger{s: logger.Named("cron").Sugar()}
	base := []cron.Option{
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	}
	return &Runner{
		cron:    cron.New(append(base, opts...)...),
		logger:  logger,
		baseCtx: baseCtx,
		timeout: time.Minute,
	}
}

// WithTimeout bounds every job run; zero disables the bound.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	r.timeout = d
	return r
}

func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() { r.run(name, job) })
}

func (r *Runner) run(name string, job Job) {
	ctx := r.baseCtx
	if ctx.Err() != nil {
		return
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		r.logger.Warn("cron job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("cron job done", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("jobs", r.Entries()))
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

// zapLogger adapts zap to cron's logr-style Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
