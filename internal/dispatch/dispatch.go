// Package dispatch delivers batches of k-mer count queries to the oracle,
// retrying transport failures and assembling the results in input order.
// Only the most recent submission may write to the output buffer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/metrics"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/retry"
)

// DefaultPageSize is the number of k-mers per massQuery page.
const DefaultPageSize = 1000

// ErrSuperseded is returned by Job.Wait when a newer submission replaced the job.
var ErrSuperseded = retry.ErrStale

// Config tunes a Dispatcher. Zero values select the defaults.
type Config struct {
	PageSize    int
	Parallelism int // dataset streams in flight in paged mode; <= 1 = sequential
	Retry       retry.Policy
	Listener    Listener
	Metrics     *metrics.Metrics
}

// Dispatcher owns the epoch guard and output buffer of the batch tool.
type Dispatcher struct {
	oracle oracle.Oracle
	cfg    Config
	logger *zap.Logger

	guard  epoch.Guard
	buf    Buffer
	submit sync.Mutex
}

// New builds a Dispatcher over o.
func New(o oracle.Oracle, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{oracle: o, cfg: cfg, logger: logger.Named("dispatch")}
}

// Buffer returns the output buffer. It always reflects the latest submission.
func (d *Dispatcher) Buffer() *Buffer { return &d.buf }

// Epoch returns the current epoch (0 before the first valid submission).
func (d *Dispatcher) Epoch() epoch.Epoch { return d.guard.Current() }

// Job is one running submission.
type Job struct {
	epoch    epoch.Epoch
	datasets []Dataset
	done     chan struct{}
	err      error
}

// Epoch is the epoch the job was submitted under.
func (j *Job) Epoch() epoch.Epoch { return j.epoch }

// Datasets returns the submission order.
func (j *Job) Datasets() []Dataset { return append([]Dataset(nil), j.datasets...) }

// Done is closed when the job finishes, fails or is superseded.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err is the job's outcome once Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates req and, if valid, supersedes any running job and starts
// dispatching in the background. Invalid input returns a
// *kmer.ValidationError; no request is sent and the epoch is unchanged.
// ctx bounds the whole background job.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*Job, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	d.submit.Lock()
	e := d.guard.Advance()
	d.buf.reset(e, req)
	d.submit.Unlock()

	job := &Job{epoch: e, datasets: req.Datasets, done: make(chan struct{})}
	d.logger.Info("k-mers valid, starting queries",
		zap.Uint64("epoch", uint64(e)),
		zap.Int("kmers", len(req.Kmers)),
		zap.Int("datasets", len(req.Datasets)),
		zap.Stringer("mode", req.Mode),
	)
	go d.run(ctx, job, req)
	return job, nil
}

func (d *Dispatcher) run(ctx context.Context, job *Job, req Request) {
	defer close(job.done)

	var err error
	if req.Mode == ModeFull {
		err = d.runFull(ctx, job, req)
	} else {
		err = d.runPaged(ctx, job, req)
	}
	if err == nil && !d.buf.markComplete(&d.guard, job.epoch) {
		err = retry.ErrStale
	}

	switch {
	case err == nil:
		d.cfg.Listener.OnComplete(job.epoch)
	case errors.Is(err, retry.ErrStale):
		d.cfg.Metrics.Stale("dispatch")
		d.cfg.Listener.OnStale(job.epoch)
	default:
		d.logger.Error("batch failed", zap.Uint64("epoch", uint64(job.epoch)), zap.Error(err))
	}
	job.err = err
}

func (d *Dispatcher) live(e epoch.Epoch) func() bool {
	return func() bool { return d.guard.IsCurrent(e) }
}

func (d *Dispatcher) onRetry(e epoch.Epoch, op string, ds Dataset) func(retry.Attempt) {
	return func(a retry.Attempt) {
		d.cfg.Metrics.Retry(op)
		d.cfg.Listener.OnRetry(e, op, ds, a)
	}
}

func (d *Dispatcher) runFull(ctx context.Context, job *Job, req Request) error {
	ids := make([]string, len(req.Datasets))
	for i, ds := range req.Datasets {
		ids[i] = ds.ID
	}

	var res map[string]oracle.Counts
	err := d.cfg.Retry.Do(ctx, d.live(job.epoch), func(ctx context.Context) error {
		r, err := d.oracle.BatchQuery(ctx, req.Kmers, ids, req.CountForward, req.CountRevComp)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := r[id]; !ok {
				return &oracle.TransportError{Op: "batchQuery", Err: fmt.Errorf("%w: dataset %q missing", oracle.ErrMisaligned, id)}
			}
		}
		res = r
		return nil
	}, d.onRetry(job.epoch, "batchQuery", Dataset{}))
	if err != nil {
		return err
	}

	for _, ds := range req.Datasets {
		if !d.buf.apply(&d.guard, job.epoch, ds.ID, res[ds.ID]) || !d.buf.markDone(&d.guard, job.epoch, ds.ID) {
			return retry.ErrStale
		}
		d.cfg.Metrics.Page()
		d.cfg.Listener.OnPage(job.epoch, ds, 0, len(req.Kmers))
		d.cfg.Listener.OnDatasetComplete(job.epoch, ds)
	}
	return nil
}

func (d *Dispatcher) runPaged(ctx context.Context, job *Job, req Request) error {
	if d.cfg.Parallelism <= 1 {
		for _, ds := range req.Datasets {
			if err := d.stream(ctx, job, req, ds); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Parallelism)
	for _, ds := range req.Datasets {
		ds := ds
		g.Go(func() error { return d.stream(gctx, job, req, ds) })
	}
	return g.Wait()
}

// stream sends one dataset's pages strictly in order, one in flight.
func (d *Dispatcher) stream(ctx context.Context, job *Job, req Request, ds Dataset) error {
	n := len(req.Kmers)
	for start := 0; start < n; start += d.cfg.PageSize {
		end := min(start+d.cfg.PageSize, n)
		d.logger.Debug("executing queries",
			zap.Uint64("epoch", uint64(job.epoch)),
			zap.String("dataset", ds.ID),
			zap.Int("start", start+1),
			zap.Int("end", end),
		)

		var page oracle.Counts
		err := d.cfg.Retry.Do(ctx, d.live(job.epoch), func(ctx context.Context) error {
			c, err := d.oracle.MassQuery(ctx, req.Kmers[start:end], ds.ID, req.CountForward, req.CountRevComp)
			if err != nil {
				return err
			}
			page = c
			return nil
		}, d.onRetry(job.epoch, "massQuery", ds))
		if err != nil {
			return err
		}
		if !d.buf.apply(&d.guard, job.epoch, ds.ID, page) {
			return retry.ErrStale
		}
		d.cfg.Metrics.Page()
		d.cfg.Listener.OnPage(job.epoch, ds, start, end)
	}
	if !d.buf.markDone(&d.guard, job.epoch, ds.ID) {
		return retry.ErrStale
	}
	d.cfg.Listener.OnDatasetComplete(job.epoch, ds)
	return nil
}
