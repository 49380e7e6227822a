package dispatch

import (
	"go.uber.org/zap"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/retry"
)

// Listener observes a job's progress. With Parallelism > 1 methods may be
// called from several goroutines at once.
type Listener interface {
	OnPage(e epoch.Epoch, ds Dataset, start, end int)
	OnDatasetComplete(e epoch.Epoch, ds Dataset)
	OnRetry(e epoch.Epoch, op string, ds Dataset, a retry.Attempt)
	OnComplete(e epoch.Epoch)
	OnStale(e epoch.Epoch)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnPage(epoch.Epoch, Dataset, int, int)               {}
func (NopListener) OnDatasetComplete(epoch.Epoch, Dataset)              {}
func (NopListener) OnRetry(epoch.Epoch, string, Dataset, retry.Attempt) {}
func (NopListener) OnComplete(epoch.Epoch)                              {}
func (NopListener) OnStale(epoch.Epoch)                                 {}

// LogListener reports progress on a zap logger.
type LogListener struct {
	Logger *zap.Logger
}

func (l LogListener) OnPage(e epoch.Epoch, ds Dataset, start, end int) {
	l.Logger.Info("queries completed",
		zap.Uint64("epoch", uint64(e)),
		zap.String("dataset", ds.Name()),
		zap.Int("start", start+1),
		zap.Int("end", end),
	)
}

func (l LogListener) OnDatasetComplete(e epoch.Epoch, ds Dataset) {
	l.Logger.Info("dataset complete", zap.Uint64("epoch", uint64(e)), zap.String("dataset", ds.Name()))
}

func (l LogListener) OnRetry(e epoch.Epoch, op string, ds Dataset, a retry.Attempt) {
	l.Logger.Warn("server error, retrying",
		zap.Uint64("epoch", uint64(e)),
		zap.String("op", op),
		zap.String("dataset", ds.Name()),
		zap.Int("attempt", a.N),
		zap.Duration("wait", a.Delay),
		zap.Error(a.Err),
	)
}

func (l LogListener) OnComplete(e epoch.Epoch) {
	l.Logger.Info("all queries completed", zap.Uint64("epoch", uint64(e)))
}

func (l LogListener) OnStale(e epoch.Epoch) {
	l.Logger.Debug("superseded by a newer query", zap.Uint64("epoch", uint64(e)))
}
