// internal/app/batch.go
package app

import (
	"context"
	"io"

	"go.uber.org/zap"

	"kmerwalk/internal/batchinput"
	"kmerwalk/internal/cli"
	"kmerwalk/internal/config"
	"kmerwalk/internal/dispatch"
	"kmerwalk/internal/output"
	"kmerwalk/internal/retry"
)

func runBatch(ctx context.Context, rt *runtime, cfg config.Config, o cli.BatchOptions, out io.Writer) error {
	delim, err := batchinput.ParseDelimiter(o.Delimiter)
	if err != nil {
		return err
	}
	fw, rc, err := dispatch.ParseCount(o.Count)
	if err != nil {
		return err
	}
	mode, err := dispatch.ParseMode(o.Mode)
	if err != nil {
		return err
	}
	layout, err := dispatch.ParseLayout(o.Layout)
	if err != nil {
		return err
	}
	table, err := batchinput.Load(o.Input, o.FASTA, batchinput.Options{
		Delimiter: delim,
		Column:    o.Column,
		Labels:    o.Labels,
		Header:    o.Header,
	})
	if err != nil {
		return err
	}

	datasets := make([]dispatch.Dataset, 0, len(o.Datasets))
	for _, s := range o.Datasets {
		datasets = append(datasets, dispatch.ParseDataset(s))
	}
	req := dispatch.FromTable(table, datasets, fw, rc)
	req.Mode = mode
	req.Layout = layout

	d := dispatch.New(rt.client, dispatch.Config{
		PageSize:    cfg.PageSize,
		Parallelism: cfg.Parallelism,
		Retry:       retry.Policy{Initial: cfg.RetryInitial, Max: cfg.RetryMax},
		Listener:    dispatch.LogListener{Logger: rt.logger},
		Metrics:     rt.metrics,
	}, rt.logger)
	job, err := d.Submit(ctx, req)
	if err != nil {
		return err
	}
	if err := job.Wait(ctx); err != nil {
		return err
	}
	rt.logger.Info("batch finished",
		zap.Uint64("epoch", uint64(job.Epoch())),
		zap.Int("kmers", len(table.Kmers)),
		zap.Int("datasets", len(datasets)),
	)

	if o.Output == output.FormatJSON {
		return output.WriteBatchJSON(out, d.Buffer().Result())
	}
	return output.WriteBatchText(out, d.Buffer())
}
