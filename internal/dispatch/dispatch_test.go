package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/oracle/oracletest"
	"kmerwalk/internal/retry"
)

type recorder struct {
	mu       sync.Mutex
	pages    [][2]int
	datasets []string
	retries  []retry.Attempt
	texts    []string
	complete []epoch.Epoch
	stale    []epoch.Epoch
	buf      *Buffer
}

func (r *recorder) OnPage(_ epoch.Epoch, _ Dataset, start, end int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, [2]int{start, end})
	if r.buf != nil {
		r.texts = append(r.texts, r.buf.Text())
	}
}

func (r *recorder) OnDatasetComplete(_ epoch.Epoch, ds Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets = append(r.datasets, ds.ID)
}

func (r *recorder) OnRetry(_ epoch.Epoch, _ string, _ Dataset, a retry.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, a)
}

func (r *recorder) OnComplete(e epoch.Epoch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, e)
}

func (r *recorder) OnStale(e epoch.Epoch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = append(r.stale, e)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newDispatcher(o oracle.Oracle, cfg Config) (*Dispatcher, *recorder) {
	rec := &recorder{}
	cfg.Listener = rec
	if cfg.Retry.Sleep == nil {
		cfg.Retry.Sleep = noSleep
	}
	d := New(o, cfg, nil)
	rec.buf = d.Buffer()
	return d, rec
}

func wait(t *testing.T, j *Job) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := j.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "job did not finish")
	return err
}

func TestSubmitRejectsInvalidKmersWithoutCalls(t *testing.T) {
	fake := &oracletest.Fake{}
	d, _ := newDispatcher(fake, Config{})

	_, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"AACGT", "NNNXX"},
		Datasets:     []Dataset{{ID: "d"}},
		CountForward: true,
		CountRevComp: true,
	})

	var ve *kmer.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"NNNXX"}, ve.Values)
	assert.Equal(t, 0, fake.CallCount(""))
	assert.Equal(t, epoch.Epoch(0), d.Epoch())
}

func TestSubmitValidation(t *testing.T) {
	d, _ := newDispatcher(&oracletest.Fake{}, Config{})
	cases := map[string]Request{
		"no datasets":    {Kmers: []string{"A"}, CountForward: true},
		"no kmers":       {Datasets: []Dataset{{ID: "d"}}, CountForward: true},
		"no orientation": {Kmers: []string{"A"}, Datasets: []Dataset{{ID: "d"}}},
		"labels":         {Kmers: []string{"A"}, Labels: []string{"x", "y"}, Datasets: []Dataset{{ID: "d"}}, CountForward: true},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Submit(context.Background(), req)
			var ve *kmer.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
	assert.Equal(t, epoch.Epoch(0), d.Epoch())
}

func TestSubmitAdvancesEpochOncePerCall(t *testing.T) {
	d, _ := newDispatcher(&oracletest.Fake{}, Config{})
	req := Request{Kmers: []string{"acgt"}, Datasets: []Dataset{{ID: "d"}}, CountForward: true}

	j1, err := d.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, epoch.Epoch(1), j1.Epoch())
	_ = wait(t, j1)

	j2, err := d.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, epoch.Epoch(2), j2.Epoch())
	require.NoError(t, wait(t, j2))
	assert.Equal(t, epoch.Epoch(2), d.Epoch())
	assert.Equal(t, epoch.Epoch(2), d.Buffer().Epoch())
}

func TestPagedLongLayoutInPageOrder(t *testing.T) {
	fake := &oracletest.Fake{}
	d, rec := newDispatcher(fake, Config{PageSize: 2})

	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"A", "AA", "AAA", "C", "CC"},
		Datasets:     []Dataset{{ID: "0-ds", Label: "sample"}},
		CountForward: true,
		CountRevComp: true,
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"A", "AA"}, calls[0].Kmers)
	assert.Equal(t, []string{"AAA", "C"}, calls[1].Kmers)
	assert.Equal(t, []string{"CC"}, calls[2].Kmers)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, rec.pages)
	assert.Equal(t, []string{"0-ds"}, rec.datasets)
	assert.Equal(t, []epoch.Epoch{1}, rec.complete)

	want := "query,forward_counts,reverse_complement_counts\n" +
		"A,1,1\nAA,2,2\nAAA,3,3\nC,1,0\nCC,2,0\n"
	assert.Equal(t, want, d.Buffer().Text())
	assert.True(t, d.Buffer().Complete())
}

func TestPagedProgressIsVisibleBeforeCompletion(t *testing.T) {
	d, rec := newDispatcher(&oracletest.Fake{}, Config{PageSize: 1})
	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"A", "C", "G"},
		Datasets:     []Dataset{{ID: "d"}},
		CountForward: true,
		Delimiter:    "\t",
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	require.Len(t, rec.texts, 3)
	assert.Equal(t, "query\tforward_counts\nA\t1\n", rec.texts[0])
	assert.Equal(t, "query\tforward_counts\nA\t1\nC\t1\n", rec.texts[1])
}

func TestFullBatchWideLayout(t *testing.T) {
	fake := &oracletest.Fake{}
	d, rec := newDispatcher(fake, Config{})

	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"AC", "GGA"},
		Labels:       []string{"p1", "p2"},
		Datasets:     []Dataset{{ID: "1-b", Label: "B"}, {ID: "0-a", Label: "A"}},
		CountForward: true,
		CountRevComp: true,
		Mode:         ModeFull,
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	assert.Equal(t, 1, fake.CallCount("batchQuery"))
	assert.Equal(t, []string{"1-b", "0-a"}, fake.Calls()[0].Datasets)
	assert.Equal(t, []string{"1-b", "0-a"}, rec.datasets)

	want := "dataset,p1_fw,p1_rc,p2_fw,p2_rc\n" +
		"B,2,1,3,1\n" +
		"A,2,1,3,1\n"
	assert.Equal(t, want, d.Buffer().Text())

	res := d.Buffer().Result()
	assert.Equal(t, job.Epoch(), res.Epoch)
	assert.True(t, res.Complete)
	require.Len(t, res.Datasets, 2)
	assert.Equal(t, "1-b", res.Datasets[0].Dataset.ID)
	assert.Equal(t, []int{2, 3}, res.Datasets[0].Counts.Forward)
	assert.Equal(t, []int{1, 1}, res.Datasets[1].Counts.RevComp)
	assert.True(t, res.Datasets[1].Done)
}

func TestRetryDoublesDelay(t *testing.T) {
	var (
		mu     sync.Mutex
		fails  = 3
		delays []time.Duration
	)
	fake := &oracletest.Fake{
		Mass: func(_ context.Context, kmers []string, _ string, fw, rc bool) (oracle.Counts, error) {
			mu.Lock()
			defer mu.Unlock()
			if fails > 0 {
				fails--
				return oracle.Counts{}, oracletest.TransportFailure("massQuery")
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}
	d, rec := newDispatcher(fake, Config{Retry: retry.Policy{Initial: time.Second, Sleep: sleep}})

	job, err := d.Submit(context.Background(), Request{Kmers: []string{"A"}, Datasets: []Dataset{{ID: "d"}}, CountForward: true})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	require.Len(t, rec.retries, 3)
	assert.Equal(t, 3, rec.retries[2].N)
	assert.Equal(t, 4, fake.CallCount("massQuery"))
	assert.Equal(t, "query,forward_counts\nA,1\n", d.Buffer().Text())
}

func TestRetryDelayResetsPerPage(t *testing.T) {
	var (
		mu     sync.Mutex
		calls  int
		delays []time.Duration
	)
	fake := &oracletest.Fake{
		Mass: func(_ context.Context, kmers []string, _ string, fw, rc bool) (oracle.Counts, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			// first attempt of each page fails
			if calls%2 == 1 {
				return oracle.Counts{}, oracletest.TransportFailure("massQuery")
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}
	d, _ := newDispatcher(fake, Config{PageSize: 1, Retry: retry.Policy{Initial: time.Second, Sleep: sleep}})

	job, err := d.Submit(context.Background(), Request{Kmers: []string{"A", "C"}, Datasets: []Dataset{{ID: "d"}}, CountForward: true})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, delays)
}

func TestStaleResponseIsDropped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	fake := &oracletest.Fake{
		Mass: func(_ context.Context, kmers []string, ds string, fw, rc bool) (oracle.Counts, error) {
			if ds == "old" {
				close(entered)
				<-release
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	d, rec := newDispatcher(fake, Config{})

	j1, err := d.Submit(context.Background(), Request{Kmers: []string{"A"}, Datasets: []Dataset{{ID: "old"}}, CountForward: true})
	require.NoError(t, err)
	<-entered

	j2, err := d.Submit(context.Background(), Request{Kmers: []string{"CC"}, Datasets: []Dataset{{ID: "new"}}, CountForward: true})
	require.NoError(t, err)
	require.NoError(t, wait(t, j2))

	close(release)
	assert.ErrorIs(t, wait(t, j1), ErrSuperseded)

	assert.Equal(t, "query,forward_counts\nCC,2\n", d.Buffer().Text())
	_, ok := d.Buffer().DatasetCounts("old")
	assert.False(t, ok)
	assert.Equal(t, []epoch.Epoch{1}, rec.stale)
	assert.Equal(t, []epoch.Epoch{2}, rec.complete)
}

func TestStaleRequestStopsRetrying(t *testing.T) {
	sleeping := make(chan struct{}, 1)
	resume := make(chan struct{})
	fake := &oracletest.Fake{
		Mass: func(_ context.Context, kmers []string, ds string, fw, rc bool) (oracle.Counts, error) {
			if ds == "old" {
				return oracle.Counts{}, oracletest.TransportFailure("massQuery")
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	sleep := func(ctx context.Context, _ time.Duration) error {
		select {
		case sleeping <- struct{}{}:
		default:
		}
		<-resume
		return nil
	}
	d, _ := newDispatcher(fake, Config{Retry: retry.Policy{Sleep: sleep}})

	j1, err := d.Submit(context.Background(), Request{Kmers: []string{"A"}, Datasets: []Dataset{{ID: "old"}}, CountForward: true})
	require.NoError(t, err)
	<-sleeping

	_, err = d.Submit(context.Background(), Request{Kmers: []string{"A"}, Datasets: []Dataset{{ID: "new"}}, CountForward: true, Mode: ModeFull})
	require.NoError(t, err)
	close(resume)

	assert.ErrorIs(t, wait(t, j1), ErrSuperseded)
	old := 0
	for _, c := range fake.Calls() {
		if c.Dataset == "old" {
			old++
		}
	}
	assert.Equal(t, 1, old)
}

func TestParallelStreamsKeepSubmissionOrder(t *testing.T) {
	fake := &oracletest.Fake{
		Mass: func(ctx context.Context, kmers []string, ds string, fw, rc bool) (oracle.Counts, error) {
			if ds == "a" {
				time.Sleep(20 * time.Millisecond)
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	d, rec := newDispatcher(fake, Config{PageSize: 1, Parallelism: 3})

	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"A", "G"},
		Datasets:     []Dataset{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		CountForward: true,
		Layout:       LayoutWide,
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	assert.Len(t, rec.datasets, 3)
	want := "dataset,A_fw,G_fw\na,1,1\nb,1,1\nc,1,1\n"
	assert.Equal(t, want, d.Buffer().Text())
}

func TestCancelAbortsRetrying(t *testing.T) {
	fake := &oracletest.Fake{
		Mass: func(context.Context, []string, string, bool, bool) (oracle.Counts, error) {
			return oracle.Counts{}, oracletest.TransportFailure("massQuery")
		},
	}
	d, _ := newDispatcher(fake, Config{Retry: retry.Policy{Initial: time.Hour, Sleep: retry.Sleep}})

	ctx, cancel := context.WithCancel(context.Background())
	job, err := d.Submit(ctx, Request{Kmers: []string{"A"}, Datasets: []Dataset{{ID: "d"}}, CountForward: true})
	require.NoError(t, err)
	cancel()
	assert.ErrorIs(t, wait(t, job), context.Canceled)
}

func TestLongLayoutEchoesRowsAcrossDatasets(t *testing.T) {
	d, _ := newDispatcher(&oracletest.Fake{}, Config{})
	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"AA"},
		Rows:         [][]string{{"x", "aa"}},
		RowHeader:    []string{"name", "seq"},
		Datasets:     []Dataset{{ID: "d1"}, {ID: "d2", Label: "two"}},
		CountRevComp: true,
		Layout:       LayoutLong,
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	want := "dataset,name,seq,reverse_complement_counts\nd1,x,aa,2\ntwo,x,aa,2\n"
	assert.Equal(t, want, d.Buffer().Text())
}

func TestClientTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	h := &oracletest.Handler{Oracle: &oracletest.Fake{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		h.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := oracle.NewClient(oracle.ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	d, rec := newDispatcher(client, Config{})
	job, err := d.Submit(context.Background(), Request{
		Kmers:        []string{"ACGT", "AAG"},
		Datasets:     []Dataset{{ID: "d"}},
		CountForward: true,
		CountRevComp: true,
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, job))

	require.Len(t, rec.retries, 1)
	var te *oracle.TransportError
	assert.ErrorAs(t, rec.retries[0].Err, &te)
	assert.EqualValues(t, 2, calls.Load())

	res := d.Buffer().Result()
	require.Len(t, res.Datasets, 1)
	assert.Equal(t, []int{4, 3}, res.Datasets[0].Counts.Forward)
	assert.Equal(t, []int{1, 2}, res.Datasets[0].Counts.RevComp)
}

func TestSubmitRejectsDuplicateDatasets(t *testing.T) {
	for _, layout := range []Layout{LayoutWide, LayoutLong} {
		t.Run(layout.String(), func(t *testing.T) {
			fake := &oracletest.Fake{}
			d, _ := newDispatcher(fake, Config{})

			_, err := d.Submit(context.Background(), Request{
				Kmers:        []string{"AC", "GGA"},
				Datasets:     []Dataset{{ID: "d"}, {ID: "e"}, {ID: "d"}, {ID: "e", Label: "E"}, {ID: "d"}},
				CountForward: true,
				CountRevComp: true,
				Layout:       layout,
			})

			var ve *kmer.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, []string{"d", "e"}, ve.Values)
			assert.Equal(t, 0, fake.CallCount(""))
			assert.Equal(t, epoch.Epoch(0), d.Epoch())
		})
	}
}
