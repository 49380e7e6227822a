package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kmerwalk/internal/metrics"
)

// Endpoint paths on the index server.
const (
	PathBatchQuery = "/batchQuery"
	PathMassQuery  = "/massQuery"
	PathFollowPath = "/followPath"
)

// ClientConfig configures the HTTP oracle client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration // per request; 0 = no client timeout
	RequestsPerSecond float64       // 0 = unlimited
}

// Client talks to the index server over HTTP using form-encoded POSTs.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics // optional

	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *zap.Logger
}

var _ Oracle = (*Client)(nil)

// NewClient builds a client for cfg.BaseURL (e.g. http://localhost:8080).
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("kmerwalk/oracle"),
		logger:     logger.Named("oracle"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// BatchQuery implements Oracle.
func (c *Client) BatchQuery(ctx context.Context, kmers, datasets []string, forward, revComp bool) (map[string]Counts, error) {
	form := url.Values{}
	form.Set("kmerQueries", mustJSON(kmers))
	form.Set("datasets", mustJSON(datasets))
	form.Set("forwardEnabled", strconv.FormatBool(forward))
	form.Set("revCompEnabled", strconv.FormatBool(revComp))

	var raw map[string][][]int
	if err := c.post(ctx, "batchQuery", PathBatchQuery, form, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]Counts, len(raw))
	for _, ds := range datasets {
		pair, ok := raw[ds]
		if !ok {
			return nil, &TransportError{Op: "batchQuery", Err: fmt.Errorf("%w: dataset %q missing", ErrMisaligned, ds)}
		}
		cnt, err := countsFromPair(pair, len(kmers), forward, revComp)
		if err != nil {
			return nil, &TransportError{Op: "batchQuery", Err: fmt.Errorf("dataset %q: %w", ds, err)}
		}
		out[ds] = cnt
	}
	return out, nil
}

// MassQuery implements Oracle.
func (c *Client) MassQuery(ctx context.Context, kmers []string, dataset string, forward, revComp bool) (Counts, error) {
	form := url.Values{}
	form.Set("kmerQueries", mustJSON(kmers))
	form.Set("dataset", dataset)
	form.Set("forwardEnabled", strconv.FormatBool(forward))
	form.Set("revCompEnabled", strconv.FormatBool(revComp))

	var pair [][]int
	if err := c.post(ctx, "massQuery", PathMassQuery, form, &pair); err != nil {
		return Counts{}, err
	}
	cnt, err := countsFromPair(pair, len(kmers), forward, revComp)
	if err != nil {
		return Counts{}, &TransportError{Op: "massQuery", Err: err}
	}
	return cnt, nil
}

// FollowPath implements Oracle.
func (c *Client) FollowPath(ctx context.Context, kmer, dataset string, threshold int) (PathResult, error) {
	form := url.Values{}
	form.Set("kmerText", kmer)
	form.Set("dataset", dataset)
	form.Set("kmerThreshold", strconv.Itoa(threshold))

	var parts []json.RawMessage
	if err := c.post(ctx, "followPath", PathFollowPath, form, &parts); err != nil {
		return PathResult{}, err
	}
	res, err := decodePath(parts)
	if err != nil {
		return PathResult{}, &TransportError{Op: "followPath", Err: err}
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "oracle."+op, trace.WithAttributes(
		attribute.String("oracle.endpoint", path),
	))
	start := time.Now()
	defer func() {
		c.Metrics.ObserveRequest(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := decodeBody(resp)
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	defer body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(msg))}
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	c.logger.Debug("oracle response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func countsFromPair(pair [][]int, n int, forward, revComp bool) (Counts, error) {
	if len(pair) != 2 {
		return Counts{}, fmt.Errorf("%w: want [forward, revcomp], got %d arrays", ErrMisaligned, len(pair))
	}
	c := Counts{Forward: pair[0], RevComp: pair[1]}
	if forward && len(c.Forward) != n {
		return Counts{}, fmt.Errorf("%w: %d forward counts for %d k-mers", ErrMisaligned, len(c.Forward), n)
	}
	if revComp && len(c.RevComp) != n {
		return Counts{}, fmt.Errorf("%w: %d revcomp counts for %d k-mers", ErrMisaligned, len(c.RevComp), n)
	}
	return c, nil
}

func decodePath(parts []json.RawMessage) (PathResult, error) {
	if len(parts) != 5 {
		return PathResult{}, fmt.Errorf("%w: want 5 elements, got %d", ErrMisaligned, len(parts))
	}
	var (
		res       PathResult
		next, rcn []int
	)
	if err := json.Unmarshal(parts[0], &res.Path); err != nil {
		return PathResult{}, fmt.Errorf("path: %w", err)
	}
	for i, dst := range []*[]int{&res.Forward, &res.RevComp, &next, &rcn} {
		if err := json.Unmarshal(parts[i+1], dst); err != nil {
			return PathResult{}, fmt.Errorf("element %d: %w", i+1, err)
		}
	}
	if len(next) != 4 || len(rcn) != 4 {
		return PathResult{}, fmt.Errorf("%w: extension counts must have 4 entries", ErrMisaligned)
	}
	copy(res.NextForward[:], next)
	copy(res.NextRevComp[:], rcn)
	return res, nil
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}
