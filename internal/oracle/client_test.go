package oracle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmerwalk/internal/oracle"
	"kmerwalk/internal/oracle/oracletest"
)

func newClient(url string) *oracle.Client {
	return oracle.NewClient(oracle.ClientConfig{BaseURL: url + "/"}, nil)
}

func TestClient_MassQuery(t *testing.T) {
	fake := &oracletest.Fake{}
	srv := oracletest.NewServer(fake)
	defer srv.Close()

	got, err := newClient(srv.URL).MassQuery(context.Background(), []string{"ACGT", "AAA"}, "0-test", true, true)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, got.Forward)
	assert.Equal(t, []int{1, 3}, got.RevComp)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "0-test", calls[0].Dataset)
	assert.True(t, calls[0].Forward)
}

func TestClient_MassQueryDisabledOrientation(t *testing.T) {
	srv := oracletest.NewServer(&oracletest.Fake{})
	defer srv.Close()

	got, err := newClient(srv.URL).MassQuery(context.Background(), []string{"ACGT"}, "d", true, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, got.Forward)
	assert.Empty(t, got.RevComp)
}

func TestClient_BatchQuery(t *testing.T) {
	srv := oracletest.NewServer(&oracletest.Fake{})
	defer srv.Close()

	got, err := newClient(srv.URL).BatchQuery(context.Background(), []string{"AC", "AAAA"}, []string{"d1", "d2"}, true, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{2, 4}, got["d2"].Forward)
	assert.Equal(t, []int{1, 4}, got["d1"].RevComp)
}

func TestClient_FollowPath(t *testing.T) {
	fake := &oracletest.Fake{
		Path: func(_ context.Context, kmer, dataset string, thr int) (oracle.PathResult, error) {
			return oracle.PathResult{
				Path:        kmer + "G",
				Forward:     []int{7, 6},
				RevComp:     []int{1, 1},
				NextForward: [4]int{0, 3, 6, 0},
				NextRevComp: [4]int{0, 2, 0, 0},
			}, nil
		},
	}
	srv := oracletest.NewServer(fake)
	defer srv.Close()

	got, err := newClient(srv.URL).FollowPath(context.Background(), "ACGT", "d", 5)
	require.NoError(t, err)
	assert.Equal(t, "ACGTG", got.Path)
	assert.Equal(t, [4]int{0, 3, 6, 0}, got.NextForward)
	assert.Equal(t, [4]int{0, 2, 0, 0}, got.NextRevComp)
	assert.Equal(t, 5, fake.Calls()[0].Threshold)
}

func TestClient_ServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not loaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).MassQuery(context.Background(), []string{"A"}, "d", true, true)
	var te *oracle.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Equal(t, "massQuery", te.Op)
	assert.Contains(t, err.Error(), "index not loaded")
}

func TestClient_ConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).FollowPath(context.Background(), "ACGT", "d", 1)
	assert.True(t, oracle.IsTransport(err))
}

func TestClient_MisalignedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]int{{1}, {}})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).MassQuery(context.Background(), []string{"A", "C"}, "d", true, false)
	require.Error(t, err)
	assert.True(t, oracle.IsTransport(err))
	assert.ErrorIs(t, err, oracle.ErrMisaligned)
}

func TestClient_GzipResponse(t *testing.T) {
	srv := httptest.NewServer(&oracletest.Handler{Oracle: &oracletest.Fake{}, Gzip: true})
	defer srv.Close()

	got, err := newClient(srv.URL).MassQuery(context.Background(), []string{"ACG"}, "d", true, false)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got.Forward)
}

func TestClient_ZstdResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		enc, _ := zstd.NewWriter(&buf)
		_, _ = enc.Write([]byte(`[[9],[]]`))
		_ = enc.Close()
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	got, err := newClient(srv.URL).MassQuery(context.Background(), []string{"ACG"}, "d", true, false)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, got.Forward)
}

func TestClient_ContextCanceledIsNotTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(srv.URL).MassQuery(ctx, []string{"A"}, "d", true, false)
	require.Error(t, err)
	assert.False(t, oracle.IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}
