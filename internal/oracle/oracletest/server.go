package oracletest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"kmerwalk/internal/oracle"
)

// Handler serves the index server protocol on top of any Oracle.
type Handler struct {
	Oracle oracle.Oracle
	// Gzip compresses every response body when set.
	Gzip bool
}

// NewServer starts an httptest server backed by o.
func NewServer(o oracle.Oracle) *httptest.Server {
	return httptest.NewServer(&Handler{Oracle: o})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fw := r.PostForm.Get("forwardEnabled") == "true"
	rc := r.PostForm.Get("revCompEnabled") == "true"

	var (
		body any
		err  error
	)
	switch r.URL.Path {
	case oracle.PathBatchQuery:
		var kmers, datasets []string
		if err = json.Unmarshal([]byte(r.PostForm.Get("kmerQueries")), &kmers); err == nil {
			err = json.Unmarshal([]byte(r.PostForm.Get("datasets")), &datasets)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var res map[string]oracle.Counts
		if res, err = h.Oracle.BatchQuery(r.Context(), kmers, datasets, fw, rc); err == nil {
			wire := make(map[string][2][]int, len(res))
			for ds, c := range res {
				wire[ds] = [2][]int{nonNil(c.Forward), nonNil(c.RevComp)}
			}
			body = wire
		}
	case oracle.PathMassQuery:
		var kmers []string
		if err = json.Unmarshal([]byte(r.PostForm.Get("kmerQueries")), &kmers); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var c oracle.Counts
		if c, err = h.Oracle.MassQuery(r.Context(), kmers, r.PostForm.Get("dataset"), fw, rc); err == nil {
			body = [2][]int{nonNil(c.Forward), nonNil(c.RevComp)}
		}
	case oracle.PathFollowPath:
		thr, perr := strconv.Atoi(r.PostForm.Get("kmerThreshold"))
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		var p oracle.PathResult
		if p, err = h.Oracle.FollowPath(r.Context(), r.PostForm.Get("kmerText"), r.PostForm.Get("dataset"), thr); err == nil {
			body = []any{p.Path, nonNil(p.Forward), nonNil(p.RevComp), p.NextForward[:], p.NextRevComp[:]}
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if te, ok := err.(*oracle.TransportError); ok && te.Status != 0 {
			status = te.Status
		}
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	w.Header().Set("Content-Type", "application/json")
	if h.Gzip {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		_, _ = gw.Write(buf.Bytes())
		_ = gw.Close()
		return
	}
	_, _ = w.Write(buf.Bytes())
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
