package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kmerwalk/internal/graph"
	"kmerwalk/internal/jsonutil"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/output"
	"kmerwalk/internal/writers"
	"kmerwalk/pkg/api"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok", "session": s.id})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := jsonutil.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), v); err != nil {
		return kmer.Invalid("request body", err.Error())
	}
	return nil
}

func nodeParam(r *http.Request) (graph.NodeID, error) {
	raw := chi.URLParam(r, "nodeID")
	id, err := graph.ParseNodeID(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", graph.ErrUnknownNode, raw)
	}
	return id, nil
}

// seed handles POST /session/seed.
func (s *Server) seed(w http.ResponseWriter, r *http.Request) {
	var req api.SeedRequestV1
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.engine.Seed(req.Kmer, req.Dataset, req.Threshold); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.chain.Reset()
	s.respond(w, http.StatusCreated, output.ToAPIGraph(s.engine.Snapshot(), s.id))
}

// expand handles POST /session/nodes/{nodeID}/expand. The response is the
// expanded node; new nodes and edges arrive on the event stream and in
// GET /session/graph.
func (s *Server) expand(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := s.engine.Expand(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("expanded", zap.Stringer("node", id), zap.Int("children", len(n.Children)))
	s.respond(w, http.StatusOK, output.ToAPINode(n))
}

// snapshot handles GET /session/graph.
func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, output.ToAPIGraph(s.engine.Snapshot(), s.id))
}

// node handles GET /session/nodes/{nodeID}.
func (s *Server) node(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, ok := s.engine.Node(id)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", graph.ErrUnknownNode, id))
		return
	}
	s.respond(w, http.StatusOK, output.ToAPINode(n))
}

func (s *Server) getAssembly(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, output.ToAPIAssembly(s.chain))
}

// selectNode handles POST /session/assembly/select.
func (s *Server) selectNode(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequestV1
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := graph.ParseNodeID(req.Node)
	if err != nil {
		s.respondError(w, r, kmer.Invalid("node", "want n<number>", req.Node))
		return
	}
	if err := s.chain.SelectNext(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, output.ToAPIAssembly(s.chain))
}

func (s *Server) resetAssembly(w http.ResponseWriter, _ *http.Request) {
	s.chain.Reset()
	s.respond(w, http.StatusOK, output.ToAPIAssembly(s.chain))
}

// assemblyFASTA handles GET /session/assembly.fasta.
func (s *Server) assemblyFASTA(w http.ResponseWriter, r *http.Request) {
	if len(s.chain.IDs()) == 0 {
		s.respond(w, http.StatusNotFound, api.ErrorV1{Error: "assembly is empty", Kind: KindNotFound})
		return
	}
	w.Header().Set("Content-Type", "text/x-fasta")
	if err := output.WriteFASTA(w, s.chain); err != nil && !writers.IsPeerGone(err) {
		s.logger.Warn("write fasta", zap.Error(err))
	}
}
