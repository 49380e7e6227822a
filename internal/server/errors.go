package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"kmerwalk/internal/assembly"
	"kmerwalk/internal/graph"
	"kmerwalk/internal/jsonutil"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/writers"
	"kmerwalk/pkg/api"
)

// Error kinds in api.ErrorV1.
const (
	KindValidation   = "validation"
	KindTransport    = "transport"
	KindPrecondition = "precondition"
	KindConflict     = "conflict"
	KindNotFound     = "not_found"
	KindInternal     = "internal"
)

// classify maps an error to its HTTP status and kind.
func classify(err error) (int, api.ErrorV1) {
	body := api.ErrorV1{Error: err.Error()}
	var (
		ve *kmer.ValidationError
		te *oracle.TransportError
		pv *graph.PreconditionViolation
	)
	switch {
	case errors.As(err, &ve):
		body.Kind, body.Values = KindValidation, ve.Values
		return http.StatusBadRequest, body
	case errors.As(err, &te):
		body.Kind = KindTransport
		return http.StatusBadGateway, body
	case errors.As(err, &pv):
		body.Kind = KindPrecondition
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, graph.ErrUnknownNode), errors.Is(err, graph.ErrNoSession):
		body.Kind = KindNotFound
		return http.StatusNotFound, body
	case errors.Is(err, graph.ErrNotExpandable), errors.Is(err, graph.ErrStale),
		errors.Is(err, graph.ErrInvalidTransition),
		errors.Is(err, assembly.ErrNotCandidate), errors.Is(err, assembly.ErrNotReady):
		body.Kind = KindConflict
		return http.StatusConflict, body
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		body.Kind = KindTransport
		return http.StatusServiceUnavailable, body
	}
	body.Kind = KindInternal
	return http.StatusInternalServerError, body
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respond(w, status, body)
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonutil.Encode(w, v); err != nil && !writers.IsPeerGone(err) {
		s.logger.Warn("write response", zap.Error(err))
	}
}
