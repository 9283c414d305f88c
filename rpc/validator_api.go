package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/logger"
	"github.com/alphabill-org/poolvalidator/transport"
	"github.com/alphabill-org/poolvalidator/types"
	"github.com/alphabill-org/poolvalidator/validator"
)

type (
	validatorNode interface {
		Handle(ctx context.Context, payload []byte) ([]byte, error)
		Scores() map[types.PeerID]float64
		Info() validator.Info
	}

	scoreResponse struct {
		ID    types.PeerID `json:"id"`
		Score float64      `json:"score"`
	}
)

/*
ForwardEndpoints registers the inbound forward handler of the validator.
The response has the same format the pool members use, so the validator
itself can be a member of another pool.
*/
func ForwardEndpoints(node validatorNode, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/forward", forwardHandler(node, log)).Methods(http.MethodPost)
	}
}

// StateEndpoints registers endpoints for inspecting the state of the validator.
func StateEndpoints(node validatorNode, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		rw := &rest.ResponseWriter{LogErr: func(err error) { log.Warn("writing response", logger.Error(err)) }}
		r.HandleFunc("/scores", scoresHandler(node, rw)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
			rw.WriteResponse(w, node.Info())
		}).Methods(http.MethodGet, http.MethodOptions)
	}
}

// MetricsEndpoints registers Prometheus scrape endpoint, nothing is registered when handler is nil.
func MetricsEndpoints(h http.Handler) RegistrarFunc {
	return func(r *mux.Router) {
		if h == nil {
			return
		}
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}
}

func forwardHandler(node validatorNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &rest.ResponseWriter{LogErr: func(err error) { log.WarnContext(r.Context(), "forward response", logger.Error(err)) }}
		defer r.Body.Close()

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			rw.ErrorResponse(w, http.StatusBadRequest, fmt.Errorf("reading request body: %w", err))
			return
		}

		rsp, err := node.Handle(r.Context(), payload)
		switch {
		case err == nil:
			rw.WriteCborResponse(w, &transport.ForwardResponse{Code: types.OutcomeSuccess, Payload: rsp})
		case errors.Is(err, validator.ErrForwardFailure):
			rw.WriteCborResponse(w, &transport.ForwardResponse{Code: transport.CodeFailure, Payload: rsp})
		case errors.Is(err, validator.ErrEmptyRegistry):
			rw.ErrorResponse(w, http.StatusServiceUnavailable, err)
		default:
			rw.WriteErrorResponse(w, err)
		}
	}
}

func scoresHandler(node validatorNode, rw *rest.ResponseWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores := node.Scores()
		rsp := make([]scoreResponse, 0, len(scores))
		for id, s := range scores {
			rsp = append(rsp, scoreResponse{ID: id, Score: s})
		}
		sort.Slice(rsp, func(i, j int) bool { return rsp[i].ID < rsp[j].ID })
		rw.WriteResponse(w, rsp)
	}
}
