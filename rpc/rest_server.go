package rpc

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/logger"
)

const (
	metricsScopeRESTAPI = "rest_api"

	DefaultMaxBodySize int64 = 4 << 20
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", rest.ContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc type is an adapter to allow the use of ordinary function as Registrar.
	RegistrarFunc func(r *mux.Router)

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}
)

/*
NewRESTServer creates HTTP server with all the endpoints of the registrars
mounted under "/api/v1".
*/
func NewRESTServer(addr string, maxBodySize int64, obs Observability, registrars ...Registrar) *http.Server {
	log := obs.Logger()
	mtr := obs.Meter(metricsScopeRESTAPI)

	// with NotFoundHandler set the router reports method mismatch as 404
	// unless MethodNotAllowedHandler is set too
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	r.MethodNotAllowedHandler = methodNotAllowed(log)
	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	apiV1Router.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	apiV1Router.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)), instrumentHTTP(mtr, log))

	for _, registrar := range registrars {
		registrar.Register(apiV1Router)
	}

	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}))

	return &http.Server{
		Addr:              addr,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      60 * time.Second, // forward waits for the pool member to respond
		IdleTimeout:       30 * time.Second,
		Handler:           recovery(http.MaxBytesHandler(r, maxBodySize)),
	}
}

func methodNotAllowed(log *slog.Logger) http.Handler {
	rw := &rest.ResponseWriter{LogErr: func(err error) { log.Warn("writing method not allowed response", logger.Error(err)) }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw.ErrorResponse(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s is not allowed for %s", r.Method, r.URL.Path))
	})
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("HTTP handler panic", slog.Any("panic", v))
}
