package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/alphabill-org/poolvalidator/logger"
)

/*
instrumentHTTP returns http middleware which instruments the incoming handler with two metrics:
  - number of calls: how many times the endpoint has been called;
  - request duration: how long it took to serve the request.
*/
func instrumentHTTP(mtr metric.Meter, log *slog.Logger) func(next http.Handler) http.Handler {
	callCnt, err := mtr.Int64Counter("calls", metric.WithDescription("How many times the endpoint has been called"))
	if err != nil {
		log.Error("creating calls counter", logger.Error(err))
		return passthroughMW
	}
	callDur, err := mtr.Float64Histogram("duration",
		metric.WithDescription("How long it took to serve the request"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(100e-6, 400e-6, 0.0016, 0.01, 0.05, 0.1, 0.5, 1, 5))
	if err != nil {
		log.Error("creating duration histogram", logger.Error(err))
		return passthroughMW
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var attr []attribute.KeyValue
			if route := mux.CurrentRoute(req); route != nil {
				if path, err := route.GetPathTemplate(); err != nil {
					log.WarnContext(req.Context(), "reading route path", logger.Error(err))
				} else {
					attr = append(attr, semconv.HTTPRoute(path))
				}
			}

			start := time.Now()
			rsp := newStatusResponseWriter(w)
			next.ServeHTTP(rsp, req)

			attrSet := attribute.NewSet(append(attr, semconv.HTTPResponseStatusCode(rsp.statusCode))...)
			callCnt.Add(req.Context(), 1, metric.WithAttributeSet(attrSet))
			callDur.Record(req.Context(), time.Since(start).Seconds(), metric.WithAttributeSet(attrSet))
		})
	}
}

func passthroughMW(next http.Handler) http.Handler {
	return next
}

/*
statusResponseWriter is a http.ResponseWriter wrapper which allows to capture
status code of the response.
*/
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (mw *statusResponseWriter) WriteHeader(statusCode int) {
	mw.ResponseWriter.WriteHeader(statusCode)

	if !mw.headerWritten {
		mw.statusCode = statusCode
		mw.headerWritten = true
	}
}

func (mw *statusResponseWriter) Write(b []byte) (int, error) {
	mw.headerWritten = true
	return mw.ResponseWriter.Write(b)
}

func (mw *statusResponseWriter) Unwrap() http.ResponseWriter {
	return mw.ResponseWriter
}
