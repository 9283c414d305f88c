package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentType      = "Content-Type"
	ApplicationJson  = "application/json"
	ApplicationCbor  = "application/cbor"
	ApplicationOctet = "application/octet-stream"
)

type (
	ErrorResponse struct {
		Message string `json:"message"`
	}

	ResponseWriter struct {
		LogErr func(err error)
	}
)

var ErrNotFound = errors.New("not found")

func (rw *ResponseWriter) logError(err error) {
	if rw.LogErr != nil {
		rw.LogErr(err)
	}
}

func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, data any) {
	w.Header().Set(ContentType, ApplicationJson)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rw.logError(fmt.Errorf("failed to encode response data as json: %w", err))
	}
}

func (rw *ResponseWriter) WriteCborResponse(w http.ResponseWriter, data any) {
	w.Header().Set(ContentType, ApplicationCbor)
	if err := cbor.NewEncoder(w).Encode(data); err != nil {
		rw.logError(fmt.Errorf("failed to encode response data as cbor: %w", err))
	}
}

func (rw *ResponseWriter) WriteErrorResponse(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		rw.ErrorResponse(w, http.StatusNotFound, err)
		return
	}
	rw.ErrorResponse(w, http.StatusInternalServerError, err)
	rw.logError(err)
}

func (rw *ResponseWriter) ErrorResponse(w http.ResponseWriter, code int, err error) {
	w.Header().Set(ContentType, ApplicationJson)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()}); err != nil {
		rw.logError(fmt.Errorf("failed to encode error response as json: %w", err))
	}
}

/*
Do sends the request and decodes response body into "data" according to the
Content-Type of the response. Any other status than "okStatus" is an error.
*/
func Do(client *http.Client, req *http.Request, data any, okStatus int) error {
	rsp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != okStatus {
		return DecodeErrorResponse(rsp)
	}
	switch ct := rsp.Header.Get(ContentType); {
	case strings.HasPrefix(ct, ApplicationCbor):
		err = cbor.NewDecoder(rsp.Body).Decode(data)
	case strings.HasPrefix(ct, ApplicationJson):
		err = json.NewDecoder(rsp.Body).Decode(data)
	default:
		return fmt.Errorf("unsupported response content type %q", ct)
	}
	if err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// DecodeErrorResponse builds error from non-success response, message of ErrorResponse is used when present.
func DecodeErrorResponse(rsp *http.Response) error {
	b, err := io.ReadAll(io.LimitReader(rsp.Body, 4096))
	if err != nil {
		return fmt.Errorf("unexpected response status %s, reading body: %w", rsp.Status, err)
	}
	var er ErrorResponse
	if err := json.Unmarshal(b, &er); err == nil && er.Message != "" {
		return fmt.Errorf("unexpected response status %s: %s", rsp.Status, er.Message)
	}
	return fmt.Errorf("unexpected response status %s: %s", rsp.Status, bytes.TrimSpace(b))
}

// BaseURL adds default "http://" scheme when the address doesn't have one.
func BaseURL(addr string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		return "http://" + addr
	}
	return addr
}
