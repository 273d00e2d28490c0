package participant

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/saga"
)

const defaultInvokeTimeout = 30 * time.Second

// HTTPInvoker calls participant services over HTTP. Service names resolve to
// base URLs through a static routing table.
type HTTPInvoker struct {
	client   *http.Client
	baseURLs map[string]string
	logger   logger.Logger
}

func NewHTTPInvoker(baseURLs map[string]string, l logger.Logger) *HTTPInvoker {
	return &HTTPInvoker{
		client:   &http.Client{Timeout: defaultInvokeTimeout},
		baseURLs: baseURLs,
		logger:   l,
	}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	return h.call(ctx, req, req.Operation)
}

func (h *HTTPInvoker) Compensate(ctx context.Context, req Request) (Response, error) {
	return h.call(ctx, req, req.Operation)
}

func (h *HTTPInvoker) call(ctx context.Context, req Request, op saga.Operation) (Response, error) {
	baseURL, ok := h.baseURLs[req.ServiceName]
	if !ok {
		return Response{}, fmt.Errorf("no route for service %q", req.ServiceName)
	}

	form := url.Values{}
	for key, value := range op.Params {
		form.Set(key, value)
	}
	for key, value := range req.Payload {
		form.Set(key, value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(op.Method),
		strings.TrimRight(baseURL, "/")+op.Path, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request for service %q: %w", req.ServiceName, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("X-Saga-Id", req.SagaID)
	httpReq.Header.Set("X-Saga-Request-Id", req.RequestID)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("call to service %q failed: %w", req.ServiceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response from service %q: %w", req.ServiceName, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return Response{}, fmt.Errorf("service %q returned status %d: %s", req.ServiceName, resp.StatusCode, string(body))
	}

	h.logger.Info("Participant call succeeded",
		logger.Field{Key: "saga_id", Value: req.SagaID},
		logger.Field{Key: "request_id", Value: req.RequestID},
		logger.Field{Key: "service", Value: req.ServiceName})

	return Response{Body: string(body)}, nil
}
