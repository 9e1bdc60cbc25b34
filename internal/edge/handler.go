package edge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/compactconnect/apps/edge/internal/headers"
	"github.com/compactconnect/apps/edge/internal/metrics"
)

var ErrNoRecords = errors.New("cloudfront event has no records")

// Injector is the part of headers.Injector the handler needs.
type Injector interface {
	Inject(host string, existing map[string][]headers.Header) (map[string][]headers.Header, headers.Result)
}

type Handler struct {
	injector Injector
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(injector Injector, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{injector: injector, logger: logger, metrics: m}
}

// Handle returns the event's response with security headers attached. If the
// headers cannot be built the original response goes out untouched.
func (h *Handler) Handle(ctx context.Context, event Event) (Response, error) {
	if len(event.Records) == 0 {
		return Response{}, ErrNoRecords
	}
	cf := event.Records[0].CF
	requestID := invocationID(ctx, cf.Config)

	out, result, err := h.inject(cf)
	if err != nil {
		h.metrics.InjectionFailed()
		h.logger.Error("header_injection_failed",
			"error", err,
			"host", cf.Request.Host(),
			"request_id", requestID,
		)
		return cf.Response, nil
	}

	h.logger.Info("edge_response",
		"host", cf.Request.Host(),
		"environment", result.Resolution.Environment.Name,
		"fallback", result.Resolution.Fallback,
		"status", cf.Response.Status,
		"request_id", requestID,
	)
	return out, nil
}

func (h *Handler) inject(cf CloudFront) (resp Response, result headers.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic building headers: %v", r)
		}
	}()

	resp = cf.Response
	merged, result := h.injector.Inject(cf.Request.Host(), cf.Response.Headers)
	resp.Headers = merged
	return resp, result, nil
}

func invocationID(ctx context.Context, cfg Config) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if cfg.RequestID != "" {
		return cfg.RequestID
	}
	return uuid.NewString()
}
