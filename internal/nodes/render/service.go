package render

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/metrics"
	"outputrocks-nodes/internal/common/observability"
	"outputrocks-nodes/internal/host"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxResponseBytes = 10 << 20

type ServiceDependencies struct {
	Logger        logger.Logger
	Observability *observability.Observability
}

type Service struct {
	variant Variant
	config  *Config
	logger  logger.Logger
	obs     *observability.Observability
}

func NewService(deps ServiceDependencies, variant Variant, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		variant: variant,
		config:  config,
		logger:  log,
		obs:     deps.Observability,
	}
}

// BuildRequest reads the parameters of one item and builds the request body.
func (s *Service) BuildRequest(fns host.ExecuteFunctions, itemIndex int) (*RenderRequest, error) {
	params, err := s.readParameters(fns, itemIndex)
	if err != nil {
		return nil, err
	}

	req := &RenderRequest{
		Format:  params[ParamFormat],
		Webhook: params[ParamWebhook],
	}
	if s.variant.Email {
		req.EmailTemplate = params[ParamEmailTemplate]
		req.EmailServer = params[ParamEmailServer]
	} else {
		req.Template = params[ParamTemplate]
	}

	if err := json.Unmarshal([]byte(params[ParamData]), &req.Data); err != nil {
		return nil, errors.NewParseError(ParamData, err)
	}

	// metadata is sent when there is a base or the user supplied any,
	// even if the merge leaves it empty.
	var metadata map[string]interface{}
	if s.variant.Resumable && params[ParamWebhookWaitingURL] != "" {
		metadata = map[string]interface{}{
			ParamWebhookWaitingURL: s.resumeURL(params[ParamWebhookWaitingURL]),
		}
	}
	if raw := params[ParamMetadata]; raw != "" {
		var user map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, errors.NewParseError(ParamMetadata, err)
		}
		if metadata == nil {
			metadata = make(map[string]interface{}, len(user))
		}
		for k, v := range user {
			metadata[k] = v
		}
	}
	req.Metadata = metadata

	if err := validateRequest(s.variant, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) readParameters(fns host.ExecuteFunctions, itemIndex int) (map[string]string, error) {
	names := []string{ParamFormat, ParamWebhook, ParamMetadata, ParamData}
	if s.variant.Email {
		names = append(names, ParamEmailTemplate, ParamEmailServer)
	} else {
		names = append(names, ParamTemplate)
	}
	if s.variant.Resumable {
		names = append(names, ParamWebhookWaitingURL)
	}

	params := make(map[string]string, len(names))
	for _, name := range names {
		value, err := fns.NodeParameter(name, itemIndex)
		if err != nil {
			return nil, errors.NewInvalidParameterError(err.Error())
		}
		params[name] = value
	}
	return params, nil
}

// resumeURL points the resume URL at ResumeURLBase, keeping its last segment.
func (s *Service) resumeURL(resumeURL string) string {
	if s.config.ResumeURLBase == "" {
		return resumeURL
	}
	token := resumeURL[strings.LastIndex(resumeURL, "/")+1:]
	return strings.TrimRight(s.config.ResumeURLBase, "/") + "/" + token
}

// Send posts the request to the rendering service and returns the response
// as an item payload.
func (s *Service) Send(ctx context.Context, fns host.ExecuteFunctions, req *RenderRequest) (map[string]interface{}, error) {
	ctx, span := s.obs.StartSpan(ctx, "render.send",
		attribute.String("node", s.variant.Name),
		attribute.String("format", req.Format),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("encode render request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := fns.RequestWithAuthentication(ctx, CredentialType, httpReq)
	if err != nil {
		s.observe(start, "transport_error")
		span.SetStatus(codes.Error, err.Error())
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			return nil, stdErr
		}
		return nil, errors.NewUpstreamRequestError(0, "", err)
	}
	defer resp.Body.Close()

	s.observe(start, strconv.Itoa(resp.StatusCode))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewUpstreamRequestError(0, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		s.logger.Warn("rendering service rejected request", map[string]interface{}{
			"statusCode": resp.StatusCode,
			"node":       s.variant.Name,
		})
		return nil, errors.NewUpstreamRequestError(resp.StatusCode, truncate(string(raw), 512), nil)
	}

	var value interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, errors.NewUpstreamRequestError(resp.StatusCode, "response is not JSON", err)
		}
	}
	return host.ToObject(value), nil
}

func (s *Service) observe(start time.Time, status string) {
	metrics.RenderRequestDuration.WithLabelValues(s.variant.Name, status).Observe(time.Since(start).Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
