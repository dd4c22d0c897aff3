package ionapi

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// Execute runs one request against the ION gateway. A 401 reply triggers a
// forced context refresh and exactly one retry, unless the request or the
// broker configuration disables retrying.
func (b *Broker) Execute(ctx context.Context, req *model.IonRequest) (*model.IonResponse, error) {
	if req == nil || req.Source == "" {
		return nil, model.NewValidationError(model.FieldError{
			Field:   "source",
			Message: "source is required on ION requests",
		})
	}

	ionCtx, err := b.GetContext(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := b.send(ctx, req, ionCtx)
	if err != nil {
		b.metrics.RecordIONRequest("error", false)
		return nil, err
	}

	if resp.Status == 401 && b.retry && req.RetryAllowed() {
		b.logger.Info("ion request unauthorized, refreshing token and retrying",
			zap.String("url", req.URL))
		ionCtx, err = b.GetContext(ctx, true)
		if err != nil {
			return nil, err
		}
		resp, err = b.send(ctx, req, ionCtx)
		if err != nil {
			b.metrics.RecordIONRequest("error", true)
			return nil, err
		}
		resp.IsRetry = true
	}

	b.metrics.RecordIONRequest(statusClass(resp.Status), resp.IsRetry)
	return resp, nil
}

func (b *Broker) send(ctx context.Context, req *model.IonRequest, ionCtx *model.IonAPIContext) (*model.IonResponse, error) {
	headers := make(map[string]string, len(req.Headers)+3)
	for name, value := range req.Headers {
		headers[name] = value
	}
	headers[headerAuthorization] = "Bearer " + ionCtx.Token
	headers[headerPlatform] = b.platform
	headers[headerSource] = req.Source

	method := req.Method
	if method == "" {
		method = "GET"
	}

	resp, err := b.exec.Execute(ctx, &transport.Request{
		Method:  method,
		URL:     joinURL(ionCtx.BaseURL, req.URL),
		Headers: headers,
		Body:    string(req.Body),
	})
	if err != nil {
		return nil, err
	}
	return &model.IonResponse{
		Status:  resp.Status,
		Headers: resp.Headers,
		Body:    resp.Body,
	}, nil
}

// joinURL resolves the request address against the ION base. Absolute
// addresses pass through untouched.
func joinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "ok"
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500:
		return "server_error"
	default:
		return "other"
	}
}
