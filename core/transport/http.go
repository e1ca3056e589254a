package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modloader/core/combo"

	"github.com/gofiber/fiber/v2"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// HTTP fetches manifests from a combo server.
type HTTP struct {
	timeout time.Duration
	headers map[string]string
}

// NewHTTP creates an HTTP transport. A zero timeout relies on the context
// deadline alone.
func NewHTTP(timeout time.Duration, headers map[string]string) *HTTP {
	return &HTTP{timeout: timeout, headers: headers}
}

// Fetch issues one GET for req.URL. A combined response is a YAML stream;
// a single response belongs to the only path of the request.
func (h *HTTP) Fetch(ctx context.Context, req combo.Request) ([]combo.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := h.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(req.URL)
	for k, v := range h.headers {
		agent.Set(k, v)
	}
	if req.Charset != "" {
		agent.Set(fiber.HeaderAcceptCharset, req.Charset)
	}
	if req.Lang != "" {
		agent.Set(fiber.HeaderAcceptLanguage, req.Lang)
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w %d", ErrStatus, code)
	}

	if req.Combined {
		return []combo.Payload{{Body: body}}, nil
	}
	return []combo.Payload{{Path: req.Paths[0], Body: body}}, nil
}
