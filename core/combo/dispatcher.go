package combo

import (
	"context"
	"fmt"
	"time"

	"modloader/core/manifest"
	"modloader/core/metrics"
	"modloader/core/module"

	"go.uber.org/zap"
)

// Payload is one manifest returned by a transport. An empty Path marks a
// combined YAML stream whose documents carry their own ids.
type Payload struct {
	Path string
	Body []byte
}

// Transport fetches the manifests of a request.
type Transport interface {
	Fetch(ctx context.Context, req Request) ([]Payload, error)
}

// Dispatcher plans fetches, runs them concurrently and turns the manifests
// into module definitions.
type Dispatcher struct {
	planner   *Planner
	transport Transport
	catalog   *manifest.Catalog
	log       *zap.Logger
	metrics   *metrics.Collector
	timeout   time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMetrics records fetch results on m.
func WithMetrics(m *metrics.Collector) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTimeout bounds every transport request.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(p *Planner, t Transport, c *manifest.Catalog, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		planner:   p,
		transport: t,
		catalog:   c,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts one fetch per planned request and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string, deliver func(module.Arrival)) {
	for _, req := range d.planner.Plan(ids) {
		go d.fetch(ctx, req, deliver)
	}
}

func (d *Dispatcher) fetch(ctx context.Context, req Request, deliver func(module.Arrival)) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := d.log.With(
		zap.String("package", req.Package),
		zap.String("url", req.URL),
		zap.Int("files", len(req.Paths)),
	)
	arrival := module.Arrival{Modules: req.Modules}

	payloads, err := d.transport.Fetch(ctx, req)
	if err != nil {
		log.Warn("Fetch failed", zap.Error(err))
		d.metrics.ObserveFetch(req.Package, "error")
		arrival.Err = fmt.Errorf("fetch %s: %w", req.URL, err)
		deliver(arrival)
		return
	}

	defs, err := d.decode(req, payloads)
	if err != nil {
		log.Warn("Manifest rejected", zap.Error(err))
		d.metrics.ObserveFetch(req.Package, "invalid")
		arrival.Err = err
		deliver(arrival)
		return
	}

	log.Debug("Fetch completed", zap.Int("definitions", len(defs)))
	d.metrics.ObserveFetch(req.Package, "ok")
	arrival.Definitions = defs
	deliver(arrival)
}

// decode builds definitions from payloads. A single-document manifest
// without an id takes the id of the path it was fetched from.
func (d *Dispatcher) decode(req Request, payloads []Payload) ([]module.Definition, error) {
	byPath := make(map[string]string, len(req.Paths))
	for i, p := range req.Paths {
		byPath[p] = req.Modules[i]
	}

	var defs []module.Definition
	for _, payload := range payloads {
		name := payload.Path
		if name == "" {
			name = req.URL
		}
		docs, err := manifest.Decode(name, payload.Body)
		if err != nil {
			return nil, err
		}
		if len(docs) == 1 && docs[0].ID == "" {
			docs[0].ID = byPath[payload.Path]
		}
		built, err := d.catalog.Definitions(docs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for i := range built {
			built[i].Package = d.planner.PackageOf(built[i].ID).Name
		}
		defs = append(defs, built...)
	}
	return defs, nil
}
