package loader

import (
	"fmt"

	"modloader/core/logger"
	"modloader/core/module"

	"go.uber.org/zap"
)

// runtime is the module.Runtime handed to factories. Factories run on the
// loop, so Require reads the registry directly.
type runtime struct {
	id  string
	reg *module.Registry
	log *zap.Logger
}

func (r *runtime) ID() string { return r.id }

func (r *runtime) Require(id string) (any, bool) { return r.reg.Exports(id) }

func (r *runtime) Logger() *zap.Logger { return r.log }

// initialize runs every pending factory of the session, then reports either
// the requested exports or every errored module.
func (l *Loader) initialize(s *session) {
	l.initModules(s.id, s.mods)

	for _, m := range s.mods {
		if m.Status == module.Error {
			l.fail(s, "init")
			return
		}
	}

	exports := make([]any, len(s.requested))
	for i, id := range s.requested {
		exports[i], _ = l.reg.Exports(id)
	}
	l.finish(s, exports, nil, nil)
}

// initModules walks mods in resolver order, where every dependency precedes
// its dependents. A dependency placed after its dependent closes a cycle;
// it is bound as nil and initialized when its own turn comes.
func (l *Loader) initModules(sessionID string, mods []*module.Module) {
	log := logger.WithSession(l.log, sessionID)
	position := make(map[string]int, len(mods))
	for i, m := range mods {
		position[m.ID] = i
	}

	for i, m := range mods {
		if m.Status != module.Loaded {
			continue
		}

		requires := m.Requires()
		deps := make([]any, len(requires))
		poisoned := ""
		for j, id := range requires {
			dep := l.reg.Get(id)
			switch {
			case dep.Status == module.Initialized:
				deps[j], _ = dep.Exports()
			case dep.Status == module.Error:
				poisoned = id
			case position[id] >= i:
				log.Warn("Dependency cycle, binding nil exports",
					zap.String("module", m.ID),
					zap.String("dependency", id),
				)
			default:
				poisoned = id
			}
			if poisoned != "" {
				break
			}
		}
		if poisoned != "" {
			l.failModule(m, DependencyPoisoned, fmt.Errorf("%w: %s", ErrDependencyFailed, poisoned))
			continue
		}

		exports, err := l.callFactory(m, deps)
		if err == nil {
			err = m.Initialize(exports)
		}
		if err != nil {
			l.failModule(m, InitFailure, err)
			continue
		}
		log.Debug("Module initialized", zap.String("module", m.ID))
	}
}

func (l *Loader) callFactory(m *module.Module, deps []any) (exports any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, r)
		}
	}()
	rt := &runtime{
		id:  m.ID,
		reg: l.reg,
		log: l.log.With(zap.String("module", m.ID)),
	}
	return m.Factory()(rt, deps)
}
