package loader

import (
	"fmt"
	"time"

	"modloader/core/logger"
	"modloader/core/module"

	"go.uber.org/zap"
)

// session is one Use call. Its fields are owned by the loop.
type session struct {
	id        string
	requested []string
	cb        Callbacks
	future    *Future
	started   time.Time

	mods     []*module.Module
	tries    int
	round    int
	unloaded map[string]struct{}
	waiting  map[string]struct{}
	timer    func()
	canceled bool
	done     bool
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer()
		s.timer = nil
	}
}

// start registers s and runs its first round.
func (l *Loader) start(s *session) {
	s.future.bind(l.loop.js)
	l.sessions[s.id] = s
	l.log.Debug("Session started", zap.String("session", s.id), zap.Strings("modules", s.requested))
	l.step(s)
}

// step runs one scheduler round for s.
func (l *Loader) step(s *session) {
	if s.done {
		return
	}
	log := logger.WithSession(l.log, s.id)
	if s.canceled {
		log.Debug("Session canceled")
		l.finish(s, nil, errCanceled, nil)
		return
	}

	s.tries++
	l.metrics.IncRound()
	s.mods = l.resolver.Normalize(s.requested)

	var unloaded []*module.Module
	failed := false
	for _, m := range s.mods {
		switch {
		case m.Status == module.Error:
			failed = true
		case m.Status.Pending():
			if _, fetching := l.inflight[m.ID]; !fetching {
				if err := module.ValidateID(m.ID); err != nil {
					l.failModule(m, FetchFailure, err)
					failed = true
					continue
				}
			}
			unloaded = append(unloaded, m)
		}
	}

	if failed {
		l.fail(s, "load")
		return
	}
	if len(unloaded) == 0 {
		l.initialize(s)
		return
	}

	if s.tries > l.maxRounds || (s.tries > 1 && !l.progressed(s)) {
		log.Warn("Session made no progress",
			zap.Int("round", s.tries),
			zap.Int("unloaded", len(unloaded)),
		)
		for _, m := range unloaded {
			l.failModule(m, Stuck, fmt.Errorf("%w after %d rounds", ErrNoProgress, s.tries))
		}
		for _, m := range unloaded {
			l.settle(m.ID)
		}
		l.fail(s, "load")
		return
	}

	s.unloaded = make(map[string]struct{}, len(unloaded))
	s.waiting = make(map[string]struct{}, len(unloaded))
	var toFetch []string
	for _, m := range unloaded {
		s.unloaded[m.ID] = struct{}{}
		s.waiting[m.ID] = struct{}{}
		if f, ok := l.inflight[m.ID]; ok {
			f.waiters = append(f.waiters, s)
			continue
		}
		if m.Status == module.Undefined {
			if err := m.SetStatus(module.Loading); err != nil {
				log.Error("Failed to mark module loading", zap.Error(err))
			}
		}
		l.inflight[m.ID] = &fetch{waiters: []*session{s}}
		l.metrics.AddInFlight(1)
		toFetch = append(toFetch, m.ID)
	}

	s.round++
	round := s.round
	timer, err := l.loop.After(l.roundTimeout, func() { l.expire(s, round) })
	if err != nil {
		log.Error("Failed to arm round timer", zap.Error(err))
	}
	s.timer = timer

	log.Debug("Session round",
		zap.Int("round", s.tries),
		zap.Int("unloaded", len(unloaded)),
		zap.Strings("dispatch", toFetch),
	)
	if len(toFetch) > 0 {
		l.dispatcher.Dispatch(l.ctx, toFetch, func(a module.Arrival) {
			l.loop.Submit(func() { l.arrive(a) })
		})
	}
}

// progressed reports whether any module unloaded in the previous round
// has resolved since.
func (l *Loader) progressed(s *session) bool {
	for id := range s.unloaded {
		m, ok := l.reg.Lookup(id)
		if !ok || !m.Status.Pending() {
			return true
		}
	}
	return false
}

// arrive applies the outcome of one fetch request.
func (l *Loader) arrive(a module.Arrival) {
	for _, def := range a.Definitions {
		if _, err := l.reg.Define(def); err != nil {
			l.log.Warn("Ignoring invalid definition", zap.String("module", def.ID), zap.Error(err))
		}
	}

	for _, raw := range a.Modules {
		id := module.NormalizeID(raw)
		if _, ok := l.inflight[id]; !ok {
			continue
		}
		m := l.reg.Get(id)
		switch {
		case !m.Status.Pending():
		case m.HasFactory():
			// Invalidated module whose fetch did not redefine it.
			if err := m.SetStatus(module.Loaded); err != nil {
				l.log.Error("Failed to restore module", zap.Error(err))
			}
		case a.Err != nil:
			l.failModule(m, FetchFailure, a.Err)
		default:
			l.failModule(m, Stuck, ErrNotDefined)
		}
		l.settle(id)
	}
}

// expire fails the modules a round is still waiting on once its timer fires.
func (l *Loader) expire(s *session, round int) {
	if s.done || s.round != round || len(s.waiting) == 0 {
		return
	}
	l.log.Warn("Session round timed out",
		zap.String("session", s.id),
		zap.Duration("timeout", l.roundTimeout),
		zap.Int("waiting", len(s.waiting)),
	)
	ids := make([]string, 0, len(s.waiting))
	for id := range s.waiting {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if m, ok := l.reg.Lookup(id); ok && m.Status.Pending() {
			l.failModule(m, Stuck, fmt.Errorf("%w after %s", ErrFetchTimeout, l.roundTimeout))
		}
		l.settle(id)
	}
}

// settle ends the in-flight fetch of id and resumes sessions that have
// nothing left to wait on.
func (l *Loader) settle(id string) {
	f, ok := l.inflight[id]
	if !ok {
		return
	}
	delete(l.inflight, id)
	l.metrics.AddInFlight(-1)

	for _, s := range f.waiters {
		if s.done {
			continue
		}
		if _, waiting := s.waiting[id]; !waiting {
			continue
		}
		delete(s.waiting, id)
		if len(s.waiting) == 0 {
			s.stopTimer()
			l.loop.Submit(func() { l.step(s) })
		}
	}
}

func (l *Loader) failModule(m *module.Module, kind ErrorKind, err error) {
	if ferr := m.Fail(kind.String(), err); ferr != nil {
		l.log.Error("Failed to mark module errored", zap.String("module", m.ID), zap.Error(ferr))
		return
	}
	l.metrics.IncFailure(kind.String())
	l.log.Warn("Module failed",
		zap.String("module", m.ID),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
}

// fail reports every errored module of the session.
func (l *Loader) fail(s *session, action string) {
	var failures []Failure
	for _, m := range s.mods {
		if m.Status == module.Error {
			failures = append(failures, failureOf(m))
		}
	}
	l.finish(s, nil, &LoadError{Action: action, Failures: failures}, failures)
}

// finish resolves the session future and hands the callbacks off the loop.
func (l *Loader) finish(s *session, exports []any, err error, failures []Failure) {
	if s.done {
		return
	}
	s.done = true
	s.stopTimer()
	delete(l.sessions, s.id)

	result := "success"
	switch {
	case err == errCanceled:
		result = "canceled"
	case err != nil:
		result = "error"
	}
	elapsed := time.Since(s.started)
	l.metrics.ObserveSession(result, elapsed)

	log := logger.WithSession(l.log, s.id)
	if err != nil && err != errCanceled {
		log.Warn("Session failed", zap.Int("rounds", s.tries), zap.Error(err))
	} else {
		log.Debug("Session finished", zap.String("result", result), zap.Int("rounds", s.tries), zap.Duration("elapsed", elapsed))
	}

	s.future.complete(exports, err)
	if err == errCanceled {
		return
	}
	go l.deliver(s, exports, failures, err)
}
