// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/vm"
)

// RecorderFactory makes a fresh recorder per execution.
type RecorderFactory func(level TraceLevel) *Recorder

// Provider is a runtime.EngineProvider creating one tracing engine per
// execution request.
type Provider struct {
	level   TraceLevel
	factory RecorderFactory
	fixed   *Recorder
	seq     *Sequence

	engines []*Engine
}

// NewProvider creates a provider that makes a recorder per engine. All
// recorders share one sequence, so event order is global to the provider.
func NewProvider(level TraceLevel, factory RecorderFactory) *Provider {
	p := &Provider{level: level, factory: factory, seq: &Sequence{}}
	if p.factory == nil {
		p.factory = func(level TraceLevel) *Recorder { return NewRecorder(level, p.seq) }
	}
	return p
}

// NewFixedProvider creates a provider whose engines all write into recorder.
func NewFixedProvider(level TraceLevel, recorder *Recorder) *Provider {
	return &Provider{level: level, fixed: recorder}
}

// Level returns the default trace level.
func (p *Provider) Level() TraceLevel { return p.level }

// NewEngine implements runtime.EngineProvider. A diagnostic already
// attached to cfg that carries a hook lends its recorder, so re-entrant
// creation does not allocate an orphaned recorder.
func (p *Provider) NewEngine(cfg runtime.EngineConfig) (runtime.Executor, error) {
	var (
		recorder *Recorder
		shared   = true
	)
	if hook := findHook(cfg.Diagnostic); hook != nil {
		recorder = hook.Recorder()
	} else if p.fixed != nil {
		recorder = p.fixed
	} else {
		shared = false
		recorder = p.factory(p.level)
	}
	engine, err := NewEngine(recorder, p.level, vm.Config{
		Trigger:    cfg.Trigger,
		Store:      cfg.Store,
		GasLimit:   cfg.GasLimit,
		Diagnostic: cfg.Diagnostic,
	})
	if err != nil {
		return nil, err
	}
	engine.shared = shared
	p.engines = append(p.engines, engine)
	return engine, nil
}

// Engines returns the engines created so far, in creation order.
func (p *Provider) Engines() []*Engine {
	return append([]*Engine(nil), p.engines...)
}

// Recorders returns the distinct recorders of created engines, in creation order.
func (p *Provider) Recorders() []*Recorder {
	var out []*Recorder
	seen := make(map[*Recorder]bool)
	for _, e := range p.engines {
		if !seen[e.recorder] {
			seen[e.recorder] = true
			out = append(out, e.recorder)
		}
	}
	return out
}
