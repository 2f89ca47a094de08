// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"fmt"

	"github.com/miniBamboo/statetrace/vm"
)

// Composite fans lifecycle callbacks out to its members in registration
// order. A panicking member is logged and skipped; the others still run.
type Composite struct {
	members []vm.Diagnostic
}

// NewComposite creates a composite of the non-nil members. Nested
// composites are flattened.
func NewComposite(members ...vm.Diagnostic) *Composite {
	c := &Composite{}
	for _, m := range members {
		switch d := m.(type) {
		case nil:
		case *Composite:
			c.members = append(c.members, d.members...)
		default:
			c.members = append(c.members, d)
		}
	}
	return c
}

// Members returns the members in registration order.
func (c *Composite) Members() []vm.Diagnostic {
	return append([]vm.Diagnostic(nil), c.members...)
}

func (c *Composite) each(callback string, fn func(d vm.Diagnostic)) {
	for i, m := range c.members {
		func() {
			defer func() {
				if e := recover(); e != nil {
					log.Warn("diagnostic member failed", "callback", callback, "member", i, "type", fmt.Sprintf("%T", m), "err", e)
				}
			}()
			fn(m)
		}()
	}
}

// Initialized implements vm.Diagnostic.
func (c *Composite) Initialized(engine *vm.Engine) {
	c.each("Initialized", func(d vm.Diagnostic) { d.Initialized(engine) })
}

// ContextLoaded implements vm.Diagnostic.
func (c *Composite) ContextLoaded(ctx *vm.ExecutionContext) {
	c.each("ContextLoaded", func(d vm.Diagnostic) { d.ContextLoaded(ctx) })
}

// ContextUnloaded implements vm.Diagnostic.
func (c *Composite) ContextUnloaded(ctx *vm.ExecutionContext) {
	c.each("ContextUnloaded", func(d vm.Diagnostic) { d.ContextUnloaded(ctx) })
}

// PreExecuteInstruction implements vm.Diagnostic.
func (c *Composite) PreExecuteInstruction(instr vm.Instruction) {
	c.each("PreExecuteInstruction", func(d vm.Diagnostic) { d.PreExecuteInstruction(instr) })
}

// PostExecuteInstruction implements vm.Diagnostic.
func (c *Composite) PostExecuteInstruction(instr vm.Instruction) {
	c.each("PostExecuteInstruction", func(d vm.Diagnostic) { d.PostExecuteInstruction(instr) })
}

// Disposed implements vm.Diagnostic.
func (c *Composite) Disposed() {
	c.each("Disposed", func(d vm.Diagnostic) { d.Disposed() })
}

// findHook returns the first Hook reachable from d.
func findHook(d vm.Diagnostic) *Hook {
	switch v := d.(type) {
	case *Hook:
		return v
	case *Composite:
		for _, m := range v.members {
			if h := findHook(m); h != nil {
				return h
			}
		}
	}
	return nil
}
