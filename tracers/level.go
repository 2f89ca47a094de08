// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"strings"

	"github.com/pkg/errors"
)

// TraceLevel selects which event kinds a recorder accepts.
type TraceLevel uint8

// Trace levels.
const (
	LevelNone          TraceLevel = 0
	LevelSyscalls      TraceLevel = 1 << 0
	LevelStorage       TraceLevel = 1 << 1
	LevelNotifications TraceLevel = 1 << 2
	LevelContractCalls TraceLevel = 1 << 3
	LevelOpCodes       TraceLevel = 1 << 4
	LevelAll                      = LevelSyscalls | LevelStorage | LevelNotifications | LevelContractCalls | LevelOpCodes
)

var levelNames = []struct {
	level TraceLevel
	name  string
}{
	{LevelSyscalls, "syscalls"},
	{LevelStorage, "storage"},
	{LevelNotifications, "notifications"},
	{LevelContractCalls, "calls"},
	{LevelOpCodes, "opcodes"},
}

// Has returns whether all bits of flag are set.
func (l TraceLevel) Has(flag TraceLevel) bool {
	return flag != LevelNone && l&flag == flag
}

// String implements stringer.
func (l TraceLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelAll:
		return "all"
	}
	var parts []string
	for _, n := range levelNames {
		if l.Has(n.level) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTraceLevel parses "none", "all" or names joined by '|' or ','.
func ParseTraceLevel(s string) (TraceLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none":
		return LevelNone, nil
	case "all":
		return LevelAll, nil
	}
	var level TraceLevel
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range levelNames {
			if n.name == part {
				level |= n.level
				found = true
				break
			}
		}
		if !found {
			return LevelNone, errors.Errorf("unknown trace level %q", part)
		}
	}
	return level, nil
}
