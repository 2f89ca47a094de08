// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package capture

import (
	"fmt"
	"strings"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/pmezard/go-difflib/difflib"
)

// MaxSamples bounds the keys listed per category in a report.
const MaxSamples = 10

// Report is the difference between the declared key set of a snapshot and
// the reads observed while replaying it.
type Report struct {
	Declared int
	Hits     int

	// NotRead were declared but never read.
	NotRead []statetrace.StorageKey
	// UnexpectedHits were read but not declared.
	UnexpectedHits []statetrace.StorageKey
	// Misses are lookups that found nothing.
	Misses []statetrace.StorageKey

	declared []statetrace.StorageKey
	hits     []statetrace.StorageKey
}

// Compare diffs declared against the hits and misses of session.
func Compare(declared []statetrace.StorageKey, session *Session) *Report {
	hits := session.Hits()
	declaredSet := make(map[string]bool, len(declared))
	for _, k := range declared {
		declaredSet[string(k.Encode())] = true
	}
	hitSet := make(map[string]bool, len(hits))
	for _, k := range hits {
		hitSet[string(k.Encode())] = true
	}

	r := &Report{
		Declared: len(declaredSet),
		Hits:     len(hits),
		Misses:   session.Misses(),
		hits:     hits,
	}
	seen := make(map[string]bool, len(declared))
	for _, k := range declared {
		enc := string(k.Encode())
		if seen[enc] {
			continue
		}
		seen[enc] = true
		r.declared = append(r.declared, k)
		if !hitSet[enc] {
			r.NotRead = append(r.NotRead, k)
		}
	}
	for _, k := range hits {
		if !declaredSet[string(k.Encode())] {
			r.UnexpectedHits = append(r.UnexpectedHits, k)
		}
	}
	sortKeys(r.declared)
	sortKeys(r.NotRead)
	return r
}

// Clean reports whether the snapshot was exactly the set of keys read.
func (r *Report) Clean() bool {
	return len(r.NotRead) == 0 && len(r.UnexpectedHits) == 0 && len(r.Misses) == 0
}

// String renders counts and up to MaxSamples keys per category.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "declared=%d read=%d notRead=%d unexpectedHits=%d misses=%d\n",
		r.Declared, r.Hits, len(r.NotRead), len(r.UnexpectedHits), len(r.Misses))
	writeSamples(&b, "not read", r.NotRead)
	writeSamples(&b, "unexpected hits", r.UnexpectedHits)
	writeSamples(&b, "misses", r.Misses)
	return b.String()
}

func writeSamples(b *strings.Builder, name string, keys []statetrace.StorageKey) {
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for i, k := range keys {
		if i == MaxSamples {
			fmt.Fprintf(b, "  ... %d more\n", len(keys)-MaxSamples)
			break
		}
		fmt.Fprintf(b, "  %v\n", k)
	}
}

// UnifiedDiff renders the declared key set against the keys read.
func (r *Report) UnifiedDiff() (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        keyLines(r.declared),
		B:        keyLines(r.hits),
		FromFile: "declared",
		ToFile:   "read",
		Context:  1,
	})
}

func keyLines(keys []statetrace.StorageKey) []string {
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k.String()+"\n")
	}
	return lines
}
