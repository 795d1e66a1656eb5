package iptables

import (
	"log/slog"
)

// Policies accepted on built-in chains.
const (
	PolicyAccept = "ACCEPT"
	PolicyDrop   = "DROP"
	PolicyQueue  = "QUEUE"
	PolicyReturn = "RETURN"
)

// builtinChains maps each recognized table kind to its fixed built-in chain
// names. Table names outside this map are rejected by the mutation API.
var builtinChains = map[string][]string{
	"filter": {"INPUT", "FORWARD", "OUTPUT"},
	"nat":    {"PREROUTING", "INPUT", "OUTPUT", "POSTROUTING"},
	"mangle": {"PREROUTING", "INPUT", "FORWARD", "OUTPUT", "POSTROUTING"},
	"raw":    {"PREROUTING", "OUTPUT"},
}

// jumpOptionNames lists the equivalent spellings of the jump/goto target
// option as they appear after dash stripping.
var jumpOptionNames = []string{"j", "jump", "g", "goto"}

// KnownTable reports whether the table name is a recognized table kind.
func KnownTable(table string) bool {
	_, ok := builtinChains[table]
	return ok
}

// IsBuiltinChain reports whether chain is a built-in chain of the given table
// kind. Unknown table kinds have no built-in chains.
func IsBuiltinChain(table string, chain string) bool {
	for _, name := range builtinChains[table] {
		if name == chain {
			return true
		}
	}
	return false
}

func validPolicy(policy string) bool {
	switch policy {
	case PolicyAccept, PolicyDrop, PolicyQueue, PolicyReturn:
		return true
	}
	return false
}

// Option is a single rule option: a dash-stripped name, its value (possibly
// empty, possibly multi-word), and whether a standalone "!" preceded it.
type Option struct {
	Name    string
	Value   string
	Negated bool
}

// Counters is a packet/byte counter pair as written in bracketed form by
// iptables-save.
type Counters struct {
	Packets uint64
	Bytes   uint64
}

// Rule is one parsed rule line. Chain is the destination chain taken from the
// -A option; Modules aggregates every -m occurrence in encounter order;
// Options holds the remaining options in encounter order. Counters is nil
// when the source line carried no bracketed counter pair. A rule has no
// identity beyond its index within its chain.
type Rule struct {
	Chain    string
	Modules  []string
	Options  []Option
	Counters *Counters
}

// Option returns the value of the first option with the given name.
func (r *Rule) Option(name string) (string, bool) {
	for _, opt := range r.Options {
		if opt.Name == name {
			return opt.Value, true
		}
	}
	return "", false
}

// JumpTarget returns the chain name this rule transfers control to, checking
// every equivalent jump/goto spelling.
func (r *Rule) JumpTarget() (string, bool) {
	for _, name := range jumpOptionNames {
		if value, ok := r.Option(name); ok {
			return value, true
		}
	}
	return "", false
}

// Chain is a named, ordered rule sequence. Policy is set only on built-in
// chains; user-defined chains keep it empty and serialize with the "-"
// placeholder. RawRules caches the original source line per rule index for
// display. It is deliberately NOT resynchronized by structural edits and goes
// stale after any insert, remove, replace, or reorder; InvalidateRawRules is
// the explicit reset.
type Chain struct {
	Name     string
	Policy   string
	Packets  uint64
	Bytes    uint64
	Rules    []*Rule
	RawRules []string
}

// InvalidateRawRules drops the cached source lines.
func (c *Chain) InvalidateRawRules() {
	c.RawRules = nil
}

// Table is an ordered collection of chains under one table kind. Chain order
// follows first declaration and is preserved through serialization.
type Table struct {
	Name   string
	Chains []*Chain
}

// Chain returns the named chain, or nil if it is not present.
func (t *Table) Chain(name string) *Chain {
	for _, c := range t.Chains {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RuleSet is the root of the model: tables in first-seen source order. It is
// exclusively owned by one caller; nothing in this package locks.
type RuleSet struct {
	Tables []*Table

	logger *slog.Logger
}

// New returns an empty RuleSet. Mutations log diagnostics through the
// provided logger; nil falls back to slog.Default.
func New(logger *slog.Logger) *RuleSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleSet{logger: logger}
}

// Table returns the named table, or nil if it is not present.
func (rs *RuleSet) Table(name string) *Table {
	for _, t := range rs.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// RuleRef locates a rule by owning chain and index within that chain.
type RuleRef struct {
	Chain string
	Index int
}
