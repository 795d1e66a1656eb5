package iptables

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Parse reads iptables-save text and builds the full RuleSet. Any failure is
// fatal for the parse as a whole: either the returned RuleSet reflects the
// complete input, or a ParseError with the offending line number comes back
// and no partial model is exposed.
func Parse(r io.Reader, logger *slog.Logger) (*RuleSet, error) {
	rs := New(logger)

	var current *Table

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "*"):
			if current != nil {
				return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("table %q: %w", current.Name, ErrMissingCommit)}
			}
			name := line[1:]
			if rs.Table(name) != nil {
				return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("table %q: %w", name, ErrDuplicateTable)}
			}
			current = &Table{Name: name}
			rs.Tables = append(rs.Tables, current)

		case line == "COMMIT":
			if current == nil {
				return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("COMMIT outside any table")}
			}
			current = nil

		case strings.HasPrefix(line, ":"):
			if current == nil {
				return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("chain declaration outside any table")}
			}
			if err := parseChainLine(current, line); err != nil {
				return nil, &ParseError{Line: lineNo, Err: err}
			}

		default:
			if current == nil {
				return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("rule line outside any table")}
			}
			if err := parseRuleLine(current, line); err != nil {
				return nil, &ParseError{Line: lineNo, Err: err}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read save output: %w", err)
	}
	if current != nil {
		return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("table %q: %w", current.Name, ErrMissingCommit)}
	}

	rs.logger.Debug("parsed ruleset", slog.Int("tables", len(rs.Tables)), slog.Int("lines", lineNo))

	return rs, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(text string, logger *slog.Logger) (*RuleSet, error) {
	return Parse(strings.NewReader(text), logger)
}

// parseChainLine handles ":name policy [pkts:bytes]". The policy field is
// syntactically required even for user-defined chains, which write "-"; the
// parsed policy is persisted only on built-in chains, mirroring what
// iptables-restore accepts back.
func parseChainLine(table *Table, line string) error {
	fields := strings.Fields(line[1:])
	if len(fields) < 2 {
		return fmt.Errorf("chain declaration %q needs a name and a policy", line)
	}
	if len(fields) < 3 {
		return fmt.Errorf("chain %q: missing counters: %w", fields[0], ErrBadCounters)
	}

	name := fields[0]
	packets, bytes, err := parseCounters(fields[2])
	if err != nil {
		return fmt.Errorf("chain %q: %w", name, err)
	}

	chain := table.Chain(name)
	if chain == nil {
		chain = &Chain{Name: name}
		table.Chains = append(table.Chains, chain)
	} else {
		// Redeclaration resets the chain.
		chain.Policy = ""
		chain.Rules = nil
		chain.RawRules = nil
	}
	chain.Packets = packets
	chain.Bytes = bytes
	if IsBuiltinChain(table.Name, name) {
		if !validPolicy(fields[1]) {
			return fmt.Errorf("chain %q: invalid policy %q", name, fields[1])
		}
		chain.Policy = fields[1]
	}

	return nil
}

// parseRuleLine extracts an optional leading counter pair, tokenizes the
// remainder, and routes the rule into its destination chain.
func parseRuleLine(table *Table, line string) error {
	rest := line

	var counters *Counters
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return fmt.Errorf("unterminated counter pair: %w", ErrBadCounters)
		}
		packets, bytes, err := parseCounters(rest[:end+1])
		if err != nil {
			return err
		}
		counters = &Counters{Packets: packets, Bytes: bytes}
		rest = strings.TrimSpace(rest[end+1:])
	}

	rule, err := ParseRuleSpec(rest)
	if err != nil {
		return err
	}
	rule.Counters = counters

	if rule.Chain == "" {
		return fmt.Errorf("rule line missing -A destination chain")
	}
	chain := table.Chain(rule.Chain)
	if chain == nil {
		return fmt.Errorf("rule targets undeclared chain %q", rule.Chain)
	}

	chain.Rules = append(chain.Rules, rule)
	chain.RawRules = append(chain.RawRules, line)

	return nil
}

// parseCounters parses a "[pkts:bytes]" pair.
func parseCounters(s string) (uint64, uint64, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadCounters, s)
	}
	packetsPart, bytesPart, found := strings.Cut(s[1:len(s)-1], ":")
	if !found {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadCounters, s)
	}
	packets, err := strconv.ParseUint(packetsPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadCounters, s)
	}
	bytes, err := strconv.ParseUint(bytesPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadCounters, s)
	}
	return packets, bytes, nil
}
