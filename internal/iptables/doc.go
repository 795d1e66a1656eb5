// Package iptables models rule-sets in the text format exchanged with
// iptables-save and iptables-restore. A RuleSet is parsed once from save
// output, edited in place through the chain and rule mutation methods, and
// rendered back to restore-compatible text. The package never validates
// iptables option semantics; it is strictly concerned with save-format
// structure and with keeping jump references between rules and chains
// consistent.
package iptables
