// Package dataflow defines DataInfo, the envelope that carries one unit of
// data across a node boundary, and the name+type match predicate used to
// wire producers to consumers.
package dataflow

import (
	"github.com/google/uuid"

	"cex/typetag"
)

// DataInfo is the universal envelope for one unit of data crossing a node
// boundary. At least one of Value or Path must be set before a consumer
// reads it.
type DataInfo struct {
	ID    uuid.UUID
	Name  string
	Type  typetag.Tag
	Path  string // on-disk location, empty if purely in-memory
	Hash  string // hex sha256 of Path's contents, populated lazily
	Value any
}

// New creates a DataInfo with a fresh identity token.
func New(name string, typ typetag.Tag) DataInfo {
	return DataInfo{ID: uuid.New(), Name: name, Type: typ}
}

// WithPath returns a copy of d with Path set.
func (d DataInfo) WithPath(path string) DataInfo {
	d.Path = path
	return d
}

// WithValue returns a copy of d with Value set.
func (d DataInfo) WithValue(v any) DataInfo {
	d.Value = v
	return d
}

// WithHash returns a copy of d with Hash set.
func (d DataInfo) WithHash(hash string) DataInfo {
	d.Hash = hash
	return d
}

// HasValue reports whether d carries an in-memory value.
func (d DataInfo) HasValue() bool {
	return d.Value != nil
}

// HasPath reports whether d carries an on-disk location.
func (d DataInfo) HasPath() bool {
	return d.Path != ""
}

// Match scores how well a candidate DataInfo satisfies this required one,
// given the required parameter's alias list. Mirrors spec §4.7: name_matches
// iff candidate.Name is in the alias list; type_matches iff the types are
// equal or either side is Unknown.
type Match int

const (
	// MatchNone: neither name nor type matched.
	MatchNone Match = iota
	// MatchType: only the type matched.
	MatchType
	// MatchName: only the name matched.
	MatchName
	// MatchNameAndType: both name and type matched — a full, exact match.
	MatchNameAndType
)

// ScoreAgainst scores candidate against the required DataInfo d, using
// aliases as the set of acceptable names (typically [param name] or the
// node's declared alternates for that parameter).
func (d DataInfo) ScoreAgainst(candidate DataInfo, aliases []string) Match {
	nameMatches := contains(aliases, candidate.Name)
	typeMatches := d.Type.Matches(candidate.Type)

	switch {
	case nameMatches && typeMatches:
		return MatchNameAndType
	case nameMatches:
		return MatchName
	case typeMatches:
		return MatchType
	default:
		return MatchNone
	}
}

// IsExactMatch reports whether candidate exactly satisfies d (spec §4.7:
// "Exact match requires both"), used by the validator's reachability check.
func (d DataInfo) IsExactMatch(candidate DataInfo, aliases []string) bool {
	return d.ScoreAgainst(candidate, aliases) == MatchNameAndType
}

// BestMatch scans candidates for the highest-scoring match against the
// required DataInfo d. It returns the winning candidate, its score, and
// whether two or more candidates tied at that (positive) score — a tie at a
// positive score is an ambiguous resolution per spec §4.7.
func (d DataInfo) BestMatch(candidates []DataInfo, aliases []string) (best DataInfo, score Match, ambiguous bool) {
	score = MatchNone
	for _, candidate := range candidates {
		s := d.ScoreAgainst(candidate, aliases)
		if s == MatchNone {
			continue
		}
		switch {
		case s > score:
			best, score, ambiguous = candidate, s, false
		case s == score:
			ambiguous = true
		}
	}
	return best, score, ambiguous
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
