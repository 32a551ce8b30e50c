package dataflow

import (
	"testing"

	"cex/internal/tester"
	"cex/typetag"
)

func TestScoreAgainst(t *testing.T) {
	required := New("result", typetag.Int)

	exact := New("result", typetag.Int)
	tester.Eq(t, required.ScoreAgainst(exact, []string{"result"}), MatchNameAndType, "expected name and type match")

	typeOnly := New("other", typetag.Int)
	tester.Eq(t, required.ScoreAgainst(typeOnly, []string{"result"}), MatchType, "expected type-only match")

	nameOnly := New("result", typetag.String)
	tester.Eq(t, required.ScoreAgainst(nameOnly, []string{"result"}), MatchName, "expected name-only match")

	none := New("other", typetag.String)
	tester.Eq(t, required.ScoreAgainst(none, []string{"result"}), MatchNone, "expected no match")
}

func TestBestMatchPicksHighestScore(t *testing.T) {
	required := New("v", typetag.Int)
	candidates := []DataInfo{
		New("x", typetag.Int),    // type only
		New("v", typetag.Int),    // name and type: should win
		New("y", typetag.String), // nothing
	}
	best, score, ambiguous := required.BestMatch(candidates, []string{"v"})
	tester.Eq(t, score, MatchNameAndType, "expected unambiguous full match")
	tester.False(t, ambiguous, "expected unambiguous full match")
	tester.Eq(t, best.Name, "v", "expected the exact-name candidate to win")
}

func TestBestMatchTieIsAmbiguous(t *testing.T) {
	required := New("v", typetag.Int)
	candidates := []DataInfo{
		New("left", typetag.Int),
		New("right", typetag.Int),
	}
	_, score, ambiguous := required.BestMatch(candidates, []string{"v"})
	tester.Eq(t, score, MatchType, "expected an ambiguous type-only tie")
	tester.True(t, ambiguous, "expected an ambiguous type-only tie")
}

func TestBestMatchNoneWhenNothingMatches(t *testing.T) {
	required := New("v", typetag.Int)
	candidates := []DataInfo{New("x", typetag.String)}
	_, score, ambiguous := required.BestMatch(candidates, []string{"v"})
	tester.Eq(t, score, MatchNone, "expected MatchNone and no ambiguity")
	tester.False(t, ambiguous, "expected MatchNone and no ambiguity")
}
