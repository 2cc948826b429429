package matching

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankrecon/internal/domain"
)

func day(s string) *time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func opts(window int, cut string) Options {
	return Options{WindowDays: window, CutDate: *day(cut), DateBasis: domain.DateBasisDue}
}

func TestExactMatchWithinWindow(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-11")}}

	res := Match(extract, system, opts(2, "2024-02-01"))

	require.Len(t, res.Matches, 1)
	assert.Equal(t, domain.Match{SystemLineID: "s1", ExtractLineIDs: []string{"e1"}, DeltaDays: 1}, res.Matches[0])
	assert.Empty(t, res.UnmatchedExtract)
	assert.Empty(t, res.UnmatchedSystem)
	assert.Equal(t, 1, res.Stats.ExactMatches)
}

func TestCombinationMatchesSumWithinWindow(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("150"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{
		{ID: "a", Amount: amt("90"), Date: day("2024-01-12")},
		{ID: "b", Amount: amt("60"), Date: day("2024-01-09")},
	}

	res := Match(extract, system, opts(3, "2024-02-01"))

	require.Len(t, res.Matches, 1)
	assert.Equal(t, []string{"a", "b"}, res.Matches[0].ExtractLineIDs)
	assert.Equal(t, -1, res.Matches[0].DeltaDays, "delta of the date-closest contributor")
	assert.Equal(t, 1, res.Stats.CombinationMatches)
}

func TestUnmatchedSystemIsOverdueOrDeferred(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{
		{ID: "overdue", Amount: amt("200"), DueDate: day("2024-01-01")},
		{ID: "deferred", Amount: amt("200"), DueDate: day("2024-03-01")},
		{ID: "nodate", Amount: amt("200")},
		{ID: "oncut", Amount: amt("200"), DueDate: day("2024-02-01")},
	}

	res := Match(nil, system, opts(2, "2024-02-01"))

	got := map[string]domain.UnmatchedStatus{}
	for _, u := range res.UnmatchedSystem {
		got[u.SystemLineID] = u.Status
	}
	assert.Equal(t, map[string]domain.UnmatchedStatus{
		"overdue":  domain.UnmatchedOverdue,
		"deferred": domain.UnmatchedDeferred,
		"nodate":   domain.UnmatchedDeferred,
		"oncut":    domain.UnmatchedOverdue,
	}, got)
}

func TestExcludedLineIsIgnored(t *testing.T) {
	t.Parallel()

	terms := []string{domain.NormalizeConcept("comision")}
	extract := []domain.ExtractLine{
		{ID: "fee", Concept: "Comisión mensual", Amount: amt("5"), Date: day("2024-01-10")},
	}
	extract[0].Excluded = domain.IsConceptExcluded(extract[0].Concept, terms)
	system := []domain.SystemLine{{ID: "s1", Amount: amt("5"), DueDate: day("2024-01-10")}}

	res := Match(extract, system, opts(2, "2024-02-01"))

	require.True(t, extract[0].Excluded)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.UnmatchedExtract)
	require.Len(t, res.UnmatchedSystem, 1)
}

func TestExactPassPrefersClosestThenLowestIndex(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}

	t.Run("closest date", func(t *testing.T) {
		extract := []domain.ExtractLine{
			{ID: "far", Amount: amt("100"), Date: day("2024-01-13")},
			{ID: "near", Amount: amt("100.01"), Date: day("2024-01-09")},
		}
		res := Match(extract, system, opts(5, "2024-02-01"))
		require.Len(t, res.Matches, 1)
		assert.Equal(t, []string{"near"}, res.Matches[0].ExtractLineIDs)
		assert.Equal(t, -1, res.Matches[0].DeltaDays)
	})

	t.Run("tie goes to lowest index", func(t *testing.T) {
		extract := []domain.ExtractLine{
			{ID: "after", Amount: amt("100"), Date: day("2024-01-12")},
			{ID: "before", Amount: amt("100"), Date: day("2024-01-08")},
		}
		res := Match(extract, system, opts(5, "2024-02-01"))
		require.Len(t, res.Matches, 1)
		assert.Equal(t, []string{"after"}, res.Matches[0].ExtractLineIDs)
	})
}

func TestWindowBoundaries(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}

	inside := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-12")}}
	assert.Len(t, Match(inside, system, opts(2, "2024-02-01")).Matches, 1, "window is inclusive")

	outside := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-13")}}
	assert.Empty(t, Match(outside, system, opts(2, "2024-02-01")).Matches)

	nodate := []domain.ExtractLine{{ID: "e1", Amount: amt("100")}}
	res := Match(nodate, system, opts(30, "2024-02-01"))
	assert.Empty(t, res.Matches, "null extract date never window-matches")
	assert.Equal(t, []string{"e1"}, res.UnmatchedExtract)

	zero := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-10")}}
	assert.Len(t, Match(zero, system, opts(0, "2024-02-01")).Matches, 1, "window 0 allows same day")
}

func TestNullSystemDateNeverMatches(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), IssueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-10")}}

	res := Match(extract, system, opts(5, "2024-02-01"))
	assert.Empty(t, res.Matches)
	require.Len(t, res.UnmatchedSystem, 1)
	assert.Equal(t, domain.UnmatchedDeferred, res.UnmatchedSystem[0].Status)

	issueBasis := opts(5, "2024-02-01")
	issueBasis.DateBasis = domain.DateBasisIssue
	assert.Len(t, Match(extract, system, issueBasis).Matches, 1)
}

func TestCombinationPrefersSmallestCardinality(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{
		{ID: "a", Amount: amt("20"), Date: day("2024-01-10")},
		{ID: "b", Amount: amt("30"), Date: day("2024-01-10")},
		{ID: "c", Amount: amt("50"), Date: day("2024-01-10")},
		{ID: "d", Amount: amt("70"), Date: day("2024-01-12")},
	}

	res := Match(extract, system, opts(3, "2024-02-01"))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, []string{"b", "d"}, res.Matches[0].ExtractLineIDs)
}

func TestCombinationPrefersSmallestSpread(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{
		{ID: "a", Amount: amt("40"), Date: day("2024-01-13")},
		{ID: "b", Amount: amt("60"), Date: day("2024-01-13")},
		{ID: "c", Amount: amt("40"), Date: day("2024-01-10")},
		{ID: "d", Amount: amt("60"), Date: day("2024-01-11")},
	}

	res := Match(extract, system, opts(3, "2024-02-01"))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, []string{"c", "d"}, res.Matches[0].ExtractLineIDs)
	assert.Equal(t, 0, res.Matches[0].DeltaDays)
	assert.Equal(t, []string{"a", "b"}, res.UnmatchedExtract)
}

func TestCombinationHandlesMixedSigns(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("100"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{
		{ID: "gross", Amount: amt("105.50"), Date: day("2024-01-10")},
		{ID: "fee", Amount: amt("-5.49"), Date: day("2024-01-10")},
	}

	res := Match(extract, system, opts(1, "2024-02-01"))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, []string{"gross", "fee"}, res.Matches[0].ExtractLineIDs)
}

func TestCombinationRespectsMaxSize(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("50"), DueDate: day("2024-01-10")}}
	var extract []domain.ExtractLine
	for i := 0; i < 5; i++ {
		extract = append(extract, domain.ExtractLine{ID: fmt.Sprintf("e%d", i), Amount: amt("10"), Date: day("2024-01-10")})
	}

	assert.Empty(t, Match(extract, system, opts(1, "2024-02-01")).Matches, "five lines exceed the default bound of four")

	wide := opts(1, "2024-02-01")
	wide.MaxCombination = 5
	assert.Len(t, Match(extract, system, wide).Matches, 1)
}

func TestCandidatePoolKeepsClosestLines(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{{ID: "s1", Amount: amt("30"), DueDate: day("2024-01-10")}}
	extract := []domain.ExtractLine{
		{ID: "far1", Amount: amt("10"), Date: day("2024-01-15")},
		{ID: "far2", Amount: amt("20"), Date: day("2024-01-15")},
		{ID: "n1", Amount: amt("11"), Date: day("2024-01-10")},
		{ID: "n2", Amount: amt("12"), Date: day("2024-01-10")},
	}

	o := opts(5, "2024-02-01")
	o.MaxCombination = 2
	o.MaxCandidates = 2
	res := Match(extract, system, o)
	assert.Empty(t, res.Matches, "far lines fall outside the capped pool")
}

func TestSystemOrderDecidesContention(t *testing.T) {
	t.Parallel()

	system := []domain.SystemLine{
		{ID: "late", Amount: amt("100"), DueDate: day("2024-01-12")},
		{ID: "early", Amount: amt("100"), DueDate: day("2024-01-10")},
	}
	extract := []domain.ExtractLine{{ID: "e1", Amount: amt("100"), Date: day("2024-01-11")}}

	res := Match(extract, system, opts(2, "2024-02-01"))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "early", res.Matches[0].SystemLineID)
}

func randomInput(r *rand.Rand) ([]domain.ExtractLine, []domain.SystemLine) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var system []domain.SystemLine
	var extract []domain.ExtractLine

	for i := 0; i < 40; i++ {
		d := base.AddDate(0, 0, r.Intn(40))
		a := decimal.New(int64(r.Intn(50000)+100), -2)
		s := domain.SystemLine{ID: fmt.Sprintf("s%d", i), Position: i, Amount: a, DueDate: &d}
		if r.Intn(10) == 0 {
			s.DueDate = nil
		}
		system = append(system, s)

		switch r.Intn(3) {
		case 0:
			ed := d.AddDate(0, 0, r.Intn(5)-2)
			extract = append(extract, domain.ExtractLine{ID: fmt.Sprintf("e%d", len(extract)), Amount: a, Date: &ed})
		case 1:
			part := decimal.New(int64(r.Intn(int(a.Mul(decimal.NewFromInt(100)).IntPart()))), -2)
			ed := d.AddDate(0, 0, r.Intn(3))
			extract = append(extract,
				domain.ExtractLine{ID: fmt.Sprintf("e%d", len(extract)), Amount: part, Date: &ed},
				domain.ExtractLine{ID: fmt.Sprintf("e%d", len(extract)+1), Amount: a.Sub(part), Date: &ed},
			)
		}
	}
	for i := 0; i < 15; i++ {
		d := base.AddDate(0, 0, r.Intn(40))
		extract = append(extract, domain.ExtractLine{
			ID:       fmt.Sprintf("noise%d", i),
			Amount:   decimal.New(int64(r.Intn(90000)-45000), -2),
			Date:     &d,
			Excluded: r.Intn(5) == 0,
		})
	}
	for i := range extract {
		extract[i].Position = i
	}
	return extract, system
}

func TestMatcherProperties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 20; iter++ {
		extract, system := randomInput(r)
		o := opts(3, "2024-01-20")

		first := Match(extract, system, o)
		second := Match(extract, system, o)
		require.Equal(t, first, second, "matcher must be deterministic")

		extractByID := map[string]domain.ExtractLine{}
		for _, e := range extract {
			extractByID[e.ID] = e
		}
		systemByID := map[string]domain.SystemLine{}
		for _, s := range system {
			systemByID[s.ID] = s
		}

		seenExtract := map[string]int{}
		seenSystem := map[string]int{}
		for _, m := range first.Matches {
			seenSystem[m.SystemLineID]++
			sum := decimal.Zero
			for _, id := range m.ExtractLineIDs {
				seenExtract[id]++
				sum = sum.Add(extractByID[id].Amount)
			}
			require.True(t, domain.WithinEpsilon(sum, systemByID[m.SystemLineID].Amount), "amount invariant on %s", m.SystemLineID)
			require.LessOrEqual(t, len(m.ExtractLineIDs), DefaultMaxCombination)
		}
		for _, id := range first.UnmatchedExtract {
			seenExtract[id]++
		}
		for _, u := range first.UnmatchedSystem {
			seenSystem[u.SystemLineID]++
			rd := systemByID[u.SystemLineID].DueDate
			if rd != nil {
				require.Equal(t, !rd.After(o.CutDate), u.Status == domain.UnmatchedOverdue)
			} else {
				require.Equal(t, domain.UnmatchedDeferred, u.Status)
			}
		}

		for _, e := range extract {
			if e.Excluded {
				require.Zero(t, seenExtract[e.ID], "excluded line %s must not appear", e.ID)
			} else {
				require.Equal(t, 1, seenExtract[e.ID], "extract line %s appears once", e.ID)
			}
		}
		for _, s := range system {
			require.Equal(t, 1, seenSystem[s.ID], "system line %s appears once", s.ID)
		}
	}
}
