// Package matching pairs system lines with extract lines.
//
// Matching runs in two passes over the system lines, ordered by relevant date
// and then input position:
//
//  1. one extract line per system line, same amount within epsilon, date inside
//     the window, closest date first;
//  2. two or more extract lines per system line whose amounts add up to it,
//     smallest combination first, then the one closest in time.
//
// Whatever is left is reported as unmatched. The computation has no side
// effects and is fully determined by its input.
package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/domain"
)

// Defaults bounding the combinatorial pass.
const (
	DefaultMaxCombination = 4
	DefaultMaxCandidates  = 20
)

// Options configures a matcher run.
type Options struct {
	WindowDays     int
	CutDate        time.Time
	DateBasis      domain.DateBasis
	MaxCombination int
	MaxCandidates  int
}

func (o Options) withDefaults() Options {
	if o.MaxCombination < 2 {
		o.MaxCombination = DefaultMaxCombination
	}
	if o.MaxCandidates < o.MaxCombination {
		o.MaxCandidates = DefaultMaxCandidates
	}
	if !o.DateBasis.IsValid() {
		o.DateBasis = domain.DateBasisDue
	}
	return o
}

// Stats describes how a result was reached.
type Stats struct {
	ExactMatches        int
	CombinationMatches  int
	CombinationsChecked int
}

// Result partitions the input lines.
type Result struct {
	Matches          []domain.Match
	UnmatchedExtract []string
	UnmatchedSystem  []domain.UnmatchedSystem
	Stats            Stats
}

type candidate struct {
	idx      int
	amount   decimal.Decimal
	delta    int
	absDelta int
}

// Match runs both passes. Excluded extract lines are ignored entirely.
func Match(extract []domain.ExtractLine, system []domain.SystemLine, opts Options) Result {
	opts = opts.withDefaults()

	m := &matcher{
		opts:     opts,
		extract:  extract,
		system:   system,
		consumed: make([]bool, len(extract)),
		matched:  make([]*domain.Match, len(system)),
	}

	order := m.systemOrder()
	for _, si := range order {
		m.exact(si)
	}
	for _, si := range order {
		if m.matched[si] == nil {
			m.combination(si)
		}
	}

	return m.result()
}

type matcher struct {
	opts     Options
	extract  []domain.ExtractLine
	system   []domain.SystemLine
	consumed []bool
	matched  []*domain.Match
	stats    Stats
}

// systemOrder sorts by relevant date ascending with unknown dates last, then
// by input position.
func (m *matcher) systemOrder() []int {
	order := make([]int, len(m.system))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		da := m.system[order[a]].RelevantDate(m.opts.DateBasis)
		db := m.system[order[b]].RelevantDate(m.opts.DateBasis)
		switch {
		case da == nil && db == nil:
			return order[a] < order[b]
		case da == nil:
			return false
		case db == nil:
			return true
		case !da.Equal(*db):
			return da.Before(*db)
		default:
			return order[a] < order[b]
		}
	})
	return order
}

// window lists unconsumed extract lines dated within the window of the system
// line, in input order.
func (m *matcher) window(si int) []candidate {
	relevant := m.system[si].RelevantDate(m.opts.DateBasis)
	if relevant == nil {
		return nil
	}

	var out []candidate
	for ei, e := range m.extract {
		if m.consumed[ei] || e.Excluded || e.Date == nil {
			continue
		}
		delta := domain.DaysBetween(*relevant, *e.Date)
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		if abs > m.opts.WindowDays {
			continue
		}
		out = append(out, candidate{idx: ei, amount: e.Amount, delta: delta, absDelta: abs})
	}
	return out
}

func (m *matcher) exact(si int) {
	target := m.system[si].Amount

	best := -1
	var bestCand candidate
	for _, c := range m.window(si) {
		if !domain.WithinEpsilon(c.amount, target) {
			continue
		}
		if best == -1 || c.absDelta < bestCand.absDelta {
			best = c.idx
			bestCand = c
		}
	}
	if best == -1 {
		return
	}

	m.consumed[best] = true
	m.matched[si] = &domain.Match{
		SystemLineID:   m.system[si].ID,
		ExtractLineIDs: []string{m.extract[best].ID},
		DeltaDays:      bestCand.delta,
	}
	m.stats.ExactMatches++
}

func (m *matcher) combination(si int) {
	pool := m.window(si)
	if len(pool) < 2 {
		return
	}
	if len(pool) > m.opts.MaxCandidates {
		sort.SliceStable(pool, func(a, b int) bool {
			if pool[a].absDelta != pool[b].absDelta {
				return pool[a].absDelta < pool[b].absDelta
			}
			return pool[a].idx < pool[b].idx
		})
		pool = pool[:m.opts.MaxCandidates]
		sort.Slice(pool, func(a, b int) bool { return pool[a].idx < pool[b].idx })
	}

	s := &search{pool: pool, target: m.system[si].Amount}
	maxK := m.opts.MaxCombination
	if maxK > len(pool) {
		maxK = len(pool)
	}
	for k := 2; k <= maxK && s.best == nil; k++ {
		s.run(k)
	}
	m.stats.CombinationsChecked += s.checked
	if s.best == nil {
		return
	}

	ids := make([]string, 0, len(s.best))
	closest := pool[s.best[0]]
	for _, p := range s.best {
		c := pool[p]
		m.consumed[c.idx] = true
		ids = append(ids, m.extract[c.idx].ID)
		if c.absDelta < closest.absDelta {
			closest = c
		}
	}

	m.matched[si] = &domain.Match{
		SystemLineID:   m.system[si].ID,
		ExtractLineIDs: ids,
		DeltaDays:      closest.delta,
	}
	m.stats.CombinationMatches++
}

// search enumerates k-subsets of the pool in lexicographic order and keeps the
// first one with the lowest total date distance.
type search struct {
	pool     []candidate
	target   decimal.Decimal
	k        int
	current  []int
	best     []int
	bestCost int
	checked  int
}

func (s *search) run(k int) {
	s.k = k
	s.current = make([]int, k)
	s.walk(0, 0, decimal.Zero, 0)
}

func (s *search) walk(start, depth int, sum decimal.Decimal, cost int) {
	if s.best != nil && cost >= s.bestCost {
		return
	}
	if depth == s.k {
		s.checked++
		if domain.WithinEpsilon(sum, s.target) {
			s.best = append([]int(nil), s.current...)
			s.bestCost = cost
		}
		return
	}
	for i := start; i <= len(s.pool)-(s.k-depth); i++ {
		s.current[depth] = i
		s.walk(i+1, depth+1, sum.Add(s.pool[i].amount), cost+s.pool[i].absDelta)
	}
}

func (m *matcher) result() Result {
	res := Result{
		Matches:          make([]domain.Match, 0),
		UnmatchedExtract: make([]string, 0),
		UnmatchedSystem:  make([]domain.UnmatchedSystem, 0),
		Stats:            m.stats,
	}

	for si, match := range m.matched {
		if match != nil {
			res.Matches = append(res.Matches, *match)
			continue
		}
		s := m.system[si]
		res.UnmatchedSystem = append(res.UnmatchedSystem, domain.UnmatchedSystem{
			SystemLineID: s.ID,
			Status:       domain.ClassifyUnmatched(s.RelevantDate(m.opts.DateBasis), m.opts.CutDate),
		})
	}

	for ei, e := range m.extract {
		if !e.Excluded && !m.consumed[ei] {
			res.UnmatchedExtract = append(res.UnmatchedExtract, e.ID)
		}
	}

	return res
}
