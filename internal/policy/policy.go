package policy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

var (
	// ErrEmptyUniverse 선택 가능한 자산 없음 (cash proxy로 복구)
	ErrEmptyUniverse = errors.New("empty universe")
	// ErrMissingScore 필요한 점수가 ScoreBook에 없음
	ErrMissingScore = errors.New("missing score")
	// ErrWeightSum Σweights ≠ 1 (내부 오류)
	ErrWeightSum = errors.New("weights do not sum to 1")
)

// Tier names used in DecisionRecord.Tiers
const (
	TierCanary    = "canary"
	TierOffensive = "offensive"
	TierDefensive = "defensive"
	TierTrend     = "trend" // 대체 판단용 SMA 비율
)

// Requirement is one (symbol, kind) score the policy reads
type Requirement struct {
	Symbol string
	Kind   strategyconfig.ScoreKind
}

// ScoreBook holds the scores of one month
type ScoreBook map[Requirement]float64

func (b ScoreBook) get(symbol string, kind strategyconfig.ScoreKind) (float64, error) {
	v, ok := b[Requirement{symbol, kind}]
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", symbol, kind, ErrMissingScore)
	}
	return v, nil
}

// Policy runs GATE-CHECK → TIER-SELECT → SUBSTITUTE for one strategy
// ⭐ SSOT: 월별 배분 결정 (순수 함수, 상태 없음)
type Policy struct {
	cfg      *strategyconfig.Config
	required []Requirement
}

// New creates a policy for a validated config
func New(cfg *strategyconfig.Config) (*Policy, error) {
	if err := strategyconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid strategy: %w", err)
	}
	p := &Policy{cfg: cfg}
	p.required = p.collectRequired()
	return p, nil
}

// Config returns the strategy the policy was built from
func (p *Policy) Config() *strategyconfig.Config {
	return p.cfg
}

// Required lists every score Decide may read, in declared order
func (p *Policy) Required() []Requirement {
	out := make([]Requirement, len(p.required))
	copy(out, p.required)
	return out
}

func (p *Policy) collectRequired() []Requirement {
	cfg := p.cfg
	seen := make(map[Requirement]bool)
	var out []Requirement
	add := func(kind strategyconfig.ScoreKind, symbols ...string) {
		for _, s := range symbols {
			r := Requirement{s, kind}
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}

	add(cfg.Canary.Score, cfg.Canary.Symbols...)
	add(cfg.Offensive.Score, cfg.Offensive.Symbols...)
	if p.usesDefensive() {
		add(cfg.Defensive.Score, cfg.Defensive.Symbols...)
	}
	if cfg.Defensive.Substitute {
		add(strategyconfig.ScoreSMARatio, cfg.Defensive.Symbols...)
		add(strategyconfig.ScoreSMARatio, cfg.CashProxy)
	}
	return out
}

func (p *Policy) usesDefensive() bool {
	return p.cfg.Weighting.Rule == strategyconfig.RuleEqualTopK && len(p.cfg.Canary.Symbols) > 0
}

// Decide produces the allocation for month from its scores
func (p *Policy) Decide(month time.Time, book ScoreBook) (contracts.DecisionRecord, error) {
	rec := contracts.DecisionRecord{
		Month: month,
		Label: month.Format(contracts.MonthLabelFormat),
	}

	tiers, err := p.tierScores(book)
	if err != nil {
		return rec, err
	}
	rec.Tiers = tiers

	var alloc *allocation
	switch p.cfg.Weighting.Rule {
	case strategyconfig.RuleBinaryBreadth:
		alloc, rec.Regime = p.binaryBreadth(tiers)
	case strategyconfig.RuleProportionalCash:
		alloc, rec.Regime = p.proportionalCash(tiers)
		if alloc.cash > 0 {
			rec.Cash = alloc.cash
			rec.CashSymbol = p.cfg.CashProxy
		}
	default:
		alloc, rec.Regime, err = p.equalTopK(tiers, book)
		if err != nil {
			return rec, err
		}
	}

	rec.Positions = alloc.positions()
	if !rec.Balanced() {
		return rec, fmt.Errorf("%s total=%.12f: %w", rec.Label, rec.TotalWeight(), ErrWeightSum)
	}
	return rec, nil
}

// tierScores copies tier scores out of the book in declared order
func (p *Policy) tierScores(book ScoreBook) ([]contracts.TierScores, error) {
	cfg := p.cfg
	var out []contracts.TierScores
	add := func(name string, kind strategyconfig.ScoreKind, symbols []string) error {
		ts := contracts.TierScores{Tier: name, Kind: string(kind), Scores: make([]contracts.SymbolScore, 0, len(symbols))}
		for _, s := range symbols {
			v, err := book.get(s, kind)
			if err != nil {
				return err
			}
			ts.Scores = append(ts.Scores, contracts.SymbolScore{Symbol: s, Score: v})
		}
		out = append(out, ts)
		return nil
	}

	if len(cfg.Canary.Symbols) > 0 {
		if err := add(TierCanary, cfg.Canary.Score, cfg.Canary.Symbols); err != nil {
			return nil, err
		}
	}
	if err := add(TierOffensive, cfg.Offensive.Score, cfg.Offensive.Symbols); err != nil {
		return nil, err
	}
	if p.usesDefensive() {
		if err := add(TierDefensive, cfg.Defensive.Score, cfg.Defensive.Symbols); err != nil {
			return nil, err
		}
	}
	if cfg.Defensive.Substitute {
		trend := appendUnique(cfg.Defensive.Symbols, cfg.CashProxy)
		if err := add(TierTrend, strategyconfig.ScoreSMARatio, trend); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// === GATE-CHECK ===

type gate int

const (
	gateOffensive gate = iota
	gateDefensive
	gateMixed
)

func (p *Policy) gate(tiers []contracts.TierScores) gate {
	canary := find(tiers, TierCanary)
	if canary == nil || len(canary.Scores) == 0 {
		return gateOffensive
	}

	positive, negative := 0, 0
	for _, s := range canary.Scores {
		switch {
		case s.Score > 0:
			positive++
		case s.Score < 0:
			negative++
		}
	}

	switch {
	case positive == len(canary.Scores):
		return gateOffensive
	case negative == len(canary.Scores):
		return gateDefensive
	case p.cfg.Canary.Mixed == strategyconfig.MixedBlend:
		return gateMixed
	default:
		// 단일 게이트: 모두 양수가 아니면 방어
		return gateDefensive
	}
}

// === TIER-SELECT ===

func (p *Policy) equalTopK(tiers []contracts.TierScores, book ScoreBook) (*allocation, contracts.Regime, error) {
	cfg := p.cfg
	alloc := newAllocation()

	switch p.gate(tiers) {
	case gateOffensive:
		p.pick(alloc, find(tiers, TierOffensive).Scores, cfg.Offensive, cfg.Offensive.Select, 1.0)
		return alloc, contracts.RegimeOffensive, nil

	case gateMixed:
		b := cfg.Canary.Blend
		p.pick(alloc, find(tiers, TierOffensive).Scores, cfg.Offensive, b.OffensiveSelect, b.OffensiveFraction)
		if err := p.defend(alloc, find(tiers, TierDefensive).Scores, b.DefensiveSelect, 1-b.OffensiveFraction, book); err != nil {
			return nil, "", err
		}
		return alloc, contracts.RegimeMixed, nil

	default:
		if err := p.defend(alloc, find(tiers, TierDefensive).Scores, cfg.Defensive.Select, 1.0, book); err != nil {
			return nil, "", err
		}
		return alloc, contracts.RegimeDefensive, nil
	}
}

// pick ranks a tier and gives budget/k to each of the top k
// absolute_momentum: 점수 <= 0 자리는 cash proxy로
func (p *Policy) pick(alloc *allocation, scores []contracts.SymbolScore, tier strategyconfig.Tier, k int, budget float64) {
	picked, err := topK(scores, k, tier.AbsoluteMomentum)
	each := budget / float64(k)
	if errors.Is(err, ErrEmptyUniverse) {
		alloc.add(p.cfg.CashProxy, budget)
		return
	}
	for _, s := range picked {
		alloc.add(s.Symbol, each)
	}
	if empty := k - len(picked); empty > 0 {
		alloc.add(p.cfg.CashProxy, each*float64(empty))
	}
}

// defend selects defensive assets and applies SUBSTITUTE
func (p *Policy) defend(alloc *allocation, scores []contracts.SymbolScore, k int, budget float64, book ScoreBook) error {
	cfg := p.cfg
	if !cfg.Defensive.Substitute {
		p.pick(alloc, scores, cfg.Defensive, k, budget)
		return nil
	}

	sub := newAllocation()
	p.pick(sub, scores, cfg.Defensive, k, budget)

	cashTrend, err := book.get(cfg.CashProxy, strategyconfig.ScoreSMARatio)
	if err != nil {
		return err
	}
	for _, sym := range sub.order {
		w := sub.weight[sym]
		if sym == cfg.CashProxy {
			alloc.add(sym, w)
			continue
		}
		trend, err := book.get(sym, strategyconfig.ScoreSMARatio)
		if err != nil {
			return err
		}
		if trend < cashTrend {
			alloc.add(cfg.CashProxy, w)
		} else {
			alloc.add(sym, w)
		}
	}
	return nil
}

func (p *Policy) binaryBreadth(tiers []contracts.TierScores) (*allocation, contracts.Regime) {
	alloc := newAllocation()
	var passed []string
	for _, s := range find(tiers, TierOffensive).Scores {
		if s.Score > 0 {
			passed = append(passed, s.Symbol)
		}
	}
	if len(passed) == 0 {
		alloc.add(p.cfg.CashProxy, 1.0)
		return alloc, contracts.RegimeCash
	}
	for _, sym := range passed {
		alloc.add(sym, 1.0/float64(len(passed)))
	}
	return alloc, contracts.RegimeBreadth
}

func (p *Policy) proportionalCash(tiers []contracts.TierScores) (*allocation, contracts.Regime) {
	cfg := p.cfg
	pc := cfg.Weighting.ProportionalCash
	alloc := newAllocation()
	scores := find(tiers, TierOffensive).Scores

	negative := 0
	for _, s := range scores {
		if s.Score < 0 {
			negative++
		}
	}

	if negative >= pc.Threshold {
		alloc.cash = 1.0
		return alloc, contracts.RegimeCash
	}

	cash := math.Min(float64(negative)*pc.Increment, pc.MaxFraction)
	if cash >= 1.0 {
		alloc.cash = 1.0
		return alloc, contracts.RegimeCash
	}
	alloc.cash = cash

	picked, _ := topK(scores, cfg.Offensive.Select, false)
	each := (1.0 - cash) / float64(len(picked))
	for _, s := range picked {
		alloc.add(s.Symbol, each)
	}
	return alloc, contracts.RegimeOffensive
}

// topK ranks by descending score; ties keep declared order
func topK(scores []contracts.SymbolScore, k int, positiveOnly bool) ([]contracts.SymbolScore, error) {
	ranked := make([]contracts.SymbolScore, 0, len(scores))
	for _, s := range scores {
		if positiveOnly && s.Score <= 0 {
			continue
		}
		ranked = append(ranked, s)
	}
	if len(ranked) == 0 {
		return nil, ErrEmptyUniverse
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// === allocation: 최초 삽입 순서 유지, 같은 종목은 누적 ===

type allocation struct {
	order  []string
	weight map[string]float64
	cash   float64
}

func newAllocation() *allocation {
	return &allocation{weight: make(map[string]float64)}
}

func (a *allocation) add(symbol string, w float64) {
	if w == 0 {
		return
	}
	if _, ok := a.weight[symbol]; !ok {
		a.order = append(a.order, symbol)
	}
	a.weight[symbol] += w
}

func (a *allocation) positions() []contracts.Allocation {
	out := make([]contracts.Allocation, 0, len(a.order))
	for _, s := range a.order {
		out = append(out, contracts.Allocation{Symbol: s, Weight: a.weight[s]})
	}
	return out
}

func find(tiers []contracts.TierScores, name string) *contracts.TierScores {
	for i := range tiers {
		if tiers[i].Tier == name {
			return &tiers[i]
		}
	}
	return nil
}

func appendUnique(symbols []string, extra string) []string {
	out := append([]string(nil), symbols...)
	for _, s := range symbols {
		if s == extra {
			return out
		}
	}
	return append(out, extra)
}
