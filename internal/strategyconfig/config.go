package strategyconfig

import "time"

// ScoreKind selects how a tier is scored
type ScoreKind string

const (
	ScoreMomentum ScoreKind = "momentum"  // 가중 다기간 모멘텀 (13612W)
	ScoreSMARatio ScoreKind = "sma_ratio" // price / SMA - 1
)

// WeightingRule selects the TIER-SELECT branch
type WeightingRule string

const (
	RuleEqualTopK        WeightingRule = "equal_top_k"
	RuleBinaryBreadth    WeightingRule = "binary_breadth"
	RuleProportionalCash WeightingRule = "proportional_cash"
)

// MixedMode decides what a split canary vote does
type MixedMode string

const (
	MixedDefensive MixedMode = "defensive"
	MixedBlend     MixedMode = "blend"
)

// Config는 TAA 전략 변형 하나의 전체 설정 (생성 후 불변)
type Config struct {
	Meta                 Meta      `yaml:"meta" json:"meta"`
	MinimumHistoryMonths int       `yaml:"minimum_history_months" json:"minimum_history_months" default:"13" validate:"gte=1,lte=600"`
	Momentum             Momentum  `yaml:"momentum" json:"momentum"`
	SMA                  SMA       `yaml:"sma" json:"sma"`
	Canary               Canary    `yaml:"canary" json:"canary"`
	Offensive            Tier      `yaml:"offensive" json:"offensive"`
	Defensive            Tier      `yaml:"defensive" json:"defensive"`
	CashProxy            string    `yaml:"cash_proxy" json:"cash_proxy"`
	Weighting            Weighting `yaml:"weighting" json:"weighting"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version" default:"1.0.0"`
	Description string `yaml:"description" json:"description"`
}

// Momentum 가중 모멘텀 구간
type Momentum struct {
	Horizons []Horizon `yaml:"horizons" json:"horizons" default:"[{\"months\":1,\"weight\":12},{\"months\":3,\"weight\":4},{\"months\":6,\"weight\":2},{\"months\":12,\"weight\":1}]" validate:"min=1,dive"`
}

// Horizon is one trailing-month offset and its weight
type Horizon struct {
	Months int     `yaml:"months" json:"months" validate:"gte=1,lte=120"`
	Weight float64 `yaml:"weight" json:"weight" validate:"gt=0"`
}

// MaxMonths returns the longest horizon
func (m Momentum) MaxMonths() int {
	max := 0
	for _, h := range m.Horizons {
		if h.Months > max {
			max = h.Months
		}
	}
	return max
}

// SMA 이동평균 추세 점수
type SMA struct {
	Window         int  `yaml:"window" json:"window" default:"12" validate:"gte=1,lte=120"`
	IncludeCurrent bool `yaml:"include_current" json:"include_current"`
}

// Canary 카나리아 게이트
type Canary struct {
	Symbols []string  `yaml:"symbols" json:"symbols"`
	Score   ScoreKind `yaml:"score" json:"score" default:"momentum" validate:"oneof=momentum sma_ratio"`
	Mixed   MixedMode `yaml:"mixed" json:"mixed" default:"defensive" validate:"oneof=defensive blend"`
	Blend   Blend     `yaml:"blend" json:"blend"`
}

// Blend 혼합 신호 시 공격/방어 배분
type Blend struct {
	OffensiveFraction float64 `yaml:"offensive_fraction" json:"offensive_fraction"`
	OffensiveSelect   int     `yaml:"offensive_select" json:"offensive_select"`
	DefensiveSelect   int     `yaml:"defensive_select" json:"defensive_select"`
}

// Tier 공격/방어 자산군
type Tier struct {
	Symbols []string  `yaml:"symbols" json:"symbols"`
	Score   ScoreKind `yaml:"score" json:"score" default:"momentum" validate:"oneof=momentum sma_ratio"`
	Select  int       `yaml:"select" json:"select" validate:"gte=0"`

	// AbsoluteMomentum: 점수 > 0 인 자산만 선택, 빈 자리는 cash_proxy
	AbsoluteMomentum bool `yaml:"absolute_momentum" json:"absolute_momentum"`

	// Substitute: 추세 점수가 cash_proxy보다 낮으면 cash_proxy로 교체
	Substitute bool `yaml:"substitute" json:"substitute"`
}

// Weighting 비중 규칙
type Weighting struct {
	Rule             WeightingRule    `yaml:"rule" json:"rule" default:"equal_top_k" validate:"oneof=equal_top_k binary_breadth proportional_cash"`
	ProportionalCash ProportionalCash `yaml:"proportional_cash" json:"proportional_cash"`
}

// ProportionalCash PAA 현금 비중 규칙
type ProportionalCash struct {
	Increment   float64 `yaml:"increment" json:"increment"`
	Threshold   int     `yaml:"threshold" json:"threshold"`
	MaxFraction float64 `yaml:"max_fraction" json:"max_fraction" default:"1"`
}

// Universe returns every symbol the strategy reads, first-seen order
func (c *Config) Universe() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(symbols ...string) {
		for _, s := range symbols {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	add(c.Canary.Symbols...)
	add(c.Offensive.Symbols...)
	add(c.Defensive.Symbols...)
	add(c.CashProxy)
	return out
}

// UsesScore reports whether any populated tier is scored with kind
func (c *Config) UsesScore(kind ScoreKind) bool {
	if len(c.Canary.Symbols) > 0 && c.Canary.Score == kind {
		return true
	}
	if len(c.Offensive.Symbols) > 0 && c.Offensive.Score == kind {
		return true
	}
	return len(c.Defensive.Symbols) > 0 && c.Defensive.Score == kind
}

// HasCashProxy reports whether a fallback asset is configured
func (c *Config) HasCashProxy() bool {
	return c.CashProxy != ""
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
