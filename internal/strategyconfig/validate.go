package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,15}$`)
	structRules   = newStructValidator()
)

func newStructValidator() *validator.Validate {
	v := validator.New()
	// 에러 필드명을 YAML 키로 표시
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Field rules (validator tags) ===
	if err := structRules.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{trimNamespace(fe.Namespace()), describeTag(fe)}
		}
		return fmt.Errorf("validate strategy: %w", err)
	}

	// === Meta ===
	if strings.TrimSpace(cfg.Meta.StrategyID) != cfg.Meta.StrategyID {
		return ValidationError{"meta.strategy_id", "must not have surrounding whitespace"}
	}

	// === Momentum ===
	seenH := make(map[int]bool)
	for i, h := range cfg.Momentum.Horizons {
		if seenH[h.Months] {
			return ValidationError{fmt.Sprintf("momentum.horizons[%d].months", i), fmt.Sprintf("duplicate horizon %d", h.Months)}
		}
		seenH[h.Months] = true
	}

	// === Symbols ===
	if err := validateSymbols("canary.symbols", cfg.Canary.Symbols); err != nil {
		return err
	}
	if len(cfg.Offensive.Symbols) == 0 {
		return ValidationError{"offensive.symbols", "required"}
	}
	if err := validateSymbols("offensive.symbols", cfg.Offensive.Symbols); err != nil {
		return err
	}
	if err := validateSymbols("defensive.symbols", cfg.Defensive.Symbols); err != nil {
		return err
	}
	if cfg.HasCashProxy() && !tickerPattern.MatchString(cfg.CashProxy) {
		return ValidationError{"cash_proxy", fmt.Sprintf("invalid ticker %q", cfg.CashProxy)}
	}

	// === Canary gate ===
	if len(cfg.Canary.Symbols) > 0 {
		if len(cfg.Defensive.Symbols) == 0 {
			return ValidationError{"defensive.symbols", "required when canary is set"}
		}
		if err := validateSelect("defensive.select", cfg.Defensive.Select, len(cfg.Defensive.Symbols)); err != nil {
			return err
		}
	}

	if cfg.Canary.Mixed == MixedBlend {
		if len(cfg.Canary.Symbols) < 2 {
			return ValidationError{"canary.mixed", "blend requires at least 2 canary symbols"}
		}
		b := cfg.Canary.Blend
		if b.OffensiveFraction <= 0 || b.OffensiveFraction >= 1 {
			return ValidationError{"canary.blend.offensive_fraction", "must be in (0, 1)"}
		}
		if err := validateSelect("canary.blend.offensive_select", b.OffensiveSelect, len(cfg.Offensive.Symbols)); err != nil {
			return err
		}
		if err := validateSelect("canary.blend.defensive_select", b.DefensiveSelect, len(cfg.Defensive.Symbols)); err != nil {
			return err
		}
	}

	// === Weighting ===
	switch cfg.Weighting.Rule {
	case RuleEqualTopK:
		if err := validateSelect("offensive.select", cfg.Offensive.Select, len(cfg.Offensive.Symbols)); err != nil {
			return err
		}

	case RuleBinaryBreadth:
		if len(cfg.Canary.Symbols) > 0 {
			return ValidationError{"weighting.rule", "binary_breadth does not use a canary gate"}
		}
		if cfg.Offensive.Score != ScoreSMARatio {
			return ValidationError{"offensive.score", "binary_breadth requires sma_ratio"}
		}

	case RuleProportionalCash:
		if len(cfg.Canary.Symbols) > 0 {
			return ValidationError{"weighting.rule", "proportional_cash does not use a canary gate"}
		}
		if err := validateSelect("offensive.select", cfg.Offensive.Select, len(cfg.Offensive.Symbols)); err != nil {
			return err
		}
		pc := cfg.Weighting.ProportionalCash
		if pc.Increment <= 0 || pc.Increment > 1 || math.IsNaN(pc.Increment) {
			return ValidationError{"weighting.proportional_cash.increment", "must be in (0, 1]"}
		}
		if pc.Threshold < 1 || pc.Threshold > len(cfg.Offensive.Symbols) {
			return ValidationError{"weighting.proportional_cash.threshold", fmt.Sprintf("must be in [1, %d]", len(cfg.Offensive.Symbols))}
		}
		if pc.MaxFraction <= 0 || pc.MaxFraction > 1 {
			return ValidationError{"weighting.proportional_cash.max_fraction", "must be in (0, 1]"}
		}
	}

	// === Cash proxy ===
	// 빈 선택(EmptyUniverse) 또는 대체가 가능한 구성은 cash_proxy 필수
	if !cfg.HasCashProxy() {
		switch {
		case cfg.Offensive.AbsoluteMomentum:
			return ValidationError{"cash_proxy", "required by offensive.absolute_momentum"}
		case cfg.Defensive.AbsoluteMomentum:
			return ValidationError{"cash_proxy", "required by defensive.absolute_momentum"}
		case cfg.Defensive.Substitute:
			return ValidationError{"cash_proxy", "required by defensive.substitute"}
		case cfg.Weighting.Rule == RuleBinaryBreadth:
			return ValidationError{"cash_proxy", "required by binary_breadth"}
		case cfg.Weighting.Rule == RuleProportionalCash:
			return ValidationError{"cash_proxy", "required by proportional_cash"}
		}
	}
	if cfg.Offensive.Substitute {
		return ValidationError{"offensive.substitute", "only the defensive tier substitutes"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 카나리아 2개 이하: 혼합 신호 판정이 거칠어짐
	if n := len(cfg.Canary.Symbols); n > 0 && n <= 2 {
		warnings = append(warnings, Warning{
			Code:    "SMALL_CANARY",
			Message: fmt.Sprintf("canary has %d symbols: mixed regime is a coarse signal", n),
		})
	}

	// 최소 이력이 점수 구간보다 짧으면 점수 구간이 실제 창 크기를 결정
	if span := cfg.Momentum.MaxMonths() + 1; cfg.UsesScore(ScoreMomentum) && cfg.MinimumHistoryMonths < span {
		warnings = append(warnings, Warning{
			Code:    "SHORT_HISTORY",
			Message: fmt.Sprintf("minimum_history_months=%d < momentum span %d: span governs the window", cfg.MinimumHistoryMonths, span),
		})
	}

	// 전체 선택: 순위가 의미 없음
	if cfg.Weighting.Rule == RuleEqualTopK && cfg.Offensive.Select == len(cfg.Offensive.Symbols) && len(cfg.Offensive.Symbols) > 1 {
		warnings = append(warnings, Warning{
			Code:    "NO_ROTATION",
			Message: "offensive.select equals tier size: ranking never changes holdings",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateSymbols(field string, symbols []string) error {
	seen := make(map[string]bool, len(symbols))
	for i, s := range symbols {
		if !tickerPattern.MatchString(s) {
			return ValidationError{fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("invalid ticker %q", s)}
		}
		if seen[s] {
			return ValidationError{fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("duplicate symbol %s", s)}
		}
		seen[s] = true
	}
	return nil
}

func validateSelect(field string, n, size int) error {
	if n < 1 || n > size {
		return ValidationError{field, fmt.Sprintf("must be in [1, %d], got %d", size, n)}
	}
	return nil
}

// trimNamespace "Config.canary.score" → "canary.score"
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())
	}
}
