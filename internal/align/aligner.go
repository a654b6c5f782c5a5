package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// Point is one de-duplicated daily close
type Point struct {
	Date  time.Time
	Close float64
}

// Dedupe collapses same-day records into their mean close, ascending by date
// 잘못된 종가(<= 0, NaN, Inf)는 호출 전에 걸러야 함
func Dedupe(obs []contracts.Observation) []Point {
	type acc struct {
		sum float64
		n   int
	}
	byDay := make(map[time.Time]*acc)
	for _, o := range obs {
		day := calendarDay(o.Date)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.sum += o.Close
		a.n++
	}

	points := make([]Point, 0, len(byDay))
	for day, a := range byDay {
		points = append(points, Point{Date: day, Close: a.sum / float64(a.n)})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// Build aligns per-symbol observations onto a month-end grid
// today 기준 진행 중인 달은 제외 (마지막으로 완료된 달까지만)
func Build(series map[string][]contracts.Observation, symbols []string, today time.Time) (*Matrix, error) {
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			return nil, fmt.Errorf("duplicate symbol %s", s)
		}
		seen[s] = true
	}

	cutoff := monthStart(today) // 이 시점 이전의 달만 포함
	dropped := make(map[string]int)
	points := make(map[string][]Point, len(symbols))

	var first, last time.Time
	for _, s := range symbols {
		valid := make([]contracts.Observation, 0, len(series[s]))
		for _, o := range series[s] {
			if !validClose(o.Close) {
				dropped[s]++
				continue
			}
			if !calendarDay(o.Date).Before(cutoff) {
				continue
			}
			valid = append(valid, o)
		}
		pts := Dedupe(valid)
		points[s] = pts
		if len(pts) == 0 {
			continue
		}
		if first.IsZero() || pts[0].Date.Before(first) {
			first = pts[0].Date
		}
		if last.IsZero() || pts[len(pts)-1].Date.After(last) {
			last = pts[len(pts)-1].Date
		}
	}

	if first.IsZero() {
		m := newMatrix(symbols, nil)
		m.Dropped = dropped
		return m, nil
	}

	n := monthsBetween(first, last) + 1
	months := make([]time.Time, n)
	for i := range months {
		months[i] = monthEnd(first, i)
	}

	m := newMatrix(symbols, months)
	m.Dropped = dropped
	for _, s := range symbols {
		// 오름차순이므로 마지막 값이 그 달의 월말 종가
		for _, p := range points[s] {
			set(m, monthsBetween(first, p.Date), s, p.Close)
		}
	}

	return m, nil
}

func validClose(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func calendarDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	y, mo, _ := t.Date()
	return time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
}

// monthEnd returns the last day of the month offset months after base's month
func monthEnd(base time.Time, offset int) time.Time {
	y, mo, _ := base.Date()
	return time.Date(y, mo+time.Month(offset)+1, 0, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(a, b time.Time) int {
	ya, ma, _ := a.Date()
	yb, mb, _ := b.Date()
	return (yb-ya)*12 + int(mb-ma)
}
