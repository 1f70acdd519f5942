package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kaskelas/backend/internal/models"
)

// DefaultRates is the dues history: 15000 until August 2025, 10000 from September 2025.
const DefaultRates = "2024-01=15000,2025-09=10000"

// Rate is the kas kelas amount in effect from a period onward.
type Rate struct {
	From     models.Period
	KasKelas int64
}

// BillingPolicy decides what a bill for a given period looks like.
type BillingPolicy struct {
	Rates          []Rate
	BiayaAdmin     int64
	ExcludedMonths map[int]bool
	DueDay         int
	Location       *time.Location
}

func LoadBillingPolicy(rates string, biayaAdmin int64, excluded string, dueDay int, tz string) (BillingPolicy, error) {
	parsed, err := ParseRates(rates)
	if err != nil {
		return BillingPolicy{}, err
	}
	months, err := ParseMonths(excluded)
	if err != nil {
		return BillingPolicy{}, err
	}
	if biayaAdmin < 0 {
		return BillingPolicy{}, fmt.Errorf("biaya admin must not be negative")
	}
	if dueDay < 1 || dueDay > 28 {
		return BillingPolicy{}, fmt.Errorf("due day %d out of range 1-28", dueDay)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return BillingPolicy{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return BillingPolicy{
		Rates:          parsed,
		BiayaAdmin:     biayaAdmin,
		ExcludedMonths: months,
		DueDay:         dueDay,
		Location:       loc,
	}, nil
}

// ParseRates parses "YYYY-MM=amount" pairs separated by commas, sorted by period.
func ParseRates(s string) ([]Rate, error) {
	var rates []Rate
	for _, part := range splitList(s) {
		from, amount, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q: expected YYYY-MM=amount", part)
		}
		period, err := models.ParsePeriod(strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || value <= 0 {
			return nil, fmt.Errorf("invalid rate amount %q", amount)
		}
		rates = append(rates, Rate{From: period, KasKelas: value})
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("at least one kas kelas rate is required")
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].From.Before(rates[j].From) })
	return rates, nil
}

func ParseMonths(s string) (map[int]bool, error) {
	months := make(map[int]bool)
	for _, part := range splitList(s) {
		m, err := strconv.Atoi(part)
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("invalid month %q", part)
		}
		months[m] = true
	}
	return months, nil
}

// KasKelasFor returns the rate effective for p. Periods before the first rate use it anyway.
func (p BillingPolicy) KasKelasFor(period models.Period) int64 {
	amount := p.Rates[0].KasKelas
	for _, r := range p.Rates {
		if period.Before(r.From) {
			break
		}
		amount = r.KasKelas
	}
	return amount
}

func (p BillingPolicy) Excluded(period models.Period) bool {
	return p.ExcludedMonths[period.Month]
}

// DueDate falls on DueDay of the month after the period.
func (p BillingPolicy) DueDate(period models.Period) time.Time {
	next := period.Next()
	return time.Date(next.Year, time.Month(next.Month), p.DueDay, 0, 0, 0, 0, p.location())
}

// Current is the period containing now in the billing timezone.
func (p BillingPolicy) Current(now time.Time) models.Period {
	return models.PeriodOf(now.In(p.location()))
}

func (p BillingPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
