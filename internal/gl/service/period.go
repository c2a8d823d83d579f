package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReconTolerance 对账绝对容差。吸收舍入误差用，非相对容差；
// 调整需与会计口径负责人确认。
var ReconTolerance = decimal.RequireFromString("0.01")

// ParsePeriod 解析 YYYY-MM 期间字符串，返回 [from, to) 区间
func ParsePeriod(period string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), nil
}

// FormatPeriod 时间 → YYYY-MM
func FormatPeriod(t time.Time) string {
	return t.Format("2006-01")
}
