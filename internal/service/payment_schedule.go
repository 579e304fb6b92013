package service

import (
	"time"

	"github.com/taichu-system/rental-management/internal/constants"
)

// ScheduledPayment 单期应付
type ScheduledPayment struct {
	DueDate time.Time `json:"due_date"`
	Amount  float64   `json:"amount"`
}

// PaymentScheduleGenerator 付款计划生成器，无副作用
//
// 每期金额都等于月租，不做首末月按天折算。
type PaymentScheduleGenerator struct {
	anchor string
}

// NewPaymentScheduleGenerator anchor 为 arrears（首期在起租后一个月）或 advance（首期在起租日）
//
// advance 即首期落在起租日、第 i 期为起租日加 i 个月的排法。
func NewPaymentScheduleGenerator(anchor string) *PaymentScheduleGenerator {
	if anchor != constants.BillingAnchorAdvance {
		anchor = constants.BillingAnchorArrears
	}
	return &PaymentScheduleGenerator{anchor: anchor}
}

// Anchor 当前账单锚定方式
func (g *PaymentScheduleGenerator) Anchor() string {
	return g.anchor
}

// Generate 生成 durationMonths 期应付，按到期日升序
func (g *PaymentScheduleGenerator) Generate(leaseStart time.Time, monthlyRent float64, durationMonths int) ([]ScheduledPayment, error) {
	if durationMonths <= 0 {
		return nil, newValidationError("lease_duration_months", "租期必须为正整数")
	}
	if monthlyRent < 0 {
		return nil, newValidationError("monthly_rent", "月租不能为负数")
	}

	offset := 1
	if g.anchor == constants.BillingAnchorAdvance {
		offset = 0
	}

	schedule := make([]ScheduledPayment, 0, durationMonths)
	for i := 0; i < durationMonths; i++ {
		schedule = append(schedule, ScheduledPayment{
			DueDate: AddMonthsClamped(leaseStart, i+offset),
			Amount:  monthlyRent,
		})
	}
	return schedule, nil
}

// LeaseEnd 起租日加租期
func LeaseEnd(leaseStart time.Time, durationMonths int) time.Time {
	return AddMonthsClamped(leaseStart, durationMonths)
}

// AddMonthsClamped 按日历月相加，目标月没有该日时取月末（1月31日 + 1 个月 = 2月28/29日）
//
// 与 time.AddDate 不同，不会溢出到下个月。
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
