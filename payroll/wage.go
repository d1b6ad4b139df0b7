package payroll

import "github.com/shopspring/decimal"

// Rates are the hourly wage and the multipliers for the overtime and special
// buckets. Basic hours are paid at multiplier 1.
type Rates struct {
	BaseWage           decimal.Decimal
	OvertimeMultiplier decimal.Decimal
	SpecialMultiplier  decimal.Decimal
}

// DefaultRates pays overtime and special work at 1.5x.
func DefaultRates(baseWage decimal.Decimal) Rates {
	return Rates{
		BaseWage:           baseWage,
		OvertimeMultiplier: decimal.RequireFromString("1.5"),
		SpecialMultiplier:  decimal.RequireFromString("1.5"),
	}
}

// PayLine is the pay breakdown for one set of bucketed minutes.
type PayLine struct {
	BasicHours    int
	OvertimeHours int
	SpecialHours  int

	BasicPay    decimal.Decimal
	OvertimePay decimal.Decimal
	SpecialPay  decimal.Decimal
	Total       decimal.Decimal
}

// PayFor converts bucketed minutes into pay. Each bucket is rounded to
// recognized hours on its own before multiplying.
func (r Rates) PayFor(basicMinutes, overtimeMinutes, specialMinutes int) PayLine {
	line := PayLine{
		BasicHours:    ToRecognizedHours(basicMinutes),
		OvertimeHours: ToRecognizedHours(overtimeMinutes),
		SpecialHours:  ToRecognizedHours(specialMinutes),
	}
	line.BasicPay = CalculateTotalPay(line.BasicHours, CalculateWage(r.BaseWage, decimal.NewFromInt(1)))
	line.OvertimePay = CalculateTotalPay(line.OvertimeHours, CalculateWage(r.BaseWage, r.OvertimeMultiplier))
	line.SpecialPay = CalculateTotalPay(line.SpecialHours, CalculateWage(r.BaseWage, r.SpecialMultiplier))
	line.Total = line.BasicPay.Add(line.OvertimePay).Add(line.SpecialPay)
	return line
}
