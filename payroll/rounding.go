/*
Package payroll holds the rounding and wage rules every other component uses.

PURPOSE:
  Minutes of work become money through exactly two rounding contracts, and
  they are NOT interchangeable:

    ToRecognizedHours:  round-to-nearest whole hour  (payroll, calendar)
    ToOneDecimalHours:  floor to one decimal place    (secondary display)

  303 minutes is 5 recognized hours but "5.0H"; 330 minutes is 6 recognized
  hours but "5.5H"; 295 minutes is 5 recognized hours but "4.9H". Payroll
  totals must always be built from recognized hours.

PRECISION:
  All arithmetic uses decimal.Decimal. Nothing here ever returns a negative
  value; non-positive input clamps to zero.

SEE ALSO:
  - wage.go: Rates and pay lines built from these functions
  - attendance/synthetic.go: Verifies synthetic totals in recognized hours
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// ToRecognizedHours rounds minutes to the nearest whole hour (half up).
func ToRecognizedHours(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Round(0).IntPart())
}

// OneDecimalHours floors minutes to one decimal place of hours.
func OneDecimalHours(minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Truncate(1)
}

// ToOneDecimalHours renders OneDecimalHours for display, e.g. "4.9H".
func ToOneDecimalHours(minutes int) string {
	return OneDecimalHours(minutes).StringFixed(1) + "H"
}

// CalculateWage applies a multiplier to a base wage and rounds to a whole unit.
func CalculateWage(baseWage, multiplier decimal.Decimal) decimal.Decimal {
	wage := baseWage.Mul(multiplier).Round(0)
	if wage.IsNegative() {
		return decimal.Zero
	}
	return wage
}

// CalculateTotalPay multiplies recognized hours by an hourly wage.
func CalculateTotalPay(recognizedHours int, wage decimal.Decimal) decimal.Decimal {
	if recognizedHours <= 0 || !wage.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(recognizedHours)).Mul(wage)
}
