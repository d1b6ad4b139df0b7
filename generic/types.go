/*
Package generic provides the domain-agnostic primitives of the attendance engine.

PURPOSE:
  Calendar dates, minute-of-day clock punches, periods, ISO weeks, holiday
  calendars, identifiers and errors. Nothing here knows about breaks,
  overtime or payroll; the attendance and payroll packages build on it.

KEY CONCEPTS:
  - TimePoint: A calendar date (attendance is bucketed per day)
  - ClockTime: A punch in minutes since midnight, with explicit absence
  - Period: Inclusive date range used for synthesis and queries
  - HolidayCalendar: Company non-working days

DESIGN PRINCIPLES:
  1. Value types: Everything is copied, nothing is shared
  2. Type Safety: Distinct ID types keep users, records and policies apart
  3. Explicit absence: A missing punch is never confused with midnight

SEE ALSO:
  - time.go: TimePoint, ClockTime, HolidayCalendar
  - period.go: Period
  - errors.go: Sentinel and structured errors
*/
package generic

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type RecordID string
type PolicyID string
