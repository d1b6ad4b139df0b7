/*
Package remote implements attendance.Generator against an external
generation service.

PROTOCOL:
  POST {baseURL}/generate
  {
    "employeeId": "u1",
    "from": "2024-05-01", "to": "2024-05-31",
    "leaveDates": ["2024-05-15"],
    "requiredRecognizedHours": 160,          // omitted when there is no target
    "seed": 1234,
    "policy": { ...factory.PolicyJSON... }
  }
  -> 200 {"records": [{"date": "2024-05-02", "clockIn": "08:55", "clockOut": "18:10"}]}

TRUST BOUNDARY:
  Only dates and clock times are taken from the response. Every record is
  recomputed through the DailyLogProcessor, so remote durations never reach
  the store. Days outside the period or outside the eligible days are
  dropped. Holidays are sent as leave dates.

ERRORS:
  Transport failures, non-2xx responses and unreadable clock times are
  returned wrapped; the repair loop turns them into a generationFailed run.
  Context cancellation is returned as the context's error.

SEE ALSO:
  - attendance/synthetic.go: The Generator interface and the local generator
  - attendance/repair.go: The loop calling Generate
*/
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/generic"
)

const defaultTimeout = 30 * time.Second

// Generator calls the remote service. It is safe for sequential use by the
// repair loop.
type Generator struct {
	http    *resty.Client
	logger  *zap.Logger
	factory *factory.PolicyFactory
}

// NewGenerator creates a client for baseURL. A zero timeout means 30s.
func NewGenerator(baseURL string, timeout time.Duration, logger *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Generator{http: client, logger: logger, factory: factory.NewPolicyFactory()}
}

type generateRequest struct {
	EmployeeID              string             `json:"employeeId"`
	From                    string             `json:"from"`
	To                      string             `json:"to"`
	LeaveDates              []string           `json:"leaveDates"`
	RequiredRecognizedHours *int               `json:"requiredRecognizedHours,omitempty"`
	Seed                    uint64             `json:"seed"`
	Policy                  factory.PolicyJSON `json:"policy"`
}

type generatedDay struct {
	Date     string `json:"date"`
	ClockIn  string `json:"clockIn"`
	ClockOut string `json:"clockOut"`
}

type generateResponse struct {
	Records []generatedDay `json:"records"`
}

// Generate implements attendance.Generator.
func (g *Generator) Generate(ctx context.Context, req attendance.GenerationRequest) ([]attendance.ComputedDayRecord, error) {
	eligible := make(map[string]bool)
	for _, d := range req.EligibleDays() {
		eligible[d.String()] = true
	}

	body := generateRequest{
		EmployeeID:              string(req.EmployeeID),
		From:                    req.Period.Start.String(),
		To:                      req.Period.End.String(),
		LeaveDates:              leaveDates(req),
		RequiredRecognizedHours: req.RequiredRecognizedHours,
		Seed:                    req.Seed,
		Policy:                  g.factory.ToJSON(req.Policy),
	}

	var out generateResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/generate")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("remote generate: timeout: %w", err)
		}
		return nil, fmt.Errorf("remote generate: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote generate: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var processor attendance.DailyLogProcessor
	records := make([]attendance.ComputedDayRecord, 0, len(out.Records))
	dropped := 0
	for _, day := range out.Records {
		date, err := generic.ParseDate(day.Date)
		if err != nil {
			return nil, fmt.Errorf("remote generate: %w", err)
		}
		if !eligible[date.String()] {
			dropped++
			continue
		}
		start, err := generic.ParseClockTime(day.ClockIn)
		if err != nil {
			return nil, fmt.Errorf("remote generate %s clock in: %w", day.Date, err)
		}
		end, err := generic.ParseClockTime(day.ClockOut)
		if err != nil {
			return nil, fmt.Errorf("remote generate %s clock out: %w", day.Date, err)
		}

		base := attendance.ComputedDayRecord{
			UserID:            req.EmployeeID,
			UserName:          req.UserName,
			Department:        req.Department,
			Date:              date,
			Status:            attendance.StatusNormal,
			CategoricalStatus: attendance.CategoryNormal,
			Synthetic:         true,
		}
		records = append(records, processor.FromClockTimes(base, start, end, req.Policy))
	}

	if dropped > 0 {
		g.logger.Warn("remote generator returned ineligible days",
			zap.String("employee_id", string(req.EmployeeID)),
			zap.Int("dropped", dropped),
		)
	}
	g.logger.Debug("remote generation finished",
		zap.String("employee_id", string(req.EmployeeID)),
		zap.Int("records", len(records)),
	)
	attendance.SortRecords(records)
	return records, nil
}

// leaveDates merges explicit leave with the period's holidays.
func leaveDates(req attendance.GenerationRequest) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d generic.TimePoint) {
		if s := d.String(); !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, d := range req.LeaveDates {
		add(d)
	}
	for _, d := range req.Period.Days() {
		if !d.IsWeekend() && !d.IsWorkdayWithHolidays(req.Calendar, req.CompanyID) {
			add(d)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

var _ attendance.Generator = (*Generator)(nil)
