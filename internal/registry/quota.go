package registry

import (
	"context"
	"time"
)

// DefaultFreeScansPerDay is the free-tier allowance.
const DefaultFreeScansPerDay = 3

// QuotaStatus is the usage picture for one email on one day.
type QuotaStatus struct {
	Email     string `json:"email"`
	Day       string `json:"day"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Exhausted reports whether no scans are left.
func (q QuotaStatus) Exhausted() bool { return q.Remaining <= 0 }

// Quota applies a daily limit on top of the registry counters.
type Quota struct {
	reg   *Registry
	limit int
	clock func() time.Time
}

// NewQuota returns a Quota. limit <= 0 means DefaultFreeScansPerDay.
func NewQuota(reg *Registry, limit int, clock func() time.Time) *Quota {
	if limit <= 0 {
		limit = DefaultFreeScansPerDay
	}
	if clock == nil {
		clock = time.Now
	}
	return &Quota{reg: reg, limit: limit, clock: clock}
}

// Status reports today's usage for email.
func (q *Quota) Status(ctx context.Context, email string) (QuotaStatus, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return QuotaStatus{}, err
	}
	day := DayStamp(q.clock())
	used, err := q.reg.Usage(ctx, email, day)
	if err != nil {
		return QuotaStatus{}, err
	}
	return q.status(email, day, used), nil
}

// Consume records one successful scan and returns the updated status.
func (q *Quota) Consume(ctx context.Context, email string) (QuotaStatus, error) {
	now := q.clock()
	email, err := NormalizeEmail(email)
	if err != nil {
		return QuotaStatus{}, err
	}
	day := DayStamp(now)
	used, err := q.reg.Consume(ctx, email, day, now)
	if err != nil {
		return QuotaStatus{}, err
	}
	return q.status(email, day, used), nil
}

func (q *Quota) status(email, day string, used int) QuotaStatus {
	return QuotaStatus{
		Email:     email,
		Day:       day,
		Used:      used,
		Limit:     q.limit,
		Remaining: max(0, q.limit-used),
	}
}
