package proctor

import "github.com/stemsi/exstem-proctor/internal/model"

// Aggregator fuses focus violations and webcam threshold crossings into the
// common violation count. The count only ever grows; reaching the limit
// while the exam is active bans the student exactly once.
type Aggregator struct {
	limit     int
	count     int
	lastTotal int
	banned    bool

	onChange func(count int)
	onBan    func(count int)
}

// NewAggregator creates an aggregator seeded with the rehydrated count and
// the rehydrated focus total, so a reload does not re-add old increments.
func NewAggregator(limit, count, focusTotal int, onChange, onBan func(count int)) *Aggregator {
	return &Aggregator{
		limit:     limit,
		count:     count,
		lastTotal: focusTotal,
		onChange:  onChange,
		onBan:     onBan,
	}
}

// ObserveFocusTotal adds the positive delta of the focus counters total.
func (a *Aggregator) ObserveFocusTotal(total int, active bool) {
	if total <= a.lastTotal {
		return
	}
	delta := total - a.lastTotal
	a.lastTotal = total
	a.add(delta, active)
}

// AddThreshold adds one for a webcam threshold crossing. Advisory types
// are ignored.
func (a *Aggregator) AddThreshold(typ model.WebcamViolationType, active bool) {
	if !typ.Counted() {
		return
	}
	a.add(1, active)
}

// Check bans if a rehydrated count is already at the limit.
func (a *Aggregator) Check(active bool) {
	a.maybeBan(active)
}

// Count returns the common violation count.
func (a *Aggregator) Count() int {
	return a.count
}

// Banned reports whether the ban fired.
func (a *Aggregator) Banned() bool {
	return a.banned
}

// Limit returns the ban limit.
func (a *Aggregator) Limit() int {
	return a.limit
}

func (a *Aggregator) add(n int, active bool) {
	a.count += n
	if a.onChange != nil {
		a.onChange(a.count)
	}
	a.maybeBan(active)
}

func (a *Aggregator) maybeBan(active bool) {
	if a.banned || !active || a.limit <= 0 || a.count < a.limit {
		return
	}
	a.banned = true
	if a.onBan != nil {
		a.onBan(a.count)
	}
}
