package worktime

import "time"

// NoHours is displayed for a value the portal has not reported yet.
const NoHours = "No hours available"

// Snapshot is one refresh cycle's worth of portal data. Each slot is written
// by exactly one request; a slot the portal did not fill is left unset.
type Snapshot struct {
	Worked    Duration
	Break     Duration
	HasWorked bool
	HasBreak  bool
	FetchedAt time.Time
}

// Merge fills the slots missing from s with the ones from prev, so a reply
// without a value keeps what was displayed before.
func (s Snapshot) Merge(prev Snapshot) Snapshot {
	if !s.HasWorked && prev.HasWorked {
		s.Worked, s.HasWorked = prev.Worked, true
	}
	if !s.HasBreak && prev.HasBreak {
		s.Break, s.HasBreak = prev.Break, true
	}
	return s
}

// Metrics are derived from a Snapshot on every render and never stored.
type Metrics struct {
	Net      Duration
	Overtime bool
	ClockOut ClockOutResult
}

// Derive computes the metrics of worked and brk against target at now.
func Derive(worked, brk, target Duration, now time.Time) Metrics {
	net := NetDuration(worked, brk)
	return Metrics{
		Net:      net,
		Overtime: IsOvertime(worked, net),
		ClockOut: ProjectClockOut(worked, brk, target, now),
	}
}

// Summary is the display-ready view shared by every presentation.
type Summary struct {
	Break    string
	Worked   string
	Net      string
	ClockOut string
	Comment  string

	Overtime bool
	Complete bool
	Ready    bool
}

// Summarize turns a snapshot into display strings. A missing break counts as
// zero; without a worked value nothing is derived. The clock-out is projected
// from snap.FetchedAt, when the worked time was measured, so re-rendering the
// same snapshot later gives the same time; now is used only when FetchedAt is
// unset. pick is only called when the overtime judgment fires and may be nil
// to suppress the comment.
func Summarize(snap Snapshot, target Duration, now time.Time, pick CommentPicker) Summary {
	sum := Summary{
		Break:    NoHours,
		Worked:   NoHours,
		Net:      NoHours,
		ClockOut: NoHours,
	}
	if snap.HasBreak {
		sum.Break = snap.Break.String()
	}
	if !snap.HasWorked {
		return sum
	}
	sum.Worked = snap.Worked.String()

	var brk Duration
	if snap.HasBreak {
		brk = snap.Break
	}
	from := now
	if !snap.FetchedAt.IsZero() {
		from = snap.FetchedAt
	}
	m := Derive(snap.Worked, brk, target, from)
	sum.Ready = true
	sum.Net = m.Net.String()
	sum.ClockOut = m.ClockOut.String()
	sum.Complete = m.ClockOut.Complete()
	sum.Overtime = m.Overtime
	if m.Overtime && pick != nil {
		sum.Comment = pick()
	}
	return sum
}
