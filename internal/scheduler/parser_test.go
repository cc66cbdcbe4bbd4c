package scheduler

import (
	"testing"
	"time"
)

// A fixed Wednesday afternoon keeps clock math deterministic.
var parserNow = time.Date(2026, 8, 26, 14, 30, 0, 0, time.Local)

func TestParseSchedule_RelativeOffset(t *testing.T) {
	tests := []struct {
		phrase string
		want   time.Duration
	}{
		{"in 30 seconds", 30 * time.Second},
		{"in 5 minutes", 5 * time.Minute},
		{"in 1 min", time.Minute},
		{"in 2 hours", 2 * time.Hour},
		{"in 1 hr", time.Hour},
		{"remind me in 10 minutes to stretch", 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			s := ParseSchedule(tt.phrase, parserNow)
			if s.Kind != ScheduleAt {
				t.Fatalf("kind = %q, want at", s.Kind)
			}
			if got := s.At.Sub(parserNow); got != tt.want {
				t.Errorf("offset = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSchedule_Interval(t *testing.T) {
	tests := []struct {
		phrase string
		want   time.Duration
	}{
		{"every 5 minutes", 5 * time.Minute},
		{"every 1 hour", time.Hour},
		{"every 30 mins", 30 * time.Minute},
		{"check the news every 2 hrs", 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			s := ParseSchedule(tt.phrase, parserNow)
			if s.Kind != ScheduleEvery {
				t.Fatalf("kind = %q, want every", s.Kind)
			}
			if s.Every.Duration != tt.want {
				t.Errorf("every = %v, want %v", s.Every.Duration, tt.want)
			}
		})
	}
}

func TestParseSchedule_Daily(t *testing.T) {
	tests := []struct {
		phrase   string
		wantHour int
		wantMin  int
	}{
		{"every day at 8am", 8, 0},
		{"every day at 8:30am", 8, 30},
		{"every day at 7 pm", 19, 0},
		{"every day at 12pm", 12, 0},
		{"every day at 12am", 0, 0},
		{"every day at 18:15", 18, 15},
		{"everyday at 9am", 9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			s := ParseSchedule(tt.phrase, parserNow)
			if s.Kind != ScheduleDaily {
				t.Fatalf("kind = %q, want daily", s.Kind)
			}
			if s.Hour != tt.wantHour || s.Min != tt.wantMin {
				t.Errorf("clock = %d:%02d, want %d:%02d", s.Hour, s.Min, tt.wantHour, tt.wantMin)
			}
		})
	}
}

// "every day at" must never be swallowed by the interval rule.
func TestParseSchedule_DailyBeatsInterval(t *testing.T) {
	s := ParseSchedule("every day at 8am", parserNow)
	if s.Kind == ScheduleEvery {
		t.Fatal("daily phrase parsed as interval")
	}
}

func TestParseSchedule_TomorrowAt(t *testing.T) {
	s := ParseSchedule("tomorrow at 9am", parserNow)
	if s.Kind != ScheduleAt {
		t.Fatalf("kind = %q, want at", s.Kind)
	}
	want := time.Date(2026, 8, 27, 9, 0, 0, 0, time.Local)
	if !s.At.Equal(want) {
		t.Errorf("at = %v, want %v", s.At, want)
	}
}

func TestParseSchedule_BareTime(t *testing.T) {
	// 15:30 is after the 14:30 reference time, so it lands today.
	s := ParseSchedule("at 3:30pm", parserNow)
	if s.Kind != ScheduleAt {
		t.Fatalf("kind = %q, want at", s.Kind)
	}
	want := time.Date(2026, 8, 26, 15, 30, 0, 0, time.Local)
	if !s.At.Equal(want) {
		t.Errorf("at = %v, want %v", s.At, want)
	}

	// 8am already passed, so it rolls to tomorrow.
	s = ParseSchedule("at 8am", parserNow)
	want = time.Date(2026, 8, 27, 8, 0, 0, 0, time.Local)
	if !s.At.Equal(want) {
		t.Errorf("at = %v, want %v (rolled to tomorrow)", s.At, want)
	}
}

// A lone hour is a valid bare time: minutes and meridiem are both
// optional.
func TestParseSchedule_BareHour(t *testing.T) {
	tests := []struct {
		phrase string
		want   time.Time
	}{
		{"9", time.Date(2026, 8, 27, 9, 0, 0, 0, time.Local)},   // passed, rolls
		{"16", time.Date(2026, 8, 26, 16, 0, 0, 0, time.Local)}, // still ahead today
		{"at 5", time.Date(2026, 8, 27, 5, 0, 0, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			s := ParseSchedule(tt.phrase, parserNow)
			if s.Kind != ScheduleAt {
				t.Fatalf("kind = %q, want at", s.Kind)
			}
			if !s.At.Equal(tt.want) {
				t.Errorf("at = %v, want %v", s.At, tt.want)
			}
		})
	}
}

// Numbers that cannot be a clock reading are not times.
func TestParseSchedule_RejectsNonClockNumbers(t *testing.T) {
	for _, phrase := range []string{"90", "at 25", "4:75"} {
		s := ParseSchedule(phrase, parserNow)
		if got := s.At.Sub(parserNow); got != time.Minute {
			t.Errorf("phrase %q: offset = %v, want the 1m fallback", phrase, got)
		}
	}
}

func TestParseSchedule_FallbackNeverFails(t *testing.T) {
	for _, phrase := range []string{"", "whenever you feel like it", "next blue moon", "every monday"} {
		s := ParseSchedule(phrase, parserNow)
		if s.Kind != ScheduleAt || s.At == nil {
			t.Fatalf("phrase %q: kind = %q, want one-shot fallback", phrase, s.Kind)
		}
		if got := s.At.Sub(parserNow); got != time.Minute {
			t.Errorf("phrase %q: offset = %v, want 1m", phrase, got)
		}
	}
}

func TestParseSchedule_RuleOrder(t *testing.T) {
	// "in" wins over "every" when both appear.
	s := ParseSchedule("in 5 minutes and then every 2 hours", parserNow)
	if s.Kind != ScheduleAt {
		t.Errorf("kind = %q, want at (rule 1 first)", s.Kind)
	}
}

func TestNextRun_Daily(t *testing.T) {
	task := &Task{Schedule: Schedule{Kind: ScheduleDaily, Hour: 8, Min: 0}}

	next, ok := task.NextRun(parserNow)
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 8, 27, 8, 0, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// Before 08:00 the same day counts.
	early := time.Date(2026, 8, 26, 6, 0, 0, 0, time.Local)
	next, _ = task.NextRun(early)
	want = time.Date(2026, 8, 26, 8, 0, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}
