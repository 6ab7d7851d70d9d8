package timeline

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestWindow_Intersects(t *testing.T) {
	w := window("2024-01-01", "2024-01-10")

	tests := []struct {
		name       string
		window     Window
		start, end string
		want       bool
	}{
		{name: "inside", window: w, start: "2024-01-02", end: "2024-01-03", want: true},
		{name: "overlaps start", window: w, start: "2023-12-25", end: "2024-01-01", want: true},
		{name: "overlaps end", window: w, start: "2024-01-10", end: "2024-02-01", want: true},
		{name: "covers window", window: w, start: "2023-12-01", end: "2024-02-01", want: true},
		{name: "before", window: w, start: "2023-12-01", end: "2023-12-31", want: false},
		{name: "after", window: w, start: "2024-01-11", end: "2024-01-12", want: false},
		{name: "start only inside", window: w, start: "2024-01-05", want: true},
		{name: "start only outside", window: w, start: "2024-01-11", want: false},
		{name: "end only inside", window: w, end: "2024-01-10", want: true},
		{name: "end only outside", window: w, end: "2023-12-31", want: false},
		{name: "no dates", window: w, want: true},
		{name: "reversed task dates", window: w, start: "2024-01-05", end: "2023-12-01", want: true},
		{name: "open window end", window: window("2024-01-01", ""), start: "2030-01-01", want: true},
		{name: "open window start", window: window("", "2024-01-10"), end: "2000-01-01", want: true},
		{name: "unbounded", window: Window{}, start: "1999-01-01", end: "1999-01-02", want: true},
		{name: "reversed window", window: window("2024-01-10", "2024-01-01"), start: "2024-01-05", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var start, end *civil.Date
			if tt.start != "" {
				start = dp(tt.start)
			}
			if tt.end != "" {
				end = dp(tt.end)
			}
			if got := tt.window.Intersects(start, end); got != tt.want {
				t.Errorf("Intersects(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestWindow_IntersectsIgnoresInvalidDates(t *testing.T) {
	w := window("2024-01-01", "2024-01-10")
	bad := civil.Date{Year: 2024, Month: 2, Day: 30}

	// An invalid start with a valid end is a single day at the end.
	if w.Intersects(&bad, dp("2024-03-01")) {
		t.Error("Expected the valid end alone to decide")
	}
	if !w.Intersects(&bad, &bad) {
		t.Error("Expected a task with only invalid dates to always pass")
	}
}

func TestWindow_Clamp(t *testing.T) {
	w := window("2024-01-01", "2024-01-10")

	tests := []struct {
		in, want string
	}{
		{"2023-12-31", "2024-01-01"},
		{"2024-01-05", "2024-01-05"},
		{"2024-01-11", "2024-01-10"},
	}
	for _, tt := range tests {
		if got := w.Clamp(d(tt.in)); got != d(tt.want) {
			t.Errorf("Clamp(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if got := (Window{}).Clamp(d("1990-05-05")); got != d("1990-05-05") {
		t.Errorf("unbounded Clamp changed the date: %s", got)
	}
}

func TestDefaultWindow(t *testing.T) {
	w := DefaultWindow(d("2024-03-01"))

	if *w.From != d("2024-02-23") {
		t.Errorf("From = %s, want 2024-02-23", w.From)
	}
	if *w.To != d("2024-05-30") {
		t.Errorf("To = %s, want 2024-05-30", w.To)
	}
	if !w.Bounded() {
		t.Error("Expected default window to be bounded")
	}
}
