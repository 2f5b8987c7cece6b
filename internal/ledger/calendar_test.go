package ledger

import (
	"errors"
	"testing"
)

func TestExpandDays(t *testing.T) {
	t.Parallel()

	t.Run("expands every day inside the window", func(t *testing.T) {
		t.Parallel()

		span := Span{Start: MustParseDate("2024-06-10"), End: MustParseDate("2024-06-12")}
		window := Span{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-30")}

		days, err := ExpandDays(span, window)
		if err != nil {
			t.Fatalf("ExpandDays failed: %v", err)
		}
		want := []string{"2024-06-10", "2024-06-11", "2024-06-12"}
		if len(days) != len(want) {
			t.Fatalf("expected %d days, got %d", len(want), len(days))
		}
		for i, d := range days {
			if d.String() != want[i] {
				t.Fatalf("day %d = %s, want %s", i, d, want[i])
			}
		}
	})

	t.Run("clips spans that cross the window", func(t *testing.T) {
		t.Parallel()

		span := Span{Start: MustParseDate("2024-05-30"), End: MustParseDate("2024-06-02")}
		window := Span{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-30")}

		days, err := ExpandDays(span, window)
		if err != nil {
			t.Fatalf("ExpandDays failed: %v", err)
		}
		if len(days) != 2 || days[0].String() != "2024-06-01" || days[1].String() != "2024-06-02" {
			t.Fatalf("unexpected clipped days %v", days)
		}
	})

	t.Run("returns nothing for disjoint spans", func(t *testing.T) {
		t.Parallel()

		span := Span{Start: MustParseDate("2024-07-01"), End: MustParseDate("2024-07-02")}
		window := Span{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-30")}

		days, err := ExpandDays(span, window)
		if err != nil {
			t.Fatalf("ExpandDays failed: %v", err)
		}
		if len(days) != 0 {
			t.Fatalf("expected no days, got %v", days)
		}
	})

	t.Run("rejects oversized windows", func(t *testing.T) {
		t.Parallel()

		span := Span{Start: MustParseDate("2024-06-10"), End: MustParseDate("2024-06-10")}
		window := Span{Start: MustParseDate("2024-01-01"), End: MustParseDate("2025-01-01")}

		if _, err := ExpandDays(span, window); !errors.Is(err, ErrWindowTooLarge) {
			t.Fatalf("expected ErrWindowTooLarge, got %v", err)
		}
	})

	t.Run("accepts a full leap year window", func(t *testing.T) {
		t.Parallel()

		span := Span{Start: MustParseDate("2024-12-31"), End: MustParseDate("2024-12-31")}
		window := Span{Start: MustParseDate("2024-01-01"), End: MustParseDate("2024-12-31")}

		days, err := ExpandDays(span, window)
		if err != nil {
			t.Fatalf("ExpandDays failed: %v", err)
		}
		if len(days) != 1 {
			t.Fatalf("expected one day, got %v", days)
		}
	})
}
