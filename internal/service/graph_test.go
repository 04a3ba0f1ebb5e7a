package service

import (
	"image/color"
	"testing"
	"time"

	"github.com/habitflow/internal/db"
)

func TestActivityGraphDimensions(t *testing.T) {
	habit := db.Habit{Color: "#3b82f6"}

	img := ActivityGraph(habit, nil, streakBase, 4)
	bounds := img.Bounds()
	if bounds.Dx() != graphWeeks*4 || bounds.Dy() != graphDays*4 {
		t.Fatalf("unexpected size %dx%d", bounds.Dx(), bounds.Dy())
	}

	// scale 下限为 1
	img = ActivityGraph(habit, nil, streakBase, 0)
	bounds = img.Bounds()
	if bounds.Dx() != graphWeeks || bounds.Dy() != graphDays {
		t.Fatalf("unexpected base size %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestActivityGraphMarksCompletedDay(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	habit := db.Habit{Color: "#3b82f6"}
	entries := []db.HabitEntry{
		{HabitID: 1, EntryDate: today, Completed: true},
	}

	img := ActivityGraph(habit, entries, today, 1)

	// 本周位于最后一列，行号即星期几
	x := graphWeeks - 1
	y := int(today.Weekday())
	got := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	want := color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	if got != want {
		t.Fatalf("expected habit color at (%d,%d), got %+v", x, y, got)
	}

	// 无记录的日子是空格色
	empty := color.RGBAModel.Convert(img.At(x-10, y)).(color.RGBA)
	if empty == want {
		t.Fatal("expected empty cell color for unrelated day")
	}
}

func TestParseHexColorFallback(t *testing.T) {
	fallback := parseHexColor("")
	if fallback.A != 0xff {
		t.Fatal("expected opaque fallback color")
	}
	if parseHexColor("not-a-color") != fallback {
		t.Fatal("expected fallback for malformed color")
	}
	if got := parseHexColor("#102030"); got != (color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}) {
		t.Fatalf("unexpected parsed color: %+v", got)
	}
}
