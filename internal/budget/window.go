// Package budget evaluates spending against budget limits.
//
// This file implements the Strategy Pattern for budget windows. Each
// frequency (daily, weekly, monthly, yearly) has its own strategy that
// derives the active window from the current time.
package budget

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Window is an inclusive calendar date range.
type Window struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d core.Date) bool {
	return d.Within(w.Start, w.End)
}

// WindowStrategy derives the active budget window for a frequency.
type WindowStrategy interface {
	// Window returns the period containing now.
	Window(now time.Time) Window
}

// DailyWindow covers today only.
type DailyWindow struct{}

func (DailyWindow) Window(now time.Time) Window {
	today := core.DateOf(now)
	return Window{Start: today, End: today}
}

// WeeklyWindow covers the Monday-start week containing now.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(now time.Time) Window {
	today := core.DateOf(now)
	start := today.AddDays(-((int(today.Weekday()) + 6) % 7))
	return Window{Start: start, End: start.AddDays(6)}
}

// MonthlyWindow covers the calendar month containing now.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(now time.Time) Window {
	today := core.DateOf(now)
	start := core.NewDate(today.Year(), int(today.Month()), 1)
	// Day 0 of the next month is the last day of this one.
	end := core.NewDate(today.Year(), int(today.Month())+1, 0)
	return Window{Start: start, End: end}
}

// YearlyWindow covers the calendar year containing now.
type YearlyWindow struct{}

func (YearlyWindow) Window(now time.Time) Window {
	y := core.DateOf(now).Year()
	return Window{Start: core.NewDate(y, 1, 1), End: core.NewDate(y, 12, 31)}
}

// windowStrategies maps frequencies to their window strategy.
var windowStrategies = map[core.Frequency]WindowStrategy{
	core.Daily:   DailyWindow{},
	core.Weekly:  WeeklyWindow{},
	core.Monthly: MonthlyWindow{},
	core.Yearly:  YearlyWindow{},
}

// GetWindowStrategy returns the strategy for a frequency.
func GetWindowStrategy(frequency core.Frequency) (WindowStrategy, error) {
	s, ok := windowStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown budget frequency: %s", frequency)
	}
	return s, nil
}

// RegisterWindowStrategy adds or replaces the strategy for a frequency.
// Call it during initialization, before any evaluation runs.
func RegisterWindowStrategy(frequency core.Frequency, s WindowStrategy) {
	windowStrategies[frequency] = s
}

// ActiveWindow returns the window of frequency containing now.
func ActiveWindow(frequency core.Frequency, now time.Time) (Window, error) {
	s, err := GetWindowStrategy(frequency)
	if err != nil {
		return Window{}, err
	}
	return s.Window(now), nil
}
