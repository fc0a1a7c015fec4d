package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	LabelToday            = "Today"
	LabelYesterday        = "Yesterday"
	LabelEarlierThisWeek  = "Earlier this week"
	LabelEarlierThisMonth = "Earlier this month"
	LabelOlder            = "Older"

	// PreviewWidth is the display width a preview is cut to.
	PreviewWidth = 80
)

var bucketOrder = []string{
	LabelToday,
	LabelYesterday,
	LabelEarlierThisWeek,
	LabelEarlierThisMonth,
	LabelOlder,
}

// RebucketHistory groups threads by how recently they were updated,
// relative to now in now's location. Groups come in bucket order and are
// never empty. Within a group threads are sorted by UpdatedAt descending,
// ties broken by ascending ID. The result depends only on the arguments.
func RebucketHistory(threads []Thread, now time.Time) []HistoryGroup {
	buckets := make(map[string][]ThreadSummary, len(bucketOrder))
	for _, t := range threads {
		label := bucketLabel(t.UpdatedAt, now)
		buckets[label] = append(buckets[label], ThreadSummary{
			Thread:       t,
			RelativeTime: RelativeTime(t.UpdatedAt, now),
		})
	}

	var groups []HistoryGroup
	for _, label := range bucketOrder {
		entries := buckets[label]
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID < b.ID
		})
		groups = append(groups, HistoryGroup{Label: label, Threads: entries})
	}
	return groups
}

// FlattenHistory returns the threads the groups were built from, in
// display order.
func FlattenHistory(groups []HistoryGroup) []Thread {
	var threads []Thread
	for _, g := range groups {
		for _, s := range g.Threads {
			threads = append(threads, s.Thread)
		}
	}
	return threads
}

func bucketLabel(t, now time.Time) string {
	t = t.In(now.Location())
	today := startOfDay(now)
	switch {
	case !t.Before(today):
		return LabelToday
	case !t.Before(today.AddDate(0, 0, -1)):
		return LabelYesterday
	case !t.Before(startOfWeek(now)):
		return LabelEarlierThisWeek
	case !t.Before(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())):
		return LabelEarlierThisMonth
	default:
		return LabelOlder
	}
}

// RelativeTime renders t the way the history sidebar labels entries:
// "Just now", "5m ago", "2h ago", "Yesterday", "3 days ago", then a date.
func RelativeTime(t, now time.Time) string {
	t = t.In(now.Location())
	d := now.Sub(t)
	if d < time.Minute {
		return "Just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	}

	days := calendarDays(t, now)
	switch {
	case days == 0:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// TruncatePreview flattens whitespace and cuts text to PreviewWidth
// display cells, marking the cut with an ellipsis.
func TruncatePreview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(text) <= PreviewWidth {
		return text
	}
	return runewidth.Truncate(text, PreviewWidth, "") + "…"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek is midnight of the Monday on or before t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

// calendarDays counts midnights between t and now, so DST shifts do not
// change the answer.
func calendarDays(t, now time.Time) int {
	a, b := startOfDay(t), startOfDay(now)
	days := 0
	for a.Before(b) {
		a = a.AddDate(0, 0, 1)
		days++
		if days > 7 {
			break
		}
	}
	return days
}
