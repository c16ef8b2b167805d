package worker

import (
	"strconv"
	"strings"
	"time"
)

// nextPostSlot picks the next posting window after now in the brand's
// timezone: the earliest window still ahead today, otherwise the first window
// tomorrow. Returns the "HH:MM" label and the concrete time.
func nextPostSlot(timezone, windowsCSV string, now time.Time) (string, time.Time) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc, _ = time.LoadLocation("America/New_York")
	}
	now = now.In(loc)

	windows := parseWindows(windowsCSV)
	if len(windows) == 0 {
		windows = []window{{8, 0}}
	}

	var next time.Time
	for _, w := range windows {
		slot := time.Date(now.Year(), now.Month(), now.Day(), w.hour, w.minute, 0, 0, loc)
		if slot.After(now) && (next.IsZero() || slot.Before(next)) {
			next = slot
		}
	}
	if next.IsZero() {
		w := windows[0]
		tomorrow := now.AddDate(0, 0, 1)
		next = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), w.hour, w.minute, 0, 0, loc)
	}

	return next.Format("15:04"), next
}

type window struct {
	hour   int
	minute int
}

func parseWindows(csv string) []window {
	var out []window
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hm := strings.SplitN(part, ":", 2)
		if len(hm) != 2 {
			continue
		}
		h, err1 := strconv.Atoi(hm[0])
		m, err2 := strconv.Atoi(hm[1])
		if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			continue
		}
		out = append(out, window{h, m})
	}
	return out
}
