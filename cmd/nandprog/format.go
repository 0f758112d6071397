package main

import (
	"fmt"
	"time"
)

func formatSize(n int) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d Bytes", n)
	case n < 1<<20:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	case n < 1<<30:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
}

// formatDuration prints minutes, seconds and milliseconds, dropping leading
// zero units.
func formatDuration(d time.Duration) string {
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	ms := float64(d%time.Second) / float64(time.Millisecond)
	switch {
	case m > 0:
		return fmt.Sprintf("%dm:%ds:%.0fms", m, s, ms)
	case s > 0:
		return fmt.Sprintf("%ds:%.0fms", s, ms)
	}
	return fmt.Sprintf("%.1fms", ms)
}
