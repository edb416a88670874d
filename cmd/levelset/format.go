package main

import (
	"fmt"
	"strconv"
	"time"
)

func formatLUFS(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatSignedLU(value float64) string {
	return fmt.Sprintf("%+.1f LU", value)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
