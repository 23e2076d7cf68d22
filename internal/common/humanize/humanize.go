package humanize

import (
	"fmt"
	"time"
)

var units = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// Bytes renders a byte count in binary units, e.g. "6.0GiB".
func Bytes(n int64) string {
	size := float64(n)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}
	return fmt.Sprintf("%.1f%s", size, units[idx])
}

// Duration renders a duration the way a sweep log reads best: milliseconds
// under a second, seconds under a minute, minutes otherwise.
func Duration(d time.Duration) string {
	s := d.Seconds()
	switch {
	case s < 1:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case s < 60:
		return fmt.Sprintf("%.2f s", s)
	default:
		m := int(s) / 60
		return fmt.Sprintf("%dm %.1fs", m, s-float64(m*60))
	}
}
