package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is a half-open [Start, End) interval in seconds.
type Segment struct {
	Start float64
	End   float64
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start: ([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end: ([\d.]+)`)
)

// ParseSilence extracts silence intervals from ffmpeg silencedetect stderr
// output. Unterminated silence (runs to end of file) is closed at duration.
func ParseSilence(output string, duration float64) []Segment {
	var segments []Segment
	start := -1.0

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				start = v
			}
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && start >= 0 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				segments = append(segments, Segment{Start: start, End: v})
			}
			start = -1
		}
	}

	if start >= 0 && start < duration {
		segments = append(segments, Segment{Start: start, End: duration})
	}
	return segments
}

// Keep inverts a sorted list of silence intervals into the intervals to
// retain over [0, duration). Zero-length remainders are dropped.
func Keep(silence []Segment, duration float64) []Segment {
	if duration <= 0 {
		return nil
	}

	var keep []Segment
	cursor := 0.0
	for _, s := range silence {
		if s.Start > cursor {
			keep = append(keep, Segment{Start: cursor, End: s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < duration {
		keep = append(keep, Segment{Start: cursor, End: duration})
	}
	return keep
}

// FilterComplex builds the ffmpeg trim/concat graph that keeps only the
// given segments, labelling the results [outv] and [outa]. An empty segment
// list passes the streams through unchanged.
func FilterComplex(keep []Segment) string {
	if len(keep) == 0 {
		return "[0:v][0:a]concat=n=1:v=1:a=1[outv][outa]"
	}

	var b strings.Builder
	for i, s := range keep {
		fmt.Fprintf(&b, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];",
			formatSecs(s.Start), formatSecs(s.End), i)
		fmt.Fprintf(&b, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
			formatSecs(s.Start), formatSecs(s.End), i)
	}
	for i := range keep {
		fmt.Fprintf(&b, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", len(keep))
	return b.String()
}

func formatSecs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
