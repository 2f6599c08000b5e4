package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const silencedetectOutput = `
[silencedetect @ 0x7f8] silence_start: 2.5
[silencedetect @ 0x7f8] silence_end: 4.75 | silence_duration: 2.25
[silencedetect @ 0x7f8] silence_start: 10.0
[silencedetect @ 0x7f8] silence_end: 12.5 | silence_duration: 2.5
`

func TestParseSilence(t *testing.T) {
	segs := ParseSilence(silencedetectOutput, 20)
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Start: 2.5, End: 4.75}, segs[0])
	assert.Equal(t, Segment{Start: 10.0, End: 12.5}, segs[1])
}

func TestParseSilence_UnterminatedRunsToEnd(t *testing.T) {
	out := "[silencedetect] silence_start: 15.25\n"
	segs := ParseSilence(out, 20)
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{Start: 15.25, End: 20}, segs[0])
}

func TestParseSilence_Empty(t *testing.T) {
	assert.Empty(t, ParseSilence("frame= 100 fps=25\n", 20))
}

func TestKeep_MiddleSilence(t *testing.T) {
	keep := Keep([]Segment{{Start: 2.5, End: 4.75}}, 10)
	assert.Equal(t, []Segment{{Start: 0, End: 2.5}, {Start: 4.75, End: 10}}, keep)
}

func TestKeep_LeadingAndTrailingSilence(t *testing.T) {
	keep := Keep([]Segment{{Start: 0, End: 1}, {Start: 8, End: 10}}, 10)
	assert.Equal(t, []Segment{{Start: 1, End: 8}}, keep)
}

func TestKeep_NoSilence(t *testing.T) {
	keep := Keep(nil, 10)
	assert.Equal(t, []Segment{{Start: 0, End: 10}}, keep)
}

func TestKeep_AllSilence(t *testing.T) {
	assert.Empty(t, Keep([]Segment{{Start: 0, End: 10}}, 10))
}

func TestFilterComplex(t *testing.T) {
	fc := FilterComplex([]Segment{{Start: 0, End: 2.5}, {Start: 4.75, End: 10}})
	assert.Equal(t,
		"[0:v]trim=start=0.000:end=2.500,setpts=PTS-STARTPTS[v0];"+
			"[0:a]atrim=start=0.000:end=2.500,asetpts=PTS-STARTPTS[a0];"+
			"[0:v]trim=start=4.750:end=10.000,setpts=PTS-STARTPTS[v1];"+
			"[0:a]atrim=start=4.750:end=10.000,asetpts=PTS-STARTPTS[a1];"+
			"[v0][a0][v1][a1]concat=n=2:v=1:a=1[outv][outa]",
		fc)
}

func TestFilterComplex_Empty(t *testing.T) {
	assert.Equal(t, "[0:v][0:a]concat=n=1:v=1:a=1[outv][outa]", FilterComplex(nil))
}
