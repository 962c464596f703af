// Package audio holds PCM clips and the external tools used to capture and
// play them.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// SampleRate is the rate used for capture, synthesis and playback.
	SampleRate = 16000
	// bytesPerSample for mono PCM16LE.
	bytesPerSample = 2
)

// Clip is mono PCM16LE audio.
type Clip struct {
	PCM        []byte
	SampleRate int
	Duration   time.Duration
}

// NewClip wraps pcm recorded at sampleRate.
func NewClip(pcm []byte, sampleRate int) Clip {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return Clip{PCM: pcm, SampleRate: sampleRate, Duration: DurationOf(len(pcm), sampleRate)}
}

// Empty reports whether the clip has nothing to play.
func (c Clip) Empty() bool {
	return len(c.PCM) < bytesPerSample
}

// DurationOf returns the playable duration of n bytes of mono PCM16.
func DurationOf(n, sampleRate int) time.Duration {
	if sampleRate <= 0 || n <= 0 {
		return 0
	}
	samples := n / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Level returns the RMS level of a PCM16LE chunk scaled to 0..1.
func Level(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// CueTone returns a short two-note prompt played before the user's turn.
func CueTone() Clip {
	const (
		noteLen = 90 * time.Millisecond
		gap     = 40 * time.Millisecond
		amp     = 0.25
	)
	var pcm []byte
	pcm = appendTone(pcm, 660, noteLen, amp)
	pcm = appendTone(pcm, 0, gap, 0)
	pcm = appendTone(pcm, 880, noteLen, amp)
	return NewClip(pcm, SampleRate)
}

func appendTone(pcm []byte, freq float64, d time.Duration, amp float64) []byte {
	n := int(d.Seconds() * SampleRate)
	fade := n / 10
	for i := 0; i < n; i++ {
		v := 0.0
		if freq > 0 {
			v = amp * math.Sin(2*math.Pi*freq*float64(i)/SampleRate)
			if fade > 0 && i < fade {
				v *= float64(i) / float64(fade)
			}
			if fade > 0 && i >= n-fade {
				v *= float64(n-i) / float64(fade)
			}
		}
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v*32767)))
	}
	return pcm
}
