package tutoring

import (
	"encoding/binary"
	"math"
	"time"
)

// Sample rates of the live audio channel.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000

	// InputMIMEType labels microphone chunks sent upstream.
	InputMIMEType = "audio/pcm;rate=16000"
)

// EncodePCM16 converts float32 samples in [-1, 1] to mono little-endian
// 16-bit PCM. Out-of-range samples are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := float64(s) * 32768
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts mono little-endian 16-bit PCM to float32 samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return out
}

// SamplesDuration is how long n samples play at rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
