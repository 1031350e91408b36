// Package audio holds small PCM sample helpers shared by the recognizer
// and recorder. All byte-level PCM is 16-bit little-endian signed.
package audio

import "math"

// DecodePCM16 converts little-endian int16 PCM bytes to float32 samples in
// [-1, 1). For interleaved 2-channel input only channel 0 is kept: averaging
// the channels halves perceived loudness whenever one side is silent, which
// breaks energy gating downstream. Odd trailing bytes are discarded.
func DecodePCM16(data []byte, channels int) []float32 {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	n := len(data) / 2
	if n == 0 {
		return nil
	}
	if channels == 2 {
		out := make([]float32, 0, n/2)
		for i := 0; i+3 < len(data); i += 4 {
			s := int16(data[i]) | int16(data[i+1])<<8
			out = append(out, float32(s)/32768.0)
		}
		return out
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// EncodePCM16 converts float32 samples to little-endian int16 PCM bytes,
// clipping to the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := int32(v * 32767.0)
		if s > math.MaxInt16 {
			s = math.MaxInt16
		} else if s < math.MinInt16 {
			s = math.MinInt16
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// RMS returns the root-mean-square energy of a sample window.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// InterleaveStereo merges two equally framed mono PCM16 buffers into one
// interleaved stereo buffer (left sample first). The result is truncated to
// the shorter input.
func InterleaveStereo(left, right []byte) []byte {
	samples := len(left) / 2
	if r := len(right) / 2; r < samples {
		samples = r
	}
	out := make([]byte, samples*4)
	for i := 0; i < samples; i++ {
		out[i*4] = left[i*2]
		out[i*4+1] = left[i*2+1]
		out[i*4+2] = right[i*2]
		out[i*4+3] = right[i*2+1]
	}
	return out
}
