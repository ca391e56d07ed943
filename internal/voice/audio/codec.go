package audio

// Package audio provides the sample-format and sample-rate conversions between
// the telephony leg (G.711 mu-law, 8 kHz) and the speech-AI leg (linear PCM16
// at a higher rate). All functions are pure; no state survives a call.

import (
	"encoding/base64"
	"fmt"
)

// DecodeError signals a malformed audio frame. The caller drops the frame and
// keeps the session alive.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "audio decode error: " + e.Reason
}

// DecodeMuLaw expands a mu-law frame into linear PCM16 samples. Any frame
// length is accepted; one byte is one sample.
func DecodeMuLaw(frame []byte) []int16 {
	samples := make([]int16, len(frame))
	for i, b := range frame {
		samples[i] = mulawToLinear(b)
	}
	return samples
}

// EncodeMuLaw compresses linear PCM16 samples into a mu-law frame.
func EncodeMuLaw(samples []int16) []byte {
	frame := make([]byte, len(samples))
	for i, s := range samples {
		frame[i] = linearToMulaw(s)
	}
	return frame
}

// DecodePCM16 converts little-endian PCM16 bytes into samples. An odd byte
// count is malformed and yields a DecodeError.
func DecodePCM16(frame []byte) ([]int16, error) {
	if len(frame)%2 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("odd byte count %d for 16-bit frame", len(frame))}
	}
	samples := make([]int16, len(frame)/2)
	for i := range samples {
		samples[i] = int16(frame[i*2]) | int16(frame[i*2+1])<<8
	}
	return samples, nil
}

// EncodePCM16 converts samples into little-endian PCM16 bytes.
func EncodePCM16(samples []int16) []byte {
	frame := make([]byte, len(samples)*2)
	for i, s := range samples {
		frame[i*2] = byte(s)
		frame[i*2+1] = byte(s >> 8)
	}
	return frame
}

// Resample converts samples between rates with linear interpolation when
// upsampling and plain decimation when downsampling. No filtering is applied;
// the result is only as good as the target rate's quantization, which is all
// a narrowband phone call needs.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	if toRate > fromRate && toRate%fromRate == 0 {
		return upsample(samples, toRate/fromRate)
	}
	if fromRate > toRate && fromRate%toRate == 0 {
		return downsample(samples, fromRate/toRate)
	}

	// Non-integral ratio: nearest-sample mapping.
	n := len(samples) * toRate / fromRate
	out := make([]int16, n)
	for i := range out {
		out[i] = samples[i*fromRate/toRate]
	}
	return out
}

func upsample(samples []int16, factor int) []int16 {
	out := make([]int16, len(samples)*factor)
	for i := 0; i < len(samples); i++ {
		current := samples[i]
		next := current
		if i+1 < len(samples) {
			next = samples[i+1]
		}
		for j := 0; j < factor; j++ {
			interpolated := int32(current) + int32(next-current)*int32(j)/int32(factor)
			out[i*factor+j] = int16(interpolated)
		}
	}
	return out
}

func downsample(samples []int16, factor int) []int16 {
	out := make([]int16, len(samples)/factor)
	for i := range out {
		out[i] = samples[i*factor]
	}
	return out
}

func Base64ToBytes(base64String string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64String)
}

func BytesToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func mulawToLinear(mulawByte byte) int16 {
	const bias = 0x84

	// Invert all bits
	mulawByte = ^mulawByte

	// Extract sign, exponent, and mantissa
	sign := mulawByte & 0x80
	exponent := (mulawByte >> 4) & 0x07
	mantissa := mulawByte & 0x0F

	// Compute sample
	sample := int16(mantissa<<3 | 0x84)
	sample <<= exponent
	sample -= bias

	if sign != 0 {
		return -sample
	}
	return sample
}

func linearToMulaw(sample int16) byte {
	const bias = 0x84
	const clip = 32635

	sign := byte(0)
	s := int(sample)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += bias

	// Find the segment the biased sample falls in
	exponent := 7
	for mask := 0x4000; exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}

	mantissa := byte((s >> uint(exponent+3)) & 0x0F)

	return ^(sign | byte(exponent)<<4 | mantissa)
}
