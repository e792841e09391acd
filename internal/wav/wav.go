// Package wav converts between normalized float samples and playable WAV
// bytes without an external encoding library. Gemini's TTS endpoint returns
// base64 raw PCM16; Decode brings that into normalized samples and Encode
// wraps samples in a standard RIFF container.
//
// Both functions are pure and allocate fresh output, so they are safe to
// call concurrently.
package wav

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	headerSize     = 44
	bytesPerSample = 2 // 16-bit PCM
	fmtChunkSize   = 16
	pcmFormat      = 1
	bitsPerSample  = 16
)

// Encode builds a complete WAV file from normalized mono-or-interleaved
// samples. Output is byte-identical for identical inputs.
func Encode(samples []float64, sampleRate, channels int) []byte {
	dataLen := len(samples) * bytesPerSample
	buf := make([]byte, headerSize+dataLen)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(quantize(s)))
	}
	return buf
}

// quantize clamps to [-1, 1] and scales to int16. Negative values scale by
// 32768 and non-negative by 32767 so +1.0 cannot overflow int16.
func quantize(s float64) int16 {
	if s < -1.0 {
		s = -1.0
	} else if s > 1.0 {
		s = 1.0
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// DecodeBase64PCM16 converts a provider's base64 raw PCM16 payload into
// normalized samples in [-1, 1). sampleRate documents the stream's rate for
// callers; the provider already emits samples at that rate, so it does not
// alter decoding.
func DecodeBase64PCM16(payload string, sampleRate int) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	if len(raw)%bytesPerSample != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(raw))
	}

	samples := make([]float64, len(raw)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}
