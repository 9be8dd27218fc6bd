package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrOddPayload is returned by [DecodeChunk] when the decoded byte count is
// not a multiple of the int16 sample size.
var ErrOddPayload = errors.New("audio: encoded payload has odd byte count")

// EncodeFrame converts one frame of float samples into the text-safe wire
// encoding: each sample is scaled by 32768, clamped to [-32768, 32767],
// truncated to int16, packed little-endian, and base64-encoded.
//
// Samples outside [-1.0, 1.0] clamp to the int16 range; they never wrap.
func EncodeFrame(frame Frame) string {
	pcm := make([]byte, len(frame)*2)
	for i, s := range frame {
		v := Quantize(s)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

// Quantize converts a single float sample to its clamped int16 value.
// Exposed separately so the capture tape can share the exact wire
// arithmetic.
func Quantize(s float32) int16 {
	// Clamp in float space: conversion of an out-of-range float to an
	// integer type is not defined, so the bounds check must come first.
	scaled := float64(s) * 32768
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// DecodeChunk is the inverse wire path: it base64-decodes a payload and
// unpacks little-endian int16 samples. It is a pure function; malformed
// input returns an error and the caller drops the chunk.
func DecodeChunk(encoded string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("audio: decode chunk: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, ErrOddPayload
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return samples, nil
}
