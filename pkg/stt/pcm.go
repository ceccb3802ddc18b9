package stt

import "encoding/binary"

// PCM16 encodes float samples as little-endian signed 16-bit, as vosk expects.
func PCM16(pcm []float32) []byte {
	out := make([]byte, len(pcm)*2)
	for i, x := range pcm {
		v := max(-1, min(1, x)) * 32767
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
