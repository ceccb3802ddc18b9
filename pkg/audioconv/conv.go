// Package audioconv turns audio files into mono 16 kHz float32 PCM.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int // 0 = no limit
}

type decoder func(r io.ReadSeeker) (pcm []float32, rate int, err error)

// DecodeFile picks a decoder by extension, falling back to sniffing the header.
func DecodeFile(path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := pick(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pcm, rate, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	pcm = Resample(pcm, rate, TargetRate)
	if opt.MaxSamples > 0 && len(pcm) > opt.MaxSamples {
		pcm = pcm[:opt.MaxSamples]
	}
	return pcm, nil
}

func pick(f io.ReadSeeker, ext string) (decoder, error) {
	switch ext {
	case ".wav":
		return decodeWAV, nil
	case ".mp3":
		return decodeMP3, nil
	case ".ogg", ".oga", ".opus":
		return decodeOgg, nil
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV, nil
	case "OggS":
		return decodeOgg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))

	pcm := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float32(math.Max(-1, math.Min(1, float64(v)*scale)))
	}

	channels, rate := 1, 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	return Downmix(pcm, channels), rate, nil
}

func decodeMP3(r io.ReadSeeker) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, 0, err
	}

	samples := make([]int16, raw.Len()/2)
	if err := binary.Read(&raw, binary.LittleEndian, samples); err != nil {
		return nil, 0, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always yields interleaved stereo
	return Downmix(int16ToFloat(samples), 2), rate, nil
}

func decodeOgg(r io.ReadSeeker) ([]float32, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err == nil {
		if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
			return nil, 0, errors.New("invalid ogg/vorbis stream")
		}
		return Downmix(pcm, format.Channels), format.SampleRate, nil
	}

	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return nil, 0, serr
	}
	pcm, rate, oerr := decodeOpus(r)
	if oerr != nil {
		return nil, 0, fmt.Errorf("not vorbis (%v) and not opus (%w)", err, oerr)
	}
	return pcm, rate, nil
}

func int16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768.0
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	out := make([]float32, len(in)/channels)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between rates with linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	ratio := float64(to) / float64(from)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	last := len(in) - 1

	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(i0))
		out[i] = in[i0]*(1-frac) + in[i0+1]*frac
	}
	return out
}
