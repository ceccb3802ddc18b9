//go:build opus

package audioconv

import (
	"io"

	popus "github.com/pekim/opus"
)

const opusRate = 48000

func decodeOpus(r io.ReadSeeker) ([]float32, int, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	defer dec.Destroy()

	channels := max(dec.ChannelCount(), 1)

	var pcm []float32
	buf := make([]int16, opusRate*channels/2)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm = append(pcm, int16ToFloat(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}

	return Downmix(pcm, channels), opusRate, nil
}
