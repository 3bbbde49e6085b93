// Package wavio decodes and encodes WAV files for the pipeline's interchange
// format: mono 16-bit PCM at the project sample rate. Multi-channel input is
// downmixed to mono at this boundary so the compositor only ever sees one
// channel.
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
)

// Static errors for malformed or unsupported WAV data.
var (
	ErrNotWav           = errors.New("not a RIFF/WAVE file")
	ErrNoFormatChunk    = errors.New("missing fmt chunk")
	ErrNoDataChunk      = errors.New("missing data chunk")
	ErrUnsupportedCodec = errors.New("only 16-bit PCM is supported")
)

// RIFF layout constants.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16

	pcmFormatTag  = 1
	pcmBitDepth   = 16
	bytesPerFrame = 2

	sampleScale = 32768.0
	sampleMax   = 32767
	sampleMin   = -32768
)

// Decode parses WAV bytes into a mono Clip. Stereo and wider layouts are
// averaged across channels.
func Decode(data []byte) (core.Clip, error) {
	if len(data) < riffHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return core.Clip{}, ErrNotWav
	}

	var (
		channels   int
		sampleRate int
		haveFormat bool
		pcm        []byte
	)

	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		body := data[offset+chunkHeaderSize:]
		if chunkSize > len(body) {
			chunkSize = len(body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkMinSize {
				return core.Clip{}, ErrNoFormatChunk
			}

			formatTag := int(binary.LittleEndian.Uint16(body[0:2]))
			bitDepth := int(binary.LittleEndian.Uint16(body[14:16]))

			if formatTag != pcmFormatTag || bitDepth != pcmBitDepth {
				return core.Clip{}, fmt.Errorf(
					"%w: format tag %d, bit depth %d", ErrUnsupportedCodec, formatTag, bitDepth,
				)
			}

			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFormat = true
		case "data":
			pcm = body[:chunkSize]
		}

		// Chunks are word-aligned.
		offset += chunkHeaderSize + chunkSize + chunkSize%2
	}

	if !haveFormat || channels == 0 {
		return core.Clip{}, ErrNoFormatChunk
	}

	if pcm == nil {
		return core.Clip{}, ErrNoDataChunk
	}

	return core.Clip{
		SampleRate: sampleRate,
		Samples:    downmix(pcm, channels),
	}, nil
}

// downmix converts interleaved 16-bit PCM to mono float64 in [-1, 1].
func downmix(pcm []byte, channels int) []float64 {
	frameSize := bytesPerFrame * channels
	frames := len(pcm) / frameSize

	samples := make([]float64, frames)

	for frame := range frames {
		sum := 0.0

		for channel := range channels {
			at := frame*frameSize + channel*bytesPerFrame
			value := int16(binary.LittleEndian.Uint16(pcm[at : at+2]))
			sum += float64(value)
		}

		samples[frame] = sum / (float64(channels) * sampleScale)
	}

	return samples
}

// Encode writes mono float64 samples as a 16-bit PCM WAV file. Samples outside
// [-1, 1] are clipped at this boundary; the mixer itself never clips.
func Encode(samples []float64, sampleRate int) []byte {
	dataSize := len(samples) * bytesPerFrame
	out := make([]byte, 0, riffHeaderSize+chunkHeaderSize*2+fmtChunkMinSize+dataSize)

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+chunkHeaderSize+fmtChunkMinSize+chunkHeaderSize+dataSize))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, fmtChunkMinSize)
	out = binary.LittleEndian.AppendUint16(out, pcmFormatTag)
	out = binary.LittleEndian.AppendUint16(out, 1) // mono
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*bytesPerFrame))
	out = binary.LittleEndian.AppendUint16(out, bytesPerFrame)
	out = binary.LittleEndian.AppendUint16(out, pcmBitDepth)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))

	for _, sample := range samples {
		scaled := int(math.Round(sample * sampleScale))
		if scaled > sampleMax {
			scaled = sampleMax
		}

		if scaled < sampleMin {
			scaled = sampleMin
		}

		out = binary.LittleEndian.AppendUint16(out, uint16(int16(scaled)))
	}

	return out
}
