// Package wav reads and writes 16-bit PCM WAV files and converts them to the
// normalized mono frames the recognition engines consume. Multi-channel
// input is downmixed by averaging.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/voxkit/voxkit/pkg/audio"
)

// Header represents a WAV file header.
type Header struct {
	ChunkSize     uint32
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Reader reads WAV files and converts them to audio frames.
type Reader struct {
	file   *os.File
	header Header
}

// NewReader opens filename and parses its WAV header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := &Reader{file: file}
	if err := reader.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if reader.header.BitsPerSample != 16 {
		file.Close()
		return nil, fmt.Errorf("unsupported WAV format: %d bits per sample, want 16", reader.header.BitsPerSample)
	}
	if reader.header.NumChannels == 0 {
		file.Close()
		return nil, fmt.Errorf("invalid WAV header: zero channels")
	}
	return reader, nil
}

// Header returns the parsed WAV header.
func (r *Reader) Header() Header {
	return r.header
}

// ReadFrames reads the whole file as 10ms mono frames. Stereo input is
// downmixed; a trailing partial frame is zero-padded.
func (r *Reader) ReadFrames() ([]audio.Frame, error) {
	samplesPerFrame := int(r.header.SampleRate) / 100
	bytesPerFrame := samplesPerFrame * int(r.header.NumChannels) * 2

	var frames []audio.Frame
	buffer := make([]byte, bytesPerFrame)

	for {
		n, err := io.ReadFull(r.file, buffer)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read audio data: %w", err)
		}
		for i := n; i < bytesPerFrame; i++ {
			buffer[i] = 0
		}

		frames = append(frames, audio.Frame{
			Samples:    downmix(buffer, int(r.header.NumChannels)),
			SampleRate: int(r.header.SampleRate),
		})

		if err == io.ErrUnexpectedEOF {
			break
		}
	}
	return frames, nil
}

// Duration returns the total playback duration of the file.
func (r *Reader) Duration() time.Duration {
	bytesPerSecond := int64(r.header.SampleRate) * int64(r.header.NumChannels) * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(int64(r.header.DataSize) * int64(time.Second) / bytesPerSecond)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// downmix converts interleaved little-endian int16 PCM to normalized mono
// floats, averaging across channels.
func downmix(raw []byte, channels int) []float32 {
	frameCount := len(raw) / (2 * channels)
	out := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * 2
			s := int16(uint16(raw[offset]) | uint16(raw[offset+1])<<8)
			sum += float32(s) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func (r *Reader) readHeader() error {
	var riff [4]byte
	if _, err := io.ReadFull(r.file, riff[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[:]) != "RIFF" {
		return fmt.Errorf("not a RIFF file")
	}

	if err := binary.Read(r.file, binary.LittleEndian, &r.header.ChunkSize); err != nil {
		return fmt.Errorf("failed to read chunk size: %w", err)
	}

	var wave [4]byte
	if _, err := io.ReadFull(r.file, wave[:]); err != nil {
		return fmt.Errorf("failed to read WAVE header: %w", err)
	}
	if string(wave[:]) != "WAVE" {
		return fmt.Errorf("not a WAVE file")
	}

	// Scan chunks until the data chunk
	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r.file, chunkID[:]); err != nil {
			return fmt.Errorf("failed to read chunk ID: %w", err)
		}
		var chunkSize uint32
		if err := binary.Read(r.file, binary.LittleEndian, &chunkSize); err != nil {
			return fmt.Errorf("failed to read chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			var audioFormat uint16
			if err := binary.Read(r.file, binary.LittleEndian, &audioFormat); err != nil {
				return fmt.Errorf("failed to read audio format: %w", err)
			}
			if audioFormat != 1 {
				return fmt.Errorf("unsupported audio format %d, want PCM", audioFormat)
			}
			if err := binary.Read(r.file, binary.LittleEndian, &r.header.NumChannels); err != nil {
				return fmt.Errorf("failed to read channel count: %w", err)
			}
			if err := binary.Read(r.file, binary.LittleEndian, &r.header.SampleRate); err != nil {
				return fmt.Errorf("failed to read sample rate: %w", err)
			}
			// Skip byte rate and block align
			if _, err := r.file.Seek(6, io.SeekCurrent); err != nil {
				return fmt.Errorf("failed to skip fmt fields: %w", err)
			}
			if err := binary.Read(r.file, binary.LittleEndian, &r.header.BitsPerSample); err != nil {
				return fmt.Errorf("failed to read bits per sample: %w", err)
			}
			if chunkSize > 16 {
				if _, err := r.file.Seek(int64(chunkSize-16), io.SeekCurrent); err != nil {
					return fmt.Errorf("failed to skip fmt extension: %w", err)
				}
			}
		case "data":
			r.header.DataSize = chunkSize
			return nil
		default:
			if _, err := r.file.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return fmt.Errorf("failed to skip chunk %q: %w", chunkID, err)
			}
		}
	}
}
