package wav

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Writer writes mono 16-bit PCM WAV files from normalized float samples.
type Writer struct {
	file           *os.File
	sampleRate     uint32
	samplesWritten uint32
}

// NewWriter creates a WAV file writer. The header is finalized on Close.
func NewWriter(filename string, sampleRate int) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	writer := &Writer{file: file, sampleRate: uint32(sampleRate)}
	if err := writer.writeHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return writer, nil
}

// WriteSamples appends normalized float samples, clipping to [-1, 1].
func (w *Writer) WriteSamples(samples []float32) error {
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		intSample := int16(s * 32767)
		if err := binary.Write(w.file, binary.LittleEndian, intSample); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		w.samplesWritten++
	}
	return nil
}

// Close finalizes the WAV header with the actual data size.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}

	dataSize := w.samplesWritten * 2
	chunkSize := dataSize + 36

	if _, err := w.file.Seek(4, 0); err != nil {
		return fmt.Errorf("failed to seek to chunk size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, chunkSize); err != nil {
		return fmt.Errorf("failed to write chunk size: %w", err)
	}
	if _, err := w.file.Seek(40, 0); err != nil {
		return fmt.Errorf("failed to seek to data size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, dataSize); err != nil {
		return fmt.Errorf("failed to write data size: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) writeHeader() error {
	byteRate := w.sampleRate * 2

	if _, err := w.file.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint32(0)); err != nil { // chunk size placeholder
		return err
	}
	if _, err := w.file.WriteString("WAVE"); err != nil {
		return err
	}
	if _, err := w.file.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint32(16)); err != nil { // fmt chunk size
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint16(1)); err != nil { // PCM
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint16(1)); err != nil { // mono
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, w.sampleRate); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint16(2)); err != nil { // block align
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint16(16)); err != nil { // bits per sample
		return err
	}
	if _, err := w.file.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint32(0)); err != nil { // data size placeholder
		return err
	}
	return nil
}
