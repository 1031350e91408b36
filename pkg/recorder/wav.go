package recorder

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeader is the canonical 44-byte RIFF/WAVE PCM header. Size fields are
// written as zero at open and patched on close once the data length is known.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data bytes
}

type wavWriter struct {
	f           *os.File
	sampleRate  int
	numChannels int
	dataBytes   uint32
}

func newWavWriter(path string, sampleRate, numChannels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	w := &wavWriter{f: f, sampleRate: sampleRate, numChannels: numChannels}
	if err := w.writeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	const bitsPerSample = 16
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + w.dataBytes,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(w.numChannels),
		SampleRate:    uint32(w.sampleRate),
		ByteRate:      uint32(w.sampleRate) * uint32(w.numChannels) * bitsPerSample / 8,
		BlockAlign:    uint16(w.numChannels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: w.dataBytes,
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}

func (w *wavWriter) Write(pcm []byte) error {
	n, err := w.f.Write(pcm)
	w.dataBytes += uint32(n)
	if err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// Close patches the header size fields and closes the file.
func (w *wavWriter) Close() error {
	if err := w.writeHeader(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
