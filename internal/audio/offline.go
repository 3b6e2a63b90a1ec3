package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unicode/utf8"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/zeebo/blake3"
)

const (
	offlineSampleRate = 22050
	offlineBitDepth   = 16
	wavFormatPCM      = 1
)

// OfflineEngine writes a sine tone whose pitch and length are derived from
// the text, so the same text always produces the same file.
type OfflineEngine struct {
	sampleRate int
}

// NewOfflineEngine creates an offline engine at 22050 Hz, mono, 16-bit.
func NewOfflineEngine() *OfflineEngine {
	return &OfflineEngine{sampleRate: offlineSampleRate}
}

// Name implements Engine.
func (e *OfflineEngine) Name() string {
	return EngineOffline
}

// SynthesizeToPath implements Engine. Voice and language are ignored.
func (e *OfflineEngine) SynthesizeToPath(ctx context.Context, text, outputPath, _, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	duration := min(1.5, max(0.25, float64(utf8.RuneCountInString(text))*0.02))
	frequency := 440 + float64(textHash(text)%220)
	frames := int(float64(e.sampleRate) * duration)

	data := make([]int, frames)
	for i := range data {
		data[i] = int(32767 * math.Sin(2*math.Pi*frequency*float64(i)/float64(e.sampleRate)))
	}

	return writeWAV(outputPath, &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: e.sampleRate},
		Data:           data,
		SourceBitDepth: offlineBitDepth,
	})
}

func textHash(text string) uint64 {
	sum := blake3.Sum256([]byte(text))
	return binary.LittleEndian.Uint64(sum[:8])
}

// writeWAV encodes buf as PCM WAV at outputPath, creating parent directories.
func writeWAV(outputPath string, buf *goaudio.IntBuffer) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, buf.Format.SampleRate, buf.SourceBitDepth, buf.Format.NumChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio frames: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}
	return nil
}
