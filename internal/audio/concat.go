package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
)

// Concat joins the WAV files in inputs into output, in order. No inputs
// produce no file and one input is copied byte for byte. With several
// inputs every file must share the first file's channel count, sample width
// and frame rate; otherwise ErrSynthesis is returned and output is not
// written.
func Concat(inputs []string, output string) error {
	switch len(inputs) {
	case 0:
		return nil
	case 1:
		return copyFile(inputs[0], output)
	}

	first, firstBuf, err := readPCM(inputs[0])
	if err != nil {
		return err
	}

	data := append([]int(nil), firstBuf.Data...)
	for _, path := range inputs[1:] {
		info, buf, err := readPCM(path)
		if err != nil {
			return err
		}
		if !info.SameFormat(first) {
			return fmt.Errorf("%w: %s (%d ch, %d Hz, %d bit) does not match %s (%d ch, %d Hz, %d bit)",
				ErrSynthesis, path, info.Channels, info.SampleRate, info.BitDepth,
				inputs[0], first.Channels, first.SampleRate, first.BitDepth)
		}
		data = append(data, buf.Data...)
	}

	return writeWAV(output, &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: first.Channels, SampleRate: first.SampleRate},
		Data:           data,
		SourceBitDepth: first.BitDepth,
	})
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	_, err = io.Copy(destination, source)
	return err
}
