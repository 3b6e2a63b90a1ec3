package audio

import (
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Info describes a decoded WAV file.
type Info struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Frames     int
	Duration   time.Duration
}

// SameFormat reports whether two files can be concatenated frame for frame.
func (i Info) SameFormat(other Info) bool {
	return i.Channels == other.Channels && i.SampleRate == other.SampleRate && i.BitDepth == other.BitDepth
}

func (i Info) wellFormed() bool {
	switch i.BitDepth {
	case 8, 16, 24, 32:
	default:
		return false
	}
	return i.Channels > 0 && i.SampleRate > 0
}

// Validate checks that path is a readable WAV file with at least one frame
// and a duration of at least minDuration.
func Validate(path string, minDuration time.Duration) (Info, error) {
	info, err := readInfo(path)
	if err != nil {
		return Info{}, err
	}
	if info.Frames <= 0 {
		return info, fmt.Errorf("%w: %s has no audio frames", ErrSynthesis, path)
	}
	if info.Duration < minDuration {
		return info, fmt.Errorf("%w: %s is %s, shorter than %s", ErrSynthesis, path, info.Duration, minDuration)
	}
	return info, nil
}

func readInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Info{}, fmt.Errorf("%w: %s is not a wav file: %v", ErrSynthesis, path, err)
	}
	if err := dec.FwdToPCM(); err != nil || dec.Err() != nil || dec.PCMChunk == nil {
		return Info{}, fmt.Errorf("%w: %s has no PCM data", ErrSynthesis, path)
	}

	info := Info{
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
		BitDepth:   int(dec.BitDepth),
	}
	if !info.wellFormed() {
		return info, fmt.Errorf("%w: %s has malformed parameters (%d channels, %d Hz, %d bit)",
			ErrSynthesis, path, info.Channels, info.SampleRate, info.BitDepth)
	}

	frameSize := info.Channels * ((info.BitDepth-1)/8 + 1)
	info.Frames = dec.PCMSize / frameSize
	info.Duration = time.Duration(float64(info.Frames) / float64(info.SampleRate) * float64(time.Second))
	return info, nil
}

func readPCM(path string) (Info, *goaudio.IntBuffer, error) {
	info, err := readInfo(path)
	if err != nil {
		return Info{}, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return Info{}, nil, fmt.Errorf("%w: failed to read frames from %s: %v", ErrSynthesis, path, err)
	}
	return info, buf, nil
}
