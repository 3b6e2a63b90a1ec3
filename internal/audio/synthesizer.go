package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/observability"
)

// Synthesizer adds audio annotations to a document using one engine and one
// cache directory.
type Synthesizer struct {
	engine   Engine
	cacheDir string
	voice    string
	language string
	logger   zerolog.Logger

	mu    sync.Mutex
	known map[string]string
	calls int
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithLogger sets the synthesizer's logger.
func WithLogger(logger zerolog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a synthesizer. Every synthesis goes through a
// FallbackEngine that retries once with the offline engine, so a broken
// cloud engine degrades to tones instead of missing audio.
func NewSynthesizer(engine Engine, config *Config, language string, opts ...SynthesizerOption) *Synthesizer {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Synthesizer{
		cacheDir: config.CacheDir,
		voice:    config.Voice,
		language: language,
		logger:   zerolog.Nop(),
		known:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewFallbackEngine(engine, NewOfflineEngine(), config.MinDuration, s.logger)
	return s
}

// Calls returns how many clips were synthesized, not counting cache hits.
func (s *Synthesizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// AnnotateAudio returns a copy of text with audio paths on every lexical
// token, every segment and every page. Items that cannot be synthesized are
// logged and left without audio; only cancellation and an unusable cache
// directory stop the pass.
func (s *Synthesizer) AnnotateAudio(ctx context.Context, text *document.Text) (*document.Text, error) {
	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio cache: %w", err)
	}

	out := text.Clone()
	for p := range out.Pages {
		page := &out.Pages[p]
		var segmentAudio []string

		for si := range page.Segments {
			seg := &page.Segments[si]
			if err := s.annotateTokens(ctx, seg, p, si); err != nil {
				return nil, err
			}

			path, err := s.ensure(ctx, LevelSegment, seg.Surface)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Warn().Err(err).Int("page", p).Int("segment", si).Msg("segment audio skipped")
				continue
			}
			if path != "" {
				seg.Annotations.Set(document.KeyAudio, path)
				segmentAudio = append(segmentAudio, path)
			}
		}

		path, err := s.pageAudio(segmentAudio)
		if err != nil {
			s.logger.Warn().Err(err).Int("page", p).Msg("page audio skipped")
			continue
		}
		if path != "" {
			page.Annotations.Set(document.KeyAudio, path)
		}
	}

	out.Normalize(s.language)
	s.logger.Info().
		Int("synthesized", s.Calls()).
		Str("cache_dir", s.cacheDir).
		Msg("audio annotation complete")
	return out, nil
}

func (s *Synthesizer) annotateTokens(ctx context.Context, seg *document.Segment, page, segment int) error {
	mweText := mweTexts(seg)
	for ti := range seg.Tokens {
		tok := &seg.Tokens[ti]
		if !document.IsLexical(tok.Surface) {
			continue
		}

		speak := tok.Annotations.String(document.KeyLemma)
		if id := tok.Annotations.String(document.KeyMWEID); id != "" && mweText[id] != "" {
			speak = mweText[id]
		}
		if speak == "" {
			speak = tok.Surface
		}

		path, err := s.ensure(ctx, LevelToken, speak)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Int("page", page).Int("segment", segment).Int("token", ti).Msg("token audio skipped")
			continue
		}
		if path != "" {
			tok.Annotations.Set(document.KeyAudio, path)
		}
	}
	return nil
}

// mweTexts picks one spoken form per MWE in a segment: the shared lemma when
// the members have one, else the MWE's recorded tokens, else the member
// surfaces joined by spaces.
func mweTexts(seg *document.Segment) map[string]string {
	members := map[string][]string{}
	lemmas := map[string]string{}
	for _, tok := range seg.Tokens {
		id := tok.Annotations.String(document.KeyMWEID)
		if id == "" {
			continue
		}
		members[id] = append(members[id], tok.Surface)
		if _, ok := lemmas[id]; !ok {
			if lemma := tok.Annotations.String(document.KeyLemma); lemma != "" {
				lemmas[id] = lemma
			}
		}
	}
	if len(members) == 0 {
		return nil
	}

	recorded := map[string][]string{}
	for _, mwe := range seg.MWEs() {
		recorded[mwe.ID] = mwe.Tokens
	}

	out := make(map[string]string, len(members))
	for id, surfaces := range members {
		switch {
		case lemmas[id] != "":
			out[id] = lemmas[id]
		case len(recorded[id]) > 0:
			out[id] = strings.Join(recorded[id], " ")
		default:
			out[id] = strings.Join(surfaces, " ")
		}
	}
	return out
}

// ensure returns the cached clip for text at level, synthesizing it if the
// file does not exist yet. Blank text yields no clip.
func (s *Synthesizer) ensure(ctx context.Context, level, text string) (string, error) {
	spoken := strings.TrimSpace(text)
	if spoken == "" {
		return "", nil
	}

	key := CacheKey(level, s.language, s.voice, text)
	s.mu.Lock()
	path, ok := s.known[key]
	s.mu.Unlock()
	if ok {
		return path, nil
	}

	path = filepath.Join(s.cacheDir, CacheFilename(key))
	if _, err := os.Stat(path); err == nil {
		observability.RecordAudioCacheHit()
	} else {
		if err := s.synthesize(ctx, spoken, path); err != nil {
			return "", fmt.Errorf("%s %q: %w", level, spoken, err)
		}
	}

	s.mu.Lock()
	s.known[key] = path
	s.mu.Unlock()
	return path, nil
}

// synthesize writes to a temporary name and renames it into place so a
// reader never sees a partial cache file.
func (s *Synthesizer) synthesize(ctx context.Context, text, path string) error {
	tmp := strings.TrimSuffix(path, ".wav") + "." + uuid.NewString() + ".tmp.wav"

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := s.engine.SynthesizeToPath(ctx, text, tmp, s.voice, s.language); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move audio into cache: %w", err)
	}
	return nil
}

// pageAudio concatenates a page's segment clips into one cached file.
func (s *Synthesizer) pageAudio(segments []string) (string, error) {
	if len(segments) == 0 {
		return "", nil
	}

	key := LevelPage + ":" + strings.Join(segments, ":")
	path := filepath.Join(s.cacheDir, CacheFilename(key))
	if _, err := os.Stat(path); err == nil {
		observability.RecordAudioCacheHit()
		return path, nil
	}

	tmp := strings.TrimSuffix(path, ".wav") + "." + uuid.NewString() + ".tmp.wav"
	if err := Concat(segments, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move page audio into cache: %w", err)
	}
	return path, nil
}

func recordSynth(engine string, err error) {
	observability.RecordAudioSynth(engine, err)
}
