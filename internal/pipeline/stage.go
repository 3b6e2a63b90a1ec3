package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names one step of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageTextGen       Stage = "text_gen"
	StageSegmentation1 Stage = "segmentation_phase_1"
	StageSegmentation2 Stage = "segmentation_phase_2"
	StageTranslation   Stage = "translation"
	StageMWE           Stage = "mwe"
	StageLemma         Stage = "lemma"
	StageGloss         Stage = "gloss"
	StagePinyin        Stage = "pinyin"
	StageAudio         Stage = "audio"
	StageCompileHTML   Stage = "compile_html"
)

// StageOrder is the total order every run follows.
var StageOrder = []Stage{
	StageTextGen,
	StageSegmentation1,
	StageSegmentation2,
	StageTranslation,
	StageMWE,
	StageLemma,
	StageGloss,
	StagePinyin,
	StageAudio,
	StageCompileHTML,
}

var (
	// ErrInvalidStageRange is returned for unknown stages or a start stage
	// that comes after the end stage.
	ErrInvalidStageRange = errors.New("invalid stage range")

	// ErrStageInput is returned before any model call when the input does
	// not satisfy what the start stage needs.
	ErrStageInput = errors.New("stage input error")
)

// Index returns the position of s in StageOrder, or -1.
func (s Stage) Index() int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage before s, or "" for the first stage.
func (s Stage) Previous() Stage {
	if i := s.Index(); i > 0 {
		return StageOrder[i-1]
	}
	return ""
}

// Description is a one-line summary used by the CLI.
func (s Stage) Description() string {
	switch s {
	case StageTextGen:
		return "generate a text from a description"
	case StageSegmentation1:
		return "split raw text into pages and segments"
	case StageSegmentation2:
		return "split segments into tokens"
	case StageTranslation:
		return "translate each segment"
	case StageMWE:
		return "mark multi-word expressions"
	case StageLemma:
		return "add lemma and part of speech"
	case StageGloss:
		return "add word glosses"
	case StagePinyin:
		return "add pinyin (Chinese only)"
	case StageAudio:
		return "synthesize token, segment and page audio"
	case StageCompileHTML:
		return "render HTML pages and concordance"
	default:
		return ""
	}
}

// ParseStage accepts a stage name, ignoring case and surrounding space.
func ParseStage(name string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(name)))
	if stage.Index() < 0 {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidStageRange, name)
	}
	return stage, nil
}

// ValidateRange checks that both stages exist and start does not come after
// end.
func ValidateRange(start, end Stage) error {
	si, ei := start.Index(), end.Index()
	if si < 0 {
		return fmt.Errorf("%w: unknown start stage %q", ErrInvalidStageRange, start)
	}
	if ei < 0 {
		return fmt.Errorf("%w: unknown end stage %q", ErrInvalidStageRange, end)
	}
	if si > ei {
		return fmt.Errorf("%w: %s comes after %s", ErrInvalidStageRange, start, end)
	}
	return nil
}
