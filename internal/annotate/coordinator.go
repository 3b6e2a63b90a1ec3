// Package annotate fans a per-segment prompt out over a whole document and
// merges the model responses back into the tree.
package annotate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/observability"
)

// Client is the single-call JSON contract the coordinator needs.
type Client interface {
	ChatJSON(ctx context.Context, prompt string, opts ...llm.CallOption) (map[string]any, error)
}

// PromptBuilder renders the prompt for one segment.
type PromptBuilder func(seg *document.Segment) (string, error)

// Request describes one per-segment annotation pass.
type Request struct {
	Operation string
	Language  string
	Build     PromptBuilder
	CallOpts  []llm.CallOption
}

// Coordinator runs one model call per segment with bounded concurrency.
type Coordinator struct {
	client Client
	limit  int
	logger zerolog.Logger
}

// NewCoordinator creates a coordinator. A limit of zero or less runs every
// segment call at once.
func NewCoordinator(client Client, limit int, logger zerolog.Logger) *Coordinator {
	return &Coordinator{client: client, limit: limit, logger: logger}
}

// Limit returns the configured concurrency cap.
func (c *Coordinator) Limit() int {
	return c.limit
}

// Annotate issues one call per segment, waits for all of them, and merges
// every response into a copy of text in document order. The first failure
// cancels the remaining calls and is returned.
func (c *Coordinator) Annotate(ctx context.Context, text *document.Text, req Request) (*document.Text, error) {
	out := text.Clone()
	refs := out.Refs()
	responses := make([]map[string]any, len(refs))

	prompts := make([]string, len(refs))
	for i, ref := range refs {
		prompt, err := req.Build(out.Segment(ref))
		if err != nil {
			return nil, fmt.Errorf("%s: build prompt for page %d segment %d: %w", req.Operation, ref.Page, ref.Segment, err)
		}
		prompts[i] = prompt
	}

	baseOpID := observability.NewOpID(req.Operation)
	g, gctx := errgroup.WithContext(ctx)
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}

	for i, ref := range refs {
		opID := fmt.Sprintf("%s-p%d-s%d", baseOpID, ref.Page, ref.Segment)
		opts := append(append([]llm.CallOption(nil), req.CallOpts...), llm.WithOpID(opID))

		g.Go(func() error {
			resp, err := c.client.ChatJSON(gctx, prompts[i], opts...)
			if err != nil {
				return fmt.Errorf("%s: page %d segment %d: %w", req.Operation, ref.Page, ref.Segment, err)
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ref := range refs {
		resp := responses[i]
		if resp == nil {
			continue
		}
		seg, err := document.SegmentFromMap(resp)
		if err != nil {
			return nil, fmt.Errorf("%s: page %d segment %d: %w", req.Operation, ref.Page, ref.Segment, err)
		}
		*out.Segment(ref) = document.MergeSegment(*out.Segment(ref), seg)

		if hasDocumentFields(resp) {
			if doc, err := document.TextFromMap(resp); err == nil {
				document.MergeDocumentFields(out, doc)
			}
		}
	}

	out.Normalize(req.Language)
	c.logger.Debug().
		Str("operation", req.Operation).
		Int("segments", len(refs)).
		Int("limit", c.limit).
		Msg("annotation pass complete")
	return out, nil
}

// hasDocumentFields reports whether a response carries document-level
// fields. A bare segment response has its own "surface", so surface counts
// only when the segment arrives wrapped under "segment" or "pages".
func hasDocumentFields(m map[string]any) bool {
	for _, k := range []string{"l2", "l1", "title"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	if _, ok := m["surface"]; ok {
		_, wrapped := m["segment"]
		_, paged := m["pages"]
		return wrapped || paged
	}
	return false
}
