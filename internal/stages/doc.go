// Package stages implements the individual annotation steps of the pipeline.
//
// Whole-document stages (text generation and segmentation phase 1) call the
// model client directly. Per-segment stages (tokenization, translation, MWE
// detection, lemmatization and glossing) build one prompt per segment and
// hand it to the annotation coordinator. The pinyin stage is deterministic
// and makes no model call.
//
// Every stage returns a new document; the input tree is never modified.
package stages
