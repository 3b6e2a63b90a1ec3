// Package compiler renders an annotated document as a self-contained HTML
// reader: one page per document page, a lemma concordance with one page per
// lemma, shared static assets, and copies of every referenced audio file.
//
// The compiler only reads the document. Everything it writes lives under
// <output>/html so the directory can be moved or served as is.
package compiler
