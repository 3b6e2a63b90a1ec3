// Package pipeline runs the annotation stages in their fixed order, persists
// each stage's output under the run directory, and resumes from persisted
// output.
package pipeline
