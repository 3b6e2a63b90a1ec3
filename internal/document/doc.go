// Package document defines the Text, Page, Segment and Token tree shared by
// every pipeline stage, together with its JSON form and the merge rules used
// when a stage folds model responses back into the tree.
package document
