// Package transcript buffers speech-recognition fragments into one utterance.
package transcript

import "strings"

// Accumulator collects recognition fragments in arrival order.
// It is not safe for concurrent use.
type Accumulator struct {
	parts []string
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Add appends a fragment.
func (a *Accumulator) Add(fragment string) {
	a.parts = append(a.parts, fragment)
}

// FullText joins all fragments with a single space.
func (a *Accumulator) FullText() string {
	return strings.Join(a.parts, " ")
}

// Reset drops all fragments.
func (a *Accumulator) Reset() {
	a.parts = a.parts[:0]
}

// Len returns the number of buffered fragments.
func (a *Accumulator) Len() int {
	return len(a.parts)
}
