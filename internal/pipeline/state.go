// Package pipeline sequences one template run: extraction, value entry,
// rendering, optional conversion and delivery.
package pipeline

import (
	"fmt"

	"github.com/hyperjump/docfill/internal/docerr"
)

// State is the position of a Run in its lifecycle.
type State int

const (
	AwaitingTemplate State = iota
	Extracted
	AwaitingValues
	Rendered
	ConversionRequested
	Converted
	Skipped
	Delivered
)

var stateNames = [...]string{
	AwaitingTemplate:    "awaiting_template",
	Extracted:           "extracted",
	AwaitingValues:      "awaiting_values",
	Rendered:            "rendered",
	ConversionRequested: "conversion_requested",
	Converted:           "converted",
	Skipped:             "skipped",
	Delivered:           "delivered",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further operation is accepted.
func (s State) Terminal() bool {
	return s == Delivered
}

// guard returns an invalid-state error unless cur is one of allowed.
func guard(op string, cur State, allowed ...State) error {
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	return docerr.New(docerr.KindInvalidState, op, fmt.Errorf("not allowed in state %s", cur))
}
