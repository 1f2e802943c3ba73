package analyzer

import (
	"context"
	"errors"

	"github.com/voxsurf/voxsurf/api/schemas"
)

// ErrDisabled is returned by Disabled for every classification request.
var ErrDisabled = errors.New("text analysis is disabled: no API key configured")

// Disabled is a TextAnalyzer that always fails. It lets the server run
// without an API key; page descriptions degrade to the title alone.
type Disabled struct{}

var _ schemas.TextAnalyzer = Disabled{}

// Classify implements schemas.TextAnalyzer.
func (Disabled) Classify(_ context.Context, _ string) (*schemas.Classification, error) {
	return nil, ErrDisabled
}
