package client

import (
	"context"

	"github.com/menta2k/design-extractor/pkg/types"
)

// VisionClient is implemented by the local vision model backends
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	SuggestDesign(ctx context.Context, model, prompt, imgB64 string) (*types.DesignHints, error)
}
