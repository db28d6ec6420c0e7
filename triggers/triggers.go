package triggers

import (
	"context"

	"github.com/zoobzio/chainz"
)

// Runner is the chain surface the adapters drive: a named unit that executes
// a context to completion and never returns an error. *chainz.Chain satisfies
// Runner directly.
type Runner interface {
	Name() chainz.Name
	Run(ctx context.Context, input chainz.Ctx) chainz.Ctx
}
