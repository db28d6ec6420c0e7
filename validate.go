package chainz

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validate returns middleware that checks the flowing context against a
// schema function. A schema failure is recorded as the context's error
// value - data, not control flow - so the chain's usual short-circuiting
// takes over and output middleware still observe the failure. A passing
// context flows through untouched with no error key added.
//
// Schema functions receive the Go context for validators that consult
// external state; pure validators can ignore it. See RequireFields and
// RequireKinds for ready-made schemas.
//
// Panics if schema is nil, as this indicates a programming error.
//
// Example:
//
//	chain := chainz.NewChain("signup", createAccount).
//	    OnInput(chainz.Validate("signup-schema", chainz.RequireFields("email", "password")))
func Validate(name Name, schema func(context.Context, Ctx) error) Func {
	if schema == nil {
		panic("chainz.Validate: nil schema for " + name)
	}
	return Apply(name, func(ctx context.Context, data Ctx) (Ctx, error) {
		if err := schema(ctx, data); err != nil {
			return data.WithError(err), nil
		}
		return data, nil
	})
}

// RequireFields returns a schema requiring every named field to be present
// and non-nil. The failure message lists the missing fields in the order
// they were declared.
func RequireFields(fields ...string) func(context.Context, Ctx) error {
	return func(_ context.Context, data Ctx) error {
		var missing []string
		for _, field := range fields {
			if v, ok := data[field]; !ok || v == nil {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

// RequireKinds returns a schema checking that each named field, when present
// and non-nil, has the wanted reflect.Kind. Absent and nil fields pass -
// combine with RequireFields when presence is also required.
func RequireKinds(kinds map[string]reflect.Kind) func(context.Context, Ctx) error {
	return func(_ context.Context, data Ctx) error {
		var problems []string
		for field, want := range kinds {
			v, ok := data[field]
			if !ok || v == nil {
				continue
			}
			if got := reflect.ValueOf(v).Kind(); got != want {
				problems = append(problems, fmt.Sprintf("field %s: expected %s, got %s", field, want, got))
			}
		}
		if len(problems) > 0 {
			sort.Strings(problems)
			return errors.New(strings.Join(problems, "; "))
		}
		return nil
	}
}
