package permissions

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/signhub/signhub/internal/content"
	"github.com/signhub/signhub/internal/shared"
)

// Registry maps entity kind tags to the provider that loads them. The set of
// kinds is fixed when the registry is built.
type Registry struct {
	providers map[string]content.Provider
}

// NewRegistry builds a Registry from kind tag to provider.
func NewRegistry(providers map[string]content.Provider) *Registry {
	copied := make(map[string]content.Provider, len(providers))
	for kind, p := range providers {
		copied[normalizeKind(kind)] = p
	}
	return &Registry{providers: copied}
}

// Lookup returns the provider for kind. The first rune of kind is lower-cased,
// so "Campaign" and "campaign" are the same kind.
func (r *Registry) Lookup(kind string) (content.Provider, error) {
	p, ok := r.providers[normalizeKind(kind)]
	if !ok {
		return nil, fmt.Errorf("permissions: %q: %w", kind, shared.ErrUnknownEntityKind)
	}
	return p, nil
}

// Resolve loads the object of kind with the given id.
func (r *Registry) Resolve(ctx context.Context, kind string, objectID int64) (content.Entity, error) {
	if kind == "" {
		return nil, shared.InvalidInput("entity", "Permissions requested without an entity")
	}
	if objectID == 0 {
		return nil, shared.InvalidInput("objectId", "Permissions requested without an object")
	}
	p, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	entity, err := p.GetByID(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("permissions: load %s %d: %w", kind, objectID, err)
	}
	return entity, nil
}

func normalizeKind(kind string) string {
	r, size := utf8.DecodeRuneInString(kind)
	if r == utf8.RuneError {
		return kind
	}
	return string(unicode.ToLower(r)) + kind[size:]
}
