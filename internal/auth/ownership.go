package auth

import (
	"context"

	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// AuthorizeOwner rejects the identity unless it owns resource. Roles grant no cross-user access.
func AuthorizeOwner[T any](identity *Identity, resource T, ownerOf func(T) string) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if ownerOf(resource) != identity.ID {
		return apperrors.NewForbidden("not authorized to access this resource")
	}
	return nil
}

// LoadOwned fetches a resource and then checks ownership. fetch reports a
// missing record as a not-found error, so callers see 404 only when the record
// does not exist and 403 when it belongs to someone else.
func LoadOwned[T any](ctx context.Context, identity *Identity, fetch func(context.Context) (T, error), ownerOf func(T) string) (T, error) {
	var zero T
	resource, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := AuthorizeOwner(identity, resource, ownerOf); err != nil {
		return zero, err
	}
	return resource, nil
}
