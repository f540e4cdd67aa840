package rbac

import "context"

// User types as stored on users.user_type_id.
const (
	UserTypeSuperAdmin = 1
	UserTypeGroupAdmin = 2
	UserTypeUser       = 3
)

// Actor describes the authenticated user performing an operation.
type Actor struct {
	UserID     int64
	UserTypeID int
	GroupIDs   []int64
}

// IsSuperAdmin reports whether the actor bypasses object permissions.
func (a Actor) IsSuperAdmin() bool {
	return a.UserTypeID == UserTypeSuperAdmin
}

// InGroup reports membership of the given user group.
func (a Actor) InGroup(groupID int64) bool {
	for _, id := range a.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor placed by Middleware.RequireActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
