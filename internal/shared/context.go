package shared

import "context"

// Role enumerates the permission levels the core distinguishes.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Actor identifies who is performing an operation and which shop they are
// scoped to. It is the permission source consumed by the services.
type Actor struct {
	ID     string
	Role   Role
	ShopID string
}

// IsAdmin reports whether the actor holds the privileged role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccessShop reports whether the actor may touch the given shop's data.
func (a Actor) CanAccessShop(shopID string) bool {
	return a.IsAdmin() || a.ShopID == shopID
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
