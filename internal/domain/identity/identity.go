package identity

import (
	"context"
	"errors"
)

var ErrUnknownRole = errors.New("identity: unknown role")

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

func ToRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// Identity is the authenticated principal supplied by the identity service
// for every request. For vendors, UserID is the vendor identifier.
type Identity struct {
	UserID string
	Role   Role
}

type ctxKey struct{}

func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
