package shared

import (
	"context"

	"github.com/google/uuid"
)

type sessionContextKey struct{}

// Identity describes the authenticated caller scoping every read and write.
type Identity struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// IdentityFromContext resolves the caller identity from the request session.
// Both the user and company must be present; otherwise ErrCompanyContext.
func IdentityFromContext(ctx context.Context) (Identity, error) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Identity{}, ErrCompanyContext
	}
	userID, err := uuid.Parse(sess.User())
	if err != nil {
		return Identity{}, ErrCompanyContext
	}
	companyID, err := uuid.Parse(sess.Company())
	if err != nil {
		return Identity{}, ErrCompanyContext
	}
	return Identity{UserID: userID, CompanyID: companyID}, nil
}
