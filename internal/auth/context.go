package auth

import "context"

type contextKey string

const (
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
	contextKeyName    contextKey = "auth.name"
)

// WithIdentity stores the session identity in context.
func WithIdentity(ctx context.Context, role Role, subject, name string) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	ctx = context.WithValue(ctx, contextKeyName, name)
	return ctx
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts the provider uid from context.
func SubjectFromContext(ctx context.Context) string {
	return stringValue(ctx, contextKeySubject)
}

// NameFromContext extracts the display name from context.
func NameFromContext(ctx context.Context) string {
	return stringValue(ctx, contextKeyName)
}

// Actor names the caller for audit and command records: the display name
// when known, else the subject.
func Actor(ctx context.Context) string {
	if name := NameFromContext(ctx); name != "" {
		return name
	}
	return SubjectFromContext(ctx)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
