package middleware

import "context"

type contextKey string

const (
	ctxRegisterID   contextKey = "register_id"
	ctxEmployeeID   contextKey = "employee_id"
	ctxEmployeeName contextKey = "employee_name"
)

func RegisterIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRegisterID).(string); ok {
		return v
	}
	return ""
}

func EmployeeIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmployeeID).(string); ok {
		return v
	}
	return ""
}

func EmployeeNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmployeeName).(string); ok {
		return v
	}
	return ""
}

// WithRegisterSession seeds the context with register session identity; used
// by tests and the auth middleware.
func WithRegisterSession(ctx context.Context, registerID, employeeID, employeeName string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxRegisterID, registerID)
	ctx = context.WithValue(ctx, ctxEmployeeID, employeeID)
	return context.WithValue(ctx, ctxEmployeeName, employeeName)
}
