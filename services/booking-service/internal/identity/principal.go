// Package identity models the authenticated caller handed over by the gateway and
// the instructor directory projected from identity events.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleInstructor Role = "instructor"
	RoleMember     Role = "member"
)

const (
	HeaderUserID       = "X-User-Id"
	HeaderRole         = "X-Role"
	HeaderInstructorID = "X-Instructor-Id"
)

// Principal is an already-authenticated caller.
type Principal struct {
	UserID       string
	Role         Role
	InstructorID string
}

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanManageAvailability: admins for anyone, instructors for themselves.
func (p Principal) CanManageAvailability(instructorID string) bool {
	if !p.Authenticated() {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.Role == RoleInstructor && p.InstructorID != "" && p.InstructorID == instructorID
}

func (p Principal) CanBook() bool {
	if !p.Authenticated() {
		return false
	}
	switch p.Role {
	case RoleAdmin, RoleStaff, RoleInstructor, RoleMember:
		return true
	}
	return false
}

func (p Principal) CanViewStats(instructorID string) bool {
	if instructorID == "" {
		return p.Authenticated() && p.IsAdmin()
	}
	return p.CanManageAvailability(instructorID)
}

// CanCancel allows the requester, the instructor who owns the appointment, and admins.
func (p Principal) CanCancel(requesterID, instructorID string) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsAdmin() || p.UserID == requesterID || p.CanManageAvailability(instructorID)
}

// Require returns ErrUnauthenticated or ErrForbidden when allowed is false.
func (p Principal) Require(allowed bool) error {
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !allowed {
		return apperr.ErrForbidden
	}
	return nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(ctxKey{}).(Principal)
	return p
}

// FromHeaders reads the principal the gateway attached to the request.
func FromHeaders(h http.Header) Principal {
	return Principal{
		UserID:       strings.TrimSpace(h.Get(HeaderUserID)),
		Role:         Role(strings.ToLower(strings.TrimSpace(h.Get(HeaderRole)))),
		InstructorID: strings.TrimSpace(h.Get(HeaderInstructorID)),
	}
}

// Middleware stores the gateway principal in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), FromHeaders(r.Header))))
	})
}
