package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: conflict")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrUnknownPermission  = errors.New("auth: unknown permission kind")
)

// ForbiddenError carries the static, caller-visible denial reason.
type ForbiddenError struct {
	Check  CheckKind
	Reason string
}

func (e *ForbiddenError) Error() string { return e.Reason }

// Is lets errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }
