package access

import "errors"

var (
	ErrNotFound         = errors.New("access: not found")
	ErrInvalidArgument  = errors.New("access: invalid argument")
	ErrPermissionDenied = errors.New("access: permission denied")
	ErrUnauthenticated  = errors.New("access: unauthenticated")
)
