package engine

import "errors"

var (
	// ErrStaging indicates an image could not be placed into, or removed
	// from, the managed extension directory.
	ErrStaging = errors.New("staging failed")

	// ErrInternal indicates a broken invariant, such as an unmerge entry
	// without a storage path.
	ErrInternal = errors.New("internal error")

	// ErrConflict indicates the plan would clobber a path it does not own.
	ErrConflict = errors.New("conflict detected")

	// ErrResolve indicates a desired image's identity could not be read.
	ErrResolve = errors.New("failed to resolve image")

	// ErrRefresh indicates the overlay tool rejected the refresh.
	ErrRefresh = errors.New("refresh failed")
)
