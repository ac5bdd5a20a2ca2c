package engine

import "fmt"

// wrap attaches context to a sentinel error while keeping it matchable
// with errors.Is. internal/errx (the helper the teacher imports for this)
// isn't present anywhere in the retrieved pack, so each package that
// needs it, including this one, carries its own two-line equivalent
// rather than fabricating that import.
func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
