package synth

import (
	"errors"
	"fmt"
)

var (
	ErrDecodeSpec  = errors.New("synth: decode QoS spec")
	ErrInvalidSpec = errors.New("synth: invalid QoS spec")
)

func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
