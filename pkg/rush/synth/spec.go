// Package synth translates a JSON QoS spec into the app network that
// implements a synthetic network shaper between two Linux interfaces.
package synth

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// QoS describes the shaping applied to one direction of one link
// (either the network's default link or a single labeled flow).
type QoS struct {
	Rate            uint64  `json:"rate" validate:"gte=0"`
	Loss            float64 `json:"loss" validate:"gte=0,lte=1"`
	LatencyMS       uint64  `json:"latency"`
	JitterMS        uint64  `json:"jitter"`
	JitterStrength  float64 `json:"jitter_strength" validate:"gte=0,lte=1"`
	ReorderPackets  bool    `json:"reorder_packets"`
}

// Link bundles the ingress and egress QoS applied to traffic flowing in
// each direction across a link.
type Link struct {
	Ingress QoS `json:"ingress" validate:"required"`
	Egress  QoS `json:"egress" validate:"required"`
}

// FlowMatch is the flow-classification tuple for one labeled flow, shaped
// like flow.Flow but JSON-friendly (no Go-specific Dir field: Dir is
// supplied separately per direction when the network is built).
type FlowMatch struct {
	IP       uint32 `json:"ip"`
	Protocol uint8  `json:"protocol"`
	PortMin  uint16 `json:"port_min"`
	PortMax  uint16 `json:"port_max"`
}

var labelSyntax = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Flow is one named, classified flow with its own independent QoS.
type Flow struct {
	Label string    `json:"label" validate:"required"`
	Flow  FlowMatch `json:"flow"`
	Link  Link      `json:"link" validate:"required"`
}

// Network is the root of a QoS spec file: a default link applied to
// unclassified traffic, plus a list of named flows with their own links.
type Network struct {
	DefaultLink Link   `json:"default_link" validate:"required"`
	Flows       []Flow `json:"flows" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReadSpec parses and validates a QoS spec from r, rejecting specs with
// invalid field values, a flow labeled "default", labels with characters
// outside [A-Za-z0-9_], or duplicate labels.
func ReadSpec(r io.Reader) (*Network, error) {
	var spec Network
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, wrap(ErrDecodeSpec, err)
	}
	if err := validate.Struct(&spec); err != nil {
		return nil, wrap(ErrInvalidSpec, err)
	}
	if err := sanitizeLabels(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ReadSpecFile opens path and parses it with ReadSpec.
func ReadSpecFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrap(ErrDecodeSpec, err)
	}
	defer f.Close()
	return ReadSpec(f)
}

func sanitizeLabels(spec *Network) error {
	seen := make(map[string]struct{}, len(spec.Flows))
	for _, flow := range spec.Flows {
		switch {
		case flow.Label == "default":
			return fmt.Errorf("%w: flow label %q is reserved", ErrInvalidSpec, flow.Label)
		case !labelSyntax.MatchString(flow.Label):
			return fmt.Errorf("%w: flow label %q contains invalid characters", ErrInvalidSpec, flow.Label)
		}
		if _, dup := seen[flow.Label]; dup {
			return fmt.Errorf("%w: duplicate flow label %q", ErrInvalidSpec, flow.Label)
		}
		seen[flow.Label] = struct{}{}
	}
	return nil
}
