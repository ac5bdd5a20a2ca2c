// Package engine implements the breathe-loop packet processing engine: a
// single-threaded cooperative scheduler that drives a configurable network
// of apps connected by links.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/netshaper/rush/pkg/rush/link"
)

var (
	ErrMalformedLink = errors.New("engine: malformed link spec")
	ErrUnknownApp    = errors.New("engine: link references unknown app")
)

// App is the behavior an app instance implements. An app that does nothing
// but hold state satisfies App trivially; the optional Puller, Pusher,
// Stopper and Reporter interfaces are discovered via type assertion during
// breathe(), configure() and reporting, mirroring the capability bits a
// Snabb-style app network checks before invoking a callback.
type App interface{}

// Puller apps inhale packets into the network, normally by reading from a
// peripheral device and writing onto their output links.
type Puller interface {
	Pull(state *AppState)
}

// Pusher apps exhale packets through the network, normally by reading
// packets off their input links and writing them to output links or a
// peripheral device.
type Pusher interface {
	Push(state *AppState)
}

// Stopper apps release resources when removed from the network.
type Stopper interface {
	Stop()
}

// Reporter apps print additional information during a reporting pass.
type Reporter interface {
	Report()
}

// AppConfig constructs app instances. Two AppConfig values are considered
// equivalent by configure() when they have the same concrete type and are
// deeply equal (see sameApp) — the Go analogue of the identity-string
// comparison engine.rs derives from its AppConfig's Debug implementation.
type AppConfig interface {
	New() App
}

// PullNPackets is the recommended ceiling for how many packets a
// Puller drains from a peripheral device in one Pull call.
const PullNPackets = link.MaxPackets / 10

// AppState tracks the live app instance the engine is driving, the
// AppConfig used to construct it, and its currently bound input/output
// links, keyed by port name. Now is stamped by the engine before every
// Pull/Push call with the time of the current breath, giving apps that
// need timing (delay queues, rate limiters) a consistent instant to work
// from without holding a reference back to the Engine itself.
type AppState struct {
	Name   string
	App    App
	Conf   AppConfig
	Input  map[string]*link.Link
	Output map[string]*link.Link
	Now    time.Time
}

// Config is a declarative description of an app network: named app
// instances and the links between their ports. Config values are
// comparable across configure() calls to compute an incremental diff.
type Config struct {
	Apps  map[string]AppConfig
	Links map[string]struct{}
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{Apps: make(map[string]AppConfig), Links: make(map[string]struct{})}
}

// AddApp registers an app instance under name, to be constructed by conf.
func (c *Config) AddApp(name string, conf AppConfig) {
	c.Apps[name] = conf
}

// AddLink adds a link of the form "from.output -> to.input" to the
// configuration, in canonical (whitespace-normalized) form.
func (c *Config) AddLink(spec string) error {
	parsed, err := ParseLink(spec)
	if err != nil {
		return err
	}
	c.Links[parsed.String()] = struct{}{}
	return nil
}

// Clone returns a shallow copy of c suitable for incremental mutation; the
// AppConfig values themselves are not deep-copied, matching engine.rs's
// box_clone (which copies the AppConfig struct, not anything it points to).
func (c *Config) Clone() *Config {
	clone := NewConfig()
	for name, conf := range c.Apps {
		clone.Apps[name] = conf
	}
	for spec := range c.Links {
		clone.Links[spec] = struct{}{}
	}
	return clone
}

// LinkSpec is a parsed "from.output -> to.input" link specification.
type LinkSpec struct {
	From, Output string
	To, Input    string
}

func (s LinkSpec) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", s.From, s.Output, s.To, s.Input)
}

var linkSyntax = regexp.MustCompile(`^\s*([\w]+)\.([\w]+)\s*->\s*([\w]+)\.([\w]+)\s*$`)

// ParseLink parses a link spec of the form "from.output -> to.input".
func ParseLink(spec string) (LinkSpec, error) {
	m := linkSyntax.FindStringSubmatch(spec)
	if m == nil {
		return LinkSpec{}, wrap(ErrMalformedLink, fmt.Errorf("%q", strings.TrimSpace(spec)))
	}
	return LinkSpec{From: m[1], Output: m[2], To: m[3], Input: m[4]}, nil
}

// sortedLinkNames returns the link specs of cfg sorted for deterministic
// iteration.
func sortedLinkNames(links map[string]struct{}) []string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
