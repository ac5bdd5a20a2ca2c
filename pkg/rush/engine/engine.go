package engine

import (
	"reflect"
	"sort"
	"time"

	"github.com/netshaper/rush/pkg/rush/link"
	"github.com/netshaper/rush/pkg/rush/logging"
	"github.com/netshaper/rush/pkg/rush/packet"
)

// Stats holds cumulative counters for a single Engine. Frees/FreeBits/
// FreeBytes mirror the packet package's process-wide freelist counters
// (the freelist, like engine.rs's, is shared by every app in the
// process regardless of which Engine is driving them).
type Stats struct {
	Breaths   uint64
	Frees     uint64
	FreeBits  uint64
	FreeBytes uint64
}

// Engine drives a configurable network of apps through repeated breaths.
// Unlike engine.rs's process-global STATE/STATS statics, Engine is an
// ordinary value: tests build as many independent engines as they need
// instead of reaching into shared mutable package state.
type Engine struct {
	linkTable map[string]*link.Link
	appTable  map[string]*AppState
	inhale    []string
	exhale    []string

	breaths uint64

	now          time.Time
	lastFrees    uint64
	sleepMicros  uint64
	lastLoad     time.Time
	loadFrees    uint64
	loadFreeBits uint64
	loadFreeByt  uint64
	loadBreaths  uint64
	haveLoad     bool

	emitter *logging.Emitter
}

// MaxSleep bounds the adaptive idle-sleep pace() applies between breaths
// when no packets are being freed.
const MaxSleep = 100 // microseconds

// New returns an empty Engine with no apps or links configured.
func New() *Engine {
	return &Engine{
		linkTable: make(map[string]*link.Link),
		appTable:  make(map[string]*AppState),
	}
}

// Stats returns a snapshot of the engine's cumulative counters, joining
// its own breath count with the packet package's global free counters.
func (e *Engine) Stats() Stats {
	p := packet.GetStats()
	return Stats{
		Breaths:   e.breaths,
		Frees:     p.Frees,
		FreeBits:  p.FreeBits,
		FreeBytes: p.FreeBytes,
	}
}

// Now returns the engine's notion of the current time: frozen for the
// duration of a breath so that all apps observe a single consistent
// instant, matching engine.rs's MONOTONIC_NOW.
func (e *Engine) Now() time.Time {
	if e.now.IsZero() {
		return time.Now()
	}
	return e.now
}

// Timeout returns a predicate that becomes true once d has elapsed from
// the moment Timeout was called.
func (e *Engine) Timeout(d time.Duration) func() bool {
	deadline := e.Now().Add(d)
	return func() bool { return e.Now().After(deadline) }
}

// Throttle returns a predicate that yields true at most once per d.
func (e *Engine) Throttle(d time.Duration) func() bool {
	deadline := e.Now()
	return func() bool {
		if e.Now().After(deadline) {
			deadline = e.Now().Add(d)
			return true
		}
		return false
	}
}

// Link looks up a live link by its canonical spec string.
func (e *Engine) Link(spec string) (*link.Link, bool) {
	l, ok := e.linkTable[spec]
	return l, ok
}

// App looks up a live app's state by name.
func (e *Engine) App(name string) (*AppState, bool) {
	a, ok := e.appTable[name]
	return a, ok
}

// InhaleOrder returns the apps that will be Pull()ed, in breathe order.
func (e *Engine) InhaleOrder() []string { return append([]string(nil), e.inhale...) }

// ExhaleOrder returns the apps that will be Push()ed, in breathe order.
func (e *Engine) ExhaleOrder() []string { return append([]string(nil), e.exhale...) }

// Configure migrates the running app network to match cfg: links that no
// longer exist are removed, apps whose configuration changed are stopped
// and restarted, new apps are started, links are rebuilt, and the breathe
// order is recomputed. Calling Configure repeatedly with evolving
// configurations incrementally reconciles the network rather than
// rebuilding it from scratch.
func (e *Engine) Configure(cfg *Config) {
	for spec := range e.linkTable {
		if _, ok := cfg.Links[spec]; !ok {
			e.unlinkApps(spec)
		}
	}

	names := make([]string, 0, len(e.appTable))
	for name := range e.appTable {
		names = append(names, name)
	}
	for _, name := range names {
		old := e.appTable[name].Conf
		next, ok := cfg.Apps[name]
		if !ok || !sameApp(old, next) {
			e.stopApp(name)
		}
	}

	for name, conf := range cfg.Apps {
		if _, ok := e.appTable[name]; !ok {
			e.startApp(name, conf)
		}
	}

	for _, spec := range sortedLinkNames(cfg.Links) {
		e.linkApps(spec)
	}

	e.computeBreatheOrder()
}

// sameApp reports whether two AppConfig values would construct
// equivalent apps: same concrete type, deeply equal fields. This is the
// Go counterpart of engine.rs's Debug-string identity hack, implemented
// directly against Go's structural equality instead of formatting through
// fmt.
func sameApp(a, b AppConfig) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func (e *Engine) startApp(name string, conf AppConfig) {
	e.appTable[name] = &AppState{
		Name:   name,
		App:    conf.New(),
		Conf:   conf,
		Input:  make(map[string]*link.Link),
		Output: make(map[string]*link.Link),
	}
}

func (e *Engine) stopApp(name string) {
	app := e.appTable[name]
	delete(e.appTable, name)
	if stopper, ok := app.App.(Stopper); ok {
		stopper.Stop()
	}
}

func (e *Engine) linkApps(spec string) {
	l, ok := e.linkTable[spec]
	if !ok {
		l = link.New()
		e.linkTable[spec] = l
	}
	parsed, err := ParseLink(spec)
	if err != nil {
		panic(err)
	}
	e.appTable[parsed.From].Output[parsed.Output] = l
	e.appTable[parsed.To].Input[parsed.Input] = l
}

func (e *Engine) unlinkApps(spec string) {
	delete(e.linkTable, spec)
	parsed, err := ParseLink(spec)
	if err != nil {
		panic(err)
	}
	if from, ok := e.appTable[parsed.From]; ok {
		delete(from.Output, parsed.Output)
	}
	if to, ok := e.appTable[parsed.To]; ok {
		delete(to.Input, parsed.Input)
	}
}

// computeBreatheOrder derives the order in which Pull and Push callbacks
// run during a breath. It follows link dependencies where possible (so
// that a packet pulled into the network this breath can be pushed further
// along in the same breath), runs each app's callbacks at most once per
// breath, breaks cycles by selecting at least one dependent to exhale
// early, and is otherwise deterministic: ties are broken by sorting app
// names lexicographically.
func (e *Engine) computeBreatheOrder() {
	e.inhale = nil
	e.exhale = nil

	successors := make(map[string]map[string]struct{})
	for spec := range e.linkTable {
		parsed, err := ParseLink(spec)
		if err != nil {
			panic(err)
		}
		if successors[parsed.From] == nil {
			successors[parsed.From] = make(map[string]struct{})
		}
		successors[parsed.From][parsed.To] = struct{}{}
	}

	for name, app := range e.appTable {
		if _, ok := app.App.(Puller); ok {
			e.inhale = append(e.inhale, name)
		}
	}
	sort.Strings(e.inhale)

	var dependents []string
	for _, name := range e.inhale {
		for _, successor := range sortedSuccessors(successors[name]) {
			app := e.appTable[successor]
			if _, ok := app.App.(Pusher); ok && !containsString(dependents, successor) {
				dependents = append(dependents, successor)
			}
		}
	}
	for _, name := range e.inhale {
		delete(successors, name)
	}

	// Each pass through this loop exhales one more layer of the dependency
	// graph. Successor sets are walked in sorted order so that when a
	// genuine cycle forces an arbitrary choice about which app to delay,
	// that choice is a function of app names alone, not of map iteration
	// order.
	for len(dependents) > 0 {
		selected := make(map[string]struct{})
		for _, name := range append([]string(nil), dependents...) {
			for _, successor := range sortedSuccessors(successors[name]) {
				if _, already := selected[successor]; !already &&
					containsString(dependents, successor) &&
					len(dependents) > 1 {
					selected[name] = struct{}{}
					dependents = removeString(dependents, successor)
				}
			}
		}

		sort.Strings(dependents)
		exhaled := append([]string(nil), dependents...)
		e.exhale = append(e.exhale, dependents...)
		dependents = nil

		for _, name := range exhaled {
			for _, successor := range sortedSuccessors(successors[name]) {
				app := e.appTable[successor]
				if _, ok := app.App.(Pusher); ok &&
					!containsString(e.exhale, successor) &&
					!containsString(dependents, successor) {
					dependents = append(dependents, successor)
				}
			}
		}
		for _, name := range exhaled {
			delete(successors, name)
		}
	}
}

func sortedSuccessors(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func removeString(s []string, v string) []string {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Options controls the engine's run loop.
type Options struct {
	// Done, if set, stops the run loop once it returns true. Mutually
	// exclusive with Duration.
	Done func() bool
	// Duration stops the run loop after the given wall-clock time has
	// elapsed, measured from the first breath.
	Duration time.Duration
	// NoReport disables all reporting below, regardless of their settings.
	NoReport bool
	ReportLoad  bool
	ReportLinks bool
	ReportApps  bool
}

// Run executes the breathe loop until the stopping condition in opts is
// met, pacing idle breaths to bound CPU usage, then emits any requested
// reports.
func (e *Engine) Run(opts Options) {
	done := opts.Done
	if opts.Duration > 0 {
		if done != nil {
			panic("engine: Options.Duration and Options.Done are mutually exclusive")
		}
		done = e.Timeout(opts.Duration)
	}

	e.Breathe()
	for done == nil || !done() {
		e.paceBreathing()
		e.Breathe()
	}

	if !opts.NoReport {
		if opts.ReportLoad {
			e.ReportLoad()
		}
		if opts.ReportLinks {
			e.ReportLinks()
		}
		if opts.ReportApps {
			e.ReportApps()
		}
	}

	e.now = time.Time{}
}

// Breathe performs a single inhale/exhale pass over the app network.
func (e *Engine) Breathe() {
	e.now = time.Now()
	for _, name := range e.inhale {
		app := e.appTable[name]
		app.Now = e.now
		app.App.(Puller).Pull(app)
	}
	for _, name := range e.exhale {
		app := e.appTable[name]
		app.Now = e.now
		app.App.(Pusher).Push(app)
	}
	e.breaths++
}

func (e *Engine) paceBreathing() {
	frees := packet.GetStats().Frees
	if e.lastFrees == frees {
		if e.sleepMicros < MaxSleep {
			e.sleepMicros++
		}
		time.Sleep(time.Duration(e.sleepMicros) * time.Microsecond)
	} else {
		e.sleepMicros /= 2
	}
	e.lastFrees = frees
}
