package engine

import (
	"fmt"
	"sort"

	"github.com/netshaper/rush/pkg/rush/logging"
)

// SetEmitter attaches an emitter used by ReportLoad/ReportLinks/ReportApps
// to publish structured events alongside engine.rs's original println!
// reports. A nil emitter (the zero value) disables event emission; report
// methods still run, so ReportLoad keeps advancing its measurement
// baseline without a logging sink configured.
func (e *Engine) SetEmitter(emitter *logging.Emitter) { e.emitter = emitter }

// ReportLoad computes and emits a load report: frees/sec, gigabits/sec,
// frees/breath, average packet size and current idle-sleep pace, measured
// since the previous call to ReportLoad. The first call only records the
// baseline and emits nothing.
func (e *Engine) ReportLoad() {
	now := e.Now()
	stats := e.Stats()
	if !e.haveLoad {
		e.haveLoad = true
		e.lastLoad = now
		e.loadFrees = stats.Frees
		e.loadFreeBits = stats.FreeBits
		e.loadFreeByt = stats.FreeBytes
		e.loadBreaths = stats.Breaths
		return
	}

	interval := now.Sub(e.lastLoad).Seconds()
	newFrees := stats.Frees - e.loadFrees
	newBits := stats.FreeBits - e.loadFreeBits
	newBytes := stats.FreeBytes - e.loadFreeByt
	newBreaths := stats.Breaths - e.loadBreaths

	var fps uint64
	var gbps float64
	if interval > 0 {
		fps = uint64(float64(newFrees) / interval)
		gbps = (float64(newBits) / interval) / 1e9
	}
	var freesPerBreath uint64
	if newBreaths > 0 {
		freesPerBreath = newFrees / newBreaths
	}
	var bytesPerPacket uint64
	if newFrees > 0 {
		bytesPerPacket = newBytes / newFrees
	}

	if e.emitter != nil {
		_ = e.emitter.Emit(logging.EventBreathReport,
			fmt.Sprintf("load: time=%.2f fps=%d fpGbps=%.3f fpb=%d bpp=%d sleep=%d",
				interval, fps, gbps, freesPerBreath, bytesPerPacket, e.sleepMicros),
			"", nil,
			&logging.BreathReportData{
				IntervalSeconds: interval,
				FreesPerSecond:  fps,
				GigabitsPerSec:  gbps,
				FreesPerBreath:  freesPerBreath,
				BytesPerPacket:  bytesPerPacket,
				SleepMicros:     e.sleepMicros,
			})
	}

	e.lastLoad = now
	e.loadFrees = stats.Frees
	e.loadFreeBits = stats.FreeBits
	e.loadFreeByt = stats.FreeBytes
	e.loadBreaths = stats.Breaths
}

// ReportLinks emits one event per live link summarizing packets sent and
// the loss rate, in lexicographic order of link spec.
func (e *Engine) ReportLinks() {
	names := make([]string, 0, len(e.linkTable))
	for name := range e.linkTable {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		l := e.linkTable[name]
		rate := LossRate(l.TxDrop, l.TxPackets)
		if e.emitter != nil {
			_ = e.emitter.Emit(logging.EventLinkReport,
				fmt.Sprintf("%s sent on %s (loss rate: %d%%)", formatCount(l.TxPackets), name, rate),
				"", nil,
				&logging.LinkReportData{
					Link:      name,
					TxPackets: l.TxPackets,
					TxDrop:    l.TxDrop,
					LossRate:  rate,
				})
		}
	}
}

// ReportApps invokes Report on every app that implements Reporter.
func (e *Engine) ReportApps() {
	names := make([]string, 0, len(e.appTable))
	for name := range e.appTable {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		app := e.appTable[name]
		if reporter, ok := app.App.(Reporter); ok {
			reporter.Report()
		}
	}
}

// LossRate returns the percentage of packets dropped out of drop+sent,
// rounded down to the nearest whole percent. A link that has never
// transmitted anything reports zero rather than dividing by zero.
func LossRate(drop, sent uint64) uint64 {
	if sent == 0 {
		return 0
	}
	return drop * 100 / (drop + sent)
}

func formatCount(n uint64) string { return fmt.Sprintf("%d", n) }
