package synth

import (
	"fmt"
	"time"

	"github.com/netshaper/rush/pkg/rush/apps/basicapps"
	"github.com/netshaper/rush/pkg/rush/apps/flow"
	"github.com/netshaper/rush/pkg/rush/apps/offload"
	"github.com/netshaper/rush/pkg/rush/apps/qos"
	"github.com/netshaper/rush/pkg/rush/apps/rawsocket"
	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/header"
)

// delayQueueCapacity bounds Latency/Jitter queues generously for peak
// traffic: enough to hold ~100,000 packets in flight, e.g. 1 second at
// 100K packets/sec or 100ms at 1M packets/sec.
const delayQueueCapacity = 100_000

// tsdMSS is the segment size TSD reconstructs TCP payloads to on both
// interfaces.
const tsdMSS = 1400

// Build constructs the app network config that shapes traffic flowing
// between outerIfname and innerIfname per spec: MSS-limited, checksum
// offload resolved, classified by flow, rate/loss/latency/jitter shaped,
// and profiled into the flow-top files at ingressProfile/egressProfile.
func Build(outerIfname, innerIfname, ingressProfile, egressProfile string, spec *Network) *engine.Config {
	c := engine.NewConfig()

	configureInterface(c, outerIfname)
	configureInterface(c, innerIfname)

	// Ingress path: outer -> inner.
	outerTSD := outerIfname + "_tsd"
	configureTSD(c, outerTSD, outerIfname, tsdMSS)

	outerOffload := outerIfname + "_offload"
	configureOffload(c, outerOffload, outerTSD)

	outerRx := outerOffload + ".output"
	innerTx := innerIfname + ".input"

	outerTop := outerIfname + "_top"
	configureTop(c, outerTop, innerTx, ingressProfile, flow.DirSrc)

	outerSplit := outerIfname + "_split"
	outerSplitDefault := outerSplit + ".default"
	configureSplit(c, outerSplit, outerRx, spec.Flows, flow.DirSrc)

	innerJoin := innerIfname + "_join"
	innerJoinDefault := innerJoin + ".default"
	configureJoin(c, innerJoin, outerTop)

	configureQoS(c, "ingress", outerSplitDefault, innerJoinDefault, &spec.DefaultLink.Ingress)
	configureFlows(c, outerSplit, innerJoin, spec.Flows, flow.DirSrc)

	// Egress path: inner -> outer.
	innerTSD := innerIfname + "_tsd"
	configureTSD(c, innerTSD, innerIfname, tsdMSS)

	innerOffload := innerIfname + "_offload"
	configureOffload(c, innerOffload, innerTSD)

	innerRx := innerOffload + ".output"
	outerTx := outerIfname + ".input"

	innerTop := innerIfname + "_top"
	configureTop(c, innerTop, outerTx, egressProfile, flow.DirDst)

	innerSplit := innerIfname + "_split"
	innerSplitDefault := innerSplit + ".default"
	configureSplit(c, innerSplit, innerRx, spec.Flows, flow.DirDst)

	outerJoin := outerIfname + "_join"
	outerJoinDefault := outerJoin + ".default"
	configureJoin(c, outerJoin, innerTop)

	configureQoS(c, "egress", innerSplitDefault, outerJoinDefault, &spec.DefaultLink.Egress)
	configureFlows(c, innerSplit, outerJoin, spec.Flows, flow.DirDst)

	return c
}

func configureInterface(c *engine.Config, ifname string) {
	c.AddApp(ifname, rawsocket.RawSocket{Ifname: ifname})
}

func configureTSD(c *engine.Config, name, ifname string, mss uint16) {
	c.AddApp(name, offload.TSD{MSS: mss})
	mustLink(c, fmt.Sprintf("%s.output -> %s.input", ifname, name))
}

func configureOffload(c *engine.Config, name, ifname string) {
	c.AddApp(name, offload.Checksum{})
	mustLink(c, fmt.Sprintf("%s.output -> %s.input", ifname, name))
}

func configureTop(c *engine.Config, name, output, path string, dir flow.Dir) {
	c.AddApp(name, flow.Top{Path: path, Dir: dir})
	mustLink(c, fmt.Sprintf("%s.output -> %s", name, output))
}

func configureSplit(c *engine.Config, name, input string, flows []Flow, dir flow.Dir) {
	rules := make([]flow.Flow, 0, len(flows))
	for _, f := range flows {
		rules = append(rules, flow.Flow{
			Label:    f.Label,
			Dir:      dir,
			IP:       uint32ToAddress(f.Flow.IP),
			Protocol: f.Flow.Protocol,
			PortMin:  f.Flow.PortMin,
			PortMax:  f.Flow.PortMax,
		})
	}
	c.AddApp(name, flow.Split{Flows: rules})
	mustLink(c, fmt.Sprintf("%s -> %s.input", input, name))
}

func configureJoin(c *engine.Config, name, output string) {
	c.AddApp(name, basicapps.Join{})
	mustLink(c, fmt.Sprintf("%s.output -> %s.input", name, output))
}

func configureFlows(c *engine.Config, split, join string, flows []Flow, dir flow.Dir) {
	prefix := "egress"
	if dir == flow.DirSrc {
		prefix = "ingress"
	}
	for _, f := range flows {
		input := fmt.Sprintf("%s.%s", split, f.Label)
		output := fmt.Sprintf("%s.%s", join, f.Label)
		label := fmt.Sprintf("%s_%s", prefix, f.Label)
		q := &f.Link.Egress
		if dir == flow.DirSrc {
			q = &f.Link.Ingress
		}
		configureQoS(c, label, input, output, q)
	}
}

func configureQoS(c *engine.Config, label, input, output string, q *QoS) {
	rate := "rate_" + label
	loss := "loss_" + label
	latency := "latency_" + label
	jitter := "jitter_" + label

	mustLink(c, fmt.Sprintf("%s -> %s.input", input, rate))
	c.AddApp(rate, qos.RateLimiter{Rate: q.Rate})

	mustLink(c, fmt.Sprintf("%s.output -> %s.input", rate, loss))
	c.AddApp(loss, qos.Loss{Ratio: clamp01(q.Loss)})

	mustLink(c, fmt.Sprintf("%s.output -> %s.input", loss, latency))
	c.AddApp(latency, qos.Latency{Delay: msToDuration(q.LatencyMS), Capacity: delayQueueCapacity})

	mustLink(c, fmt.Sprintf("%s.output -> %s.input", latency, jitter))
	c.AddApp(jitter, qos.Jitter{
		Max:      msToDuration(q.JitterMS),
		Strength: clamp01(q.JitterStrength),
		Reorder:  q.ReorderPackets,
		Capacity: delayQueueCapacity,
	})

	mustLink(c, fmt.Sprintf("%s.output -> %s", jitter, output))
}

func mustLink(c *engine.Config, spec string) {
	if err := c.AddLink(spec); err != nil {
		panic(fmt.Sprintf("synth: %v", err))
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// uint32ToAddress reinterprets a raw flow-match ip field as an IPv4
// address, the same little-endian byte order Top stamps flow ids with.
func uint32ToAddress(ip uint32) header.Address {
	var a header.Address
	a[0] = byte(ip)
	a[1] = byte(ip >> 8)
	a[2] = byte(ip >> 16)
	a[3] = byte(ip >> 24)
	return a
}

func msToDuration(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
