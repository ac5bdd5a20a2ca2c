package synth

// ExampleNetwork returns a sample QoS spec illustrating the JSON shape
// ReadSpec expects: a default link plus one named "http" flow shaped more
// generously than the default.
func ExampleNetwork() *Network {
	return &Network{
		DefaultLink: Link{
			Ingress: QoS{Rate: 10_000_000},
			Egress:  QoS{Rate: 1_000_000},
		},
		Flows: []Flow{
			{
				Label: "http",
				Flow:  FlowMatch{IP: 0, Protocol: 6, PortMin: 80, PortMax: 80},
				Link: Link{
					Ingress: QoS{Rate: 100_000_000},
					Egress:  QoS{Rate: 100_000_000},
				},
			},
		},
	}
}
