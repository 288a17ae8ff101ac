package config

import (
	"net"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	network "github.com/tcfw/kernel/services/go/netif"
)

const (
	defaultTickMS     = 100
	defaultDurationMS = 10000
	defaultUDPPort    = 9000
)

type Host struct {
	Name string `yaml:"name"`
	MAC  string `yaml:"mac"`
	IP   net.IP `yaml:"ip"`

	HardwareAddr network.MacAddress `yaml:"-"`
}

// Flow is a datagram sent from a host at a point in virtual time
type Flow struct {
	From    string `yaml:"from"`
	To      net.IP `yaml:"to"`
	Via     net.IP `yaml:"via"` // next hop, defaults to To
	AtMS    uint64 `yaml:"at_ms"`
	Count   int    `yaml:"count"`
	Port    uint16 `yaml:"port"`
	Payload string `yaml:"payload"`
}

func (f Flow) NextHop() net.IP {
	if f.Via != nil {
		return f.Via
	}
	return f.To
}

type Config struct {
	TickMS             uint64 `yaml:"tick_ms"`
	DurationMS         uint64 `yaml:"duration_ms"`
	NeighbourTimeoutMS uint64 `yaml:"neighbour_timeout_ms"`
	ProbeIntervalMS    uint64 `yaml:"probe_interval_ms"`
	QueueCapacity      uint64 `yaml:"queue_capacity"` // 0 leaves the outgoing queue unbounded

	Hosts   []Host `yaml:"hosts"`
	Traffic []Flow `yaml:"traffic"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if c.TickMS == 0 {
		c.TickMS = defaultTickMS
	}
	if c.DurationMS == 0 {
		c.DurationMS = defaultDurationMS
	}

	if len(c.Hosts) == 0 {
		return nil, errors.New("at least one host is required")
	}

	names := map[string]bool{}
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if h.Name == "" {
			return nil, errors.Errorf("hosts[%d].name must be set", i)
		}
		if names[h.Name] {
			return nil, errors.Errorf("hosts[%d].name %q is not unique", i, h.Name)
		}
		names[h.Name] = true

		mac, err := network.ParseMacAddress(h.MAC)
		if err != nil {
			return nil, errors.Wrapf(err, "hosts[%d].mac", i)
		}
		h.HardwareAddr = mac

		if h.IP.To4() == nil {
			return nil, errors.Errorf("hosts[%d].ip must be IPv4", i)
		}
		h.IP = h.IP.To4()
	}

	for i := range c.Traffic {
		f := &c.Traffic[i]
		if !names[f.From] {
			return nil, errors.Errorf("traffic[%d].from %q is not a host", i, f.From)
		}
		if f.To.To4() == nil {
			return nil, errors.Errorf("traffic[%d].to must be IPv4", i)
		}
		f.To = f.To.To4()
		if f.Via != nil {
			if f.Via.To4() == nil {
				return nil, errors.Errorf("traffic[%d].via must be IPv4", i)
			}
			f.Via = f.Via.To4()
		}
		if f.AtMS >= c.DurationMS {
			return nil, errors.Errorf("traffic[%d].at_ms must be before duration_ms", i)
		}
		if f.Count <= 0 {
			f.Count = 1
		}
		if f.Port == 0 {
			f.Port = defaultUDPPort
		}
	}

	return &c, nil
}
