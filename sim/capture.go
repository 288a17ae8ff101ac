package sim

import (
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	network "github.com/tcfw/kernel/services/go/netif"
)

const captureSnapLen = 65536

// PcapCapture records frames leaving interfaces into a pcap stream
type PcapCapture struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	clock  func() time.Time
	frames int
	err    error
}

func NewPcapCapture(w io.Writer, clock func() time.Time) (*PcapCapture, error) {
	if clock == nil {
		clock = time.Now
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(captureSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, errors.Wrap(err, "writing pcap file header")
	}

	return &PcapCapture{w: pw, clock: clock}, nil
}

// Attach chains the capture after any TX hook already on iface
func (c *PcapCapture) Attach(iface *network.Interface) {
	h := iface.Hooks()
	h.TX = network.ChainHookAfter(h.TX, c.Hook)
	iface.SetHooks(h)
}

// Hook is a network.HookFn which records the frame and never drops it.
// The first write error is kept and later frames are ignored.
func (c *PcapCapture) Hook(_ *network.Interface, frame network.Ethernet) network.HookAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return network.HookActionNOOP
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     c.clock(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := c.w.WritePacket(ci, frame); err != nil {
		c.err = errors.Wrap(err, "writing pcap packet")
		return network.HookActionNOOP
	}
	c.frames++

	return network.HookActionNOOP
}

func (c *PcapCapture) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frames
}

func (c *PcapCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}
