package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/usbipgo/usbipd/usb"
)

// transferTimeout bounds every call into libusb; a wedged real device
// must not be able to stall a connection's goroutine forever.
const transferTimeout = time.Second

// HostPassthrough forwards URBs to a real USB device opened through
// libusb, letting an unmodified host driver talk to physical hardware
// over the wire exactly as it would to an emulated device.
type HostPassthrough struct {
	mu     sync.Mutex
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	in     map[uint8]*gousb.InEndpoint
	out    map[uint8]*gousb.OutEndpoint
}

// OpenHostDevice opens the real device matching vid/pid and claims the
// given configuration/interface/alternate-setting combination.
func OpenHostDevice(vid, pid gousb.ID, configNum, ifaceNum, altNum int) (*HostPassthrough, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("open host device %s:%s: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("host device %s:%s not found", vid, pid)
	}
	dev.ControlTimeout = transferTimeout

	cfg, err := dev.Config(configNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("select config %d: %w", configNum, err)
	}
	intf, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim interface %d alt %d: %w", ifaceNum, altNum, err)
	}

	return &HostPassthrough{
		ctx:  ctx,
		dev:  dev,
		cfg:  cfg,
		intf: intf,
		in:   make(map[uint8]*gousb.InEndpoint),
		out:  make(map[uint8]*gousb.OutEndpoint),
	}, nil
}

// Close releases the interface, configuration, device handle and libusb
// context, in that order.
func (h *HostPassthrough) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.intf.Close()
	if err := h.cfg.Close(); err != nil {
		return err
	}
	if err := h.dev.Close(); err != nil {
		return err
	}
	return h.ctx.Close()
}

func (h *HostPassthrough) inEndpoint(addr uint8) (*gousb.InEndpoint, error) {
	if ep, ok := h.in[addr]; ok {
		return ep, nil
	}
	ep, err := h.intf.InEndpoint(int(addr & 0x0f))
	if err != nil {
		return nil, err
	}
	h.in[addr] = ep
	return ep, nil
}

func (h *HostPassthrough) outEndpoint(addr uint8) (*gousb.OutEndpoint, error) {
	if ep, ok := h.out[addr]; ok {
		return ep, nil
	}
	ep, err := h.intf.OutEndpoint(int(addr & 0x0f))
	if err != nil {
		return nil, err
	}
	h.out[addr] = ep
	return ep, nil
}

// HandleURB forwards a control transfer via dev.Control, or an
// interrupt/bulk transfer via the claimed interface's endpoints. The
// handler's mutex is held across the blocking native call, mirroring
// the emulated handlers' one-call-at-a-time contract but at the cost of
// serializing every transfer through this single real device.
func (h *HostPassthrough) HandleURB(iface *usb.InterfaceConfig, ep uint8, setup usb.Setup, payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	if ep == 0 {
		data := make([]byte, setup.WLength)
		if setup.Direction() == usb.DirectionOut {
			copy(data, payload)
		}
		n, err := h.dev.Control(setup.BmRequestType, setup.BRequest, setup.WValue, setup.WIndex, data)
		if err != nil {
			return nil, fmt.Errorf("control transfer: %w", err)
		}
		if setup.Direction() == usb.DirectionIn {
			return data[:n], nil
		}
		return nil, nil
	}

	if ep&0x80 != 0 {
		in, err := h.inEndpoint(ep)
		if err != nil {
			return nil, fmt.Errorf("in endpoint %#x: %w", ep, err)
		}
		buf := make([]byte, in.Desc.MaxPacketSize)
		n, err := in.ReadContext(ctx, buf)
		if err != nil {
			return nil, fmt.Errorf("read endpoint %#x: %w", ep, err)
		}
		return buf[:n], nil
	}

	out, err := h.outEndpoint(ep)
	if err != nil {
		return nil, fmt.Errorf("out endpoint %#x: %w", ep, err)
	}
	if _, err := out.WriteContext(ctx, payload); err != nil {
		return nil, fmt.Errorf("write endpoint %#x: %w", ep, err)
	}
	return nil, nil
}

// ClassSpecificDescriptor reads the claimed interface's descriptor and
// its endpoints back from the parsed descriptors libusb already
// fetched for the real device, re-encoding them with the same
// usb.InterfaceDescriptor/usb.EndpointDescriptor layout the emulated
// handlers use, rather than synthesizing anything of our own.
func (h *HostPassthrough) ClassSpecificDescriptor() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.intf.Setting
	out := usb.InterfaceDescriptor{
		BInterfaceNumber:   uint8(s.Number),
		BAlternateSetting:  uint8(s.Alternate),
		BNumEndpoints:      uint8(len(s.Endpoints)),
		BInterfaceClass:    uint8(s.Class),
		BInterfaceSubClass: uint8(s.SubClass),
		BInterfaceProtocol: uint8(s.Protocol),
	}.Bytes()

	for _, ep := range s.Endpoints {
		out = append(out, usb.EndpointDescriptor{
			BEndpointAddress: uint8(ep.Address),
			BmAttributes:     uint8(ep.TransferType),
			WMaxPacketSize:   uint16(ep.MaxPacketSize),
			BInterval:        uint8(ep.PollInterval / time.Millisecond),
		}.Bytes()...)
	}
	return out
}
