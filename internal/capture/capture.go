// Package capture binds a single input device, normalizes its sample format, downmixes to
// mono, and feeds a ring buffer.
package capture

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/ringbuffer"
)

// Device describes one enumerated capture-capable device.
type Device struct {
	ID   malgo.DeviceID
	Name string
}

// Config selects which device to bind and how to normalize its stream.
type Config struct {
	// PreferredDeviceName, if non-empty, is matched case-insensitively as a substring against
	// enumerated device names. Empty, or a name no eligible device matches, selects the first
	// enumerated device that is not excluded.
	PreferredDeviceName string
	// ExcludedDeviceNames are substrings that disqualify a device from being chosen, even as
	// the default (e.g. virtual loopback devices that would pick up system audio).
	ExcludedDeviceNames []string
}

// Capturer owns exactly one bound input device for the lifetime of a session.
type Capturer struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	out    *ringbuffer.Buffer

	armed atomic.Bool
	mu    sync.Mutex

	sampleRate uint32
	channels   uint32
	chosen     Device
}

// ListDevices enumerates capture-capable devices via the default backend.
func ListDevices(ctx *malgo.AllocatedContext) ([]Device, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.AudioDevice, "enumerate capture devices")
	}
	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, Device{ID: info.ID, Name: info.Name()})
	}
	return out, nil
}

// SelectDevice applies Config's preference/exclusion rules against an enumerated device list.
func SelectDevice(devices []Device, cfg Config) (Device, error) {
	excluded := func(name string) bool {
		lower := strings.ToLower(name)
		for _, bad := range cfg.ExcludedDeviceNames {
			if bad == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(bad)) {
				return true
			}
		}
		return false
	}

	var fallback *Device
	for i := range devices {
		d := &devices[i]
		if excluded(d.Name) {
			continue
		}
		if fallback == nil {
			fallback = d
		}
		if cfg.PreferredDeviceName != "" &&
			strings.Contains(strings.ToLower(d.Name), strings.ToLower(cfg.PreferredDeviceName)) {
			return *d, nil
		}
	}
	if cfg.PreferredDeviceName == "" && fallback != nil {
		return *fallback, nil
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Device{}, coreerr.New(coreerr.AudioDevice, "no eligible capture device found")
}

// New binds dev as the session's capture device, pushing downmixed mono f32 samples into out.
// The stream starts disarmed; call Start to begin forwarding samples.
func New(malgoCtx *malgo.AllocatedContext, dev Device, sampleRate, channels uint32, out *ringbuffer.Buffer) (*Capturer, error) {
	c := &Capturer{
		ctx:        malgoCtx,
		out:        out,
		sampleRate: sampleRate,
		channels:   channels,
		chosen:     dev,
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = channels
	deviceCfg.SampleRate = sampleRate
	deviceCfg.Capture.DeviceID = dev.ID.Pointer()

	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, coreerr.Wrapf(err, coreerr.AudioDevice, "init capture device %q", dev.Name)
	}
	c.device = device
	return c, nil
}

// onData is the driver callback. It must never allocate beyond the ring buffer and never block.
func (c *Capturer) onData(_, input []byte, frameCount uint32) {
	if !c.armed.Load() {
		return
	}
	ch := int(c.channels)
	if ch < 1 {
		ch = 1
	}
	frameBytes := ch * float32ByteSize
	for i := 0; i+frameBytes <= len(input); i += frameBytes {
		// naive mono downmix: channel 0 of each interleaved frame, decoded in place
		c.out.TryPush(math.Float32frombits(binary.LittleEndian.Uint32(input[i:])))
	}
}

// Start arms the stream and begins the device driver.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed.Store(true)
	if err := c.device.Start(); err != nil {
		c.armed.Store(false)
		return coreerr.Wrap(err, coreerr.AudioDevice, "start capture device")
	}
	return nil
}

// Stop disarms the stream and tears down the device. Safe to call once.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed.Store(false)
	if c.device == nil {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return coreerr.Wrap(err, coreerr.AudioDevice, "stop capture device")
	}
	c.device.Uninit()
	return nil
}

// Device returns the bound device's identity for status reporting.
func (c *Capturer) Device() Device {
	return c.chosen
}

const float32ByteSize = 4

func bytesToFloat32(b []byte) []float32 {
	if len(b)%float32ByteSize != 0 {
		return nil
	}
	out := make([]float32, len(b)/float32ByteSize)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*float32ByteSize:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
