package capture

import "testing"

func TestSelectDevicePrefersMatchingName(t *testing.T) {
	devices := []Device{{Name: "Built-in Microphone"}, {Name: "USB Headset Mic"}}
	got, err := SelectDevice(devices, Config{PreferredDeviceName: "usb headset"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "USB Headset Mic" {
		t.Fatalf("selected %q, want USB Headset Mic", got.Name)
	}
}

func TestSelectDeviceExcludesLoopback(t *testing.T) {
	devices := []Device{{Name: "BlackHole 2ch"}, {Name: "Built-in Microphone"}}
	got, err := SelectDevice(devices, Config{ExcludedDeviceNames: []string{"blackhole"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Built-in Microphone" {
		t.Fatalf("selected %q, want Built-in Microphone", got.Name)
	}
}

func TestSelectDeviceNoEligibleDevice(t *testing.T) {
	devices := []Device{{Name: "BlackHole 2ch"}}
	if _, err := SelectDevice(devices, Config{ExcludedDeviceNames: []string{"blackhole"}}); err == nil {
		t.Fatalf("expected error when no device is eligible")
	}
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	b := []byte{0, 0, 128, 63} // little-endian IEEE-754 for 1.0
	out := bytesToFloat32(b)
	if len(out) != 1 || out[0] != 1.0 {
		t.Fatalf("bytesToFloat32 = %v, want [1.0]", out)
	}
}

func TestBytesToFloat32RejectsPartialFrame(t *testing.T) {
	if out := bytesToFloat32([]byte{1, 2, 3}); out != nil {
		t.Fatalf("expected nil for non-multiple-of-4 input, got %v", out)
	}
}
