package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vitalscribe/core/internal/domain"
)

type fakeSession struct {
	status  domain.Status
	startFn func(ctx context.Context) error
	stopFn  func() error
	updates chan domain.Segment
}

func (f *fakeSession) Start(ctx context.Context) error {
	if f.startFn != nil {
		return f.startFn(ctx)
	}
	return nil
}
func (f *fakeSession) Stop() error {
	if f.stopFn != nil {
		return f.stopFn()
	}
	return nil
}
func (f *fakeSession) Reset()                {}
func (f *fakeSession) Status() domain.Status { return f.status }
func (f *fakeSession) SegmentUpdates() <-chan domain.Segment {
	if f.updates == nil {
		f.updates = make(chan domain.Segment)
	}
	return f.updates
}

type fakeDevices struct{ devices []Device }

func (f *fakeDevices) ListDevices() ([]Device, error) { return f.devices, nil }

func TestHandleStatusReturnsSessionStatus(t *testing.T) {
	sess := &fakeSession{status: domain.Status{State: "recording", PendingCount: 2}}
	s := New(Deps{Session: sess, Devices: &fakeDevices{}})

	req := httptest.NewRequest(http.MethodGet, "/session/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"recording"`) {
		t.Fatalf("body = %q, missing state", rec.Body.String())
	}
}

func TestHandleStartReturnsConflictOnError(t *testing.T) {
	sess := &fakeSession{startFn: func(ctx context.Context) error { return errFake }}
	s := New(Deps{Session: sess, Devices: &fakeDevices{}})

	req := httptest.NewRequest(http.MethodPost, "/session/start", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleDevicesListsConfiguredDevices(t *testing.T) {
	sess := &fakeSession{}
	s := New(Deps{Session: sess, Devices: &fakeDevices{devices: []Device{{ID: "1", Name: "mic"}}}})

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"mic"`) {
		t.Fatalf("body = %q, missing device name", rec.Body.String())
	}
}

func TestRateLimiterAllowsUpToWindowLimit(t *testing.T) {
	rl := &rateLimiter{}
	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("expected message %d to be allowed", i)
		}
	}
	if rl.allow() {
		t.Fatalf("expected message beyond the limit to be rejected")
	}
}

func TestRateLimiterRecoversAfterWindow(t *testing.T) {
	rl := &rateLimiter{timestamps: []time.Time{time.Now().Add(-2 * RateLimitWindow)}}
	if !rl.allow() {
		t.Fatalf("expected an old timestamp to be pruned, allowing the new message")
	}
}

var errFake = errors.New("fake session error")
