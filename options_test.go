package glprog

import (
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider is a host device provider whose Device() is opaque.
type mockProvider struct {
	device gpucontext.Device
}

func (m *mockProvider) Device() gpucontext.Device { return m.device }
func (m *mockProvider) Queue() gpucontext.Queue   { return nil }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}
func (m *mockProvider) Adapter() gpucontext.Adapter         { return nil }
func (m *mockProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }

// mockHalProvider also exposes the HAL device directly.
type mockHalProvider struct {
	mockProvider
	hal hal.Device
}

func (m *mockHalProvider) HalDevice() any { return m.hal }

func TestNewDefaults(t *testing.T) {
	p := New()
	assert.Nil(t, p.cfg.device)
	assert.Nil(t, p.cfg.cache)
	assert.Equal(t, DefaultFeatures(), p.cfg.features)
	assert.NotZero(t, p.ID())
	assert.NotEqual(t, p.ID(), New().ID())
}

func TestWithDeviceProvider(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	t.Run("hal device", func(t *testing.T) {
		p := New(WithDeviceProvider(&mockHalProvider{
			mockProvider: mockProvider{device: "opaque"},
			hal:          device,
		}))
		assert.Equal(t, device, p.cfg.device)
	})

	t.Run("device is hal", func(t *testing.T) {
		p := New(WithDeviceProvider(&mockProvider{device: device}))
		assert.Equal(t, device, p.cfg.device)
	})

	t.Run("opaque device", func(t *testing.T) {
		p := New(WithDeviceProvider(&mockProvider{device: "opaque"}))
		assert.Nil(t, p.cfg.device)
	})

	t.Run("nil provider", func(t *testing.T) {
		p := New(WithDeviceProvider(nil))
		assert.Nil(t, p.cfg.device)
	})
}

func TestLoadFeatures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Features
		wantErr bool
	}{
		{
			name:  "empty",
			input: "",
			want:  DefaultFeatures(),
		},
		{
			name:  "both",
			input: "create_pipeline_during_link = false\nwarm_up_failure_fatal = false\n",
			want:  Features{},
		},
		{
			name:  "partial",
			input: "warm_up_failure_fatal = false\n",
			want:  Features{CreatePipelineDuringLink: true},
		},
		{
			name:    "unknown key",
			input:   "warm_up = true\n",
			wantErr: true,
		},
		{
			name:    "wrong type",
			input:   "warm_up_failure_fatal = \"yes\"\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFeatures(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
