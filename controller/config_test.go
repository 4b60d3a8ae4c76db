package controller_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/parleyhq/parley/controller"
)

func TestDefaultConfig(t *testing.T) {
	cfg := controller.DefaultConfig()

	if cfg.PollIntervalMS != 1000 {
		t.Errorf("got poll interval %d, want 1000", cfg.PollIntervalMS)
	}
	if cfg.TimeoutMS != 120000 {
		t.Errorf("got timeout %d, want 120000", cfg.TimeoutMS)
	}
	if cfg.AgentRef != "" {
		t.Errorf("agent ref should have no default, got %q", cfg.AgentRef)
	}
	if !reflect.DeepEqual(cfg.Observers, []string{"slog"}) {
		t.Errorf("got default observers %v, want [slog]", cfg.Observers)
	}
}

func TestConfig_Merge(t *testing.T) {
	tests := []struct {
		name   string
		source controller.Config
		want   controller.Config
	}{
		{
			name:   "empty source keeps defaults",
			source: controller.Config{},
			want:   controller.Config{PollIntervalMS: 1000, TimeoutMS: 120000, Observers: []string{"slog"}},
		},
		{
			name:   "partial override",
			source: controller.Config{TimeoutMS: 60000},
			want:   controller.Config{PollIntervalMS: 1000, TimeoutMS: 60000, Observers: []string{"slog"}},
		},
		{
			name:   "full override",
			source: controller.Config{PollIntervalMS: 250, TimeoutMS: 30000, AgentRef: "asst_1", Observers: []string{"noop", "slog"}},
			want:   controller.Config{PollIntervalMS: 250, TimeoutMS: 30000, AgentRef: "asst_1", Observers: []string{"noop", "slog"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := controller.DefaultConfig()
			cfg.Merge(&tt.source)
			if !reflect.DeepEqual(cfg, tt.want) {
				t.Errorf("got %+v, want %+v", cfg, tt.want)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := controller.Config{PollIntervalMS: 250, TimeoutMS: 30000}

	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("got poll interval %s, want 250ms", got)
	}
	if got := cfg.Timeout(); got != 30*time.Second {
		t.Errorf("got timeout %s, want 30s", got)
	}
}
