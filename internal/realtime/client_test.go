package realtime

import (
	"testing"
	"time"
)

func TestPingPeriod(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want time.Duration
	}{
		{"derived", Options{PongWait: 60 * time.Second}, 54 * time.Second},
		{"configured", Options{PongWait: 60 * time.Second, PingPeriod: 20 * time.Second}, 20 * time.Second},
		{"not below pong wait", Options{PongWait: 10 * time.Second, PingPeriod: 10 * time.Second}, 9 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.pingPeriod(); got != tt.want {
				t.Errorf("pingPeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}
