package metrics

import (
	"context"
	"testing"
)

func TestHuman(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  string
	}{
		{name: "zero", value: 0, want: "0B"},
		{name: "bytes", value: 512, want: "512B"},
		{name: "kilobytes", value: 1024, want: "1.0KB"},
		{name: "megabytes", value: 5 * 1024 * 1024, want: "5.0MB"},
		{name: "gigabytes", value: 3 * 1024 * 1024 * 1024, want: "3.0GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := human(tt.value); got != tt.want {
				t.Errorf("human(%d) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestCollectCancelledContextOnlyWarns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := NewCollector(Options{}).Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v, want nil", err)
	}
	if len(stats.Warnings) != 6 {
		t.Fatalf("Collect() warnings = %v, want one per collector", stats.Warnings)
	}
	if stats.CPU.Cores != 0 || stats.Memory.Total != 0 || len(stats.Disks) != 0 {
		t.Fatalf("Collect() on cancelled context returned data: %+v", stats)
	}
}
