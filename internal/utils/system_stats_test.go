package utils

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tc := range tests {
		if got := FormatBytes(tc.bytes); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestCollectSystemStatsFormatsMemory(t *testing.T) {
	stats := CollectSystemStats()

	if stats.MemoryAllocHuman != FormatBytes(stats.MemoryAlloc) {
		t.Errorf("MemoryAllocHuman = %q, want formatted %d", stats.MemoryAllocHuman, stats.MemoryAlloc)
	}
	if stats.MemorySysHuman != FormatBytes(stats.MemorySys) {
		t.Errorf("MemorySysHuman = %q, want formatted %d", stats.MemorySysHuman, stats.MemorySys)
	}
	if stats.NumCPU <= 0 || stats.GoRoutines <= 0 {
		t.Errorf("implausible stats: %+v", stats)
	}
}
