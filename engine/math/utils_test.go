package math

import "testing"

func TestAlign(t *testing.T) {
	tests := []struct {
		v, align       uint64
		up, down       uint64
		alreadyAligned bool
	}{
		{0, 64, 0, 0, true},
		{1, 64, 64, 0, false},
		{64, 64, 64, 64, true},
		{65, 64, 128, 64, false},
		{100, 0, 100, 100, true},
		{7, 3, 9, 6, false},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.v, tt.align); got != tt.up {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.up)
		}
		if got := AlignDown(tt.v, tt.align); got != tt.down {
			t.Errorf("AlignDown(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.down)
		}
		if got := IsAligned(tt.v, tt.align); got != tt.alreadyAligned {
			t.Errorf("IsAligned(%d, %d) = %t, want %t", tt.v, tt.align, got, tt.alreadyAligned)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(float32(16), 1, 4); got != 4 {
		t.Errorf("Clamp(16, 1, 4) = %v, want 4", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Errorf("Clamp(-3, 0, 10) = %v, want 0", got)
	}
	if got := Clamp(uint32(5), 1, 10); got != 5 {
		t.Errorf("Clamp(5, 1, 10) = %v, want 5", got)
	}
	if Min(3, 2) != 2 || Max(3, 2) != 3 {
		t.Error("Min/Max returned the wrong operand")
	}
}
