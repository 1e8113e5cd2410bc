package types

import "testing"

func TestSide(t *testing.T) {
	if SideA.String() != "A" || SideB.String() != "B" || Side(9).String() != "unknown" {
		t.Errorf("Side.String() 结果错误")
	}
	if SideA.Other() != SideB || SideB.Other() != SideA {
		t.Errorf("Side.Other() 结果错误")
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		d    Direction
		want string
	}{
		{DirUnknown, "unknown"},
		{DirInbound, "inbound"},
		{DirOutbound, "outbound"},
		{Direction(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.d.String(); got != tt.want {
				t.Errorf("Direction(%d).String() = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestBufferEvent(t *testing.T) {
	tests := []struct {
		e    BufferEvent
		want string
	}{
		{EventEmptyToNonEmpty, "empty->non-empty"},
		{EventNonEmptyToEmpty, "non-empty->empty"},
		{EventWritten, "written"},
		{EventRead, "read"},
		{EventDisconnected, "disconnected"},
		{BufferEvent(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("BufferEvent(%d).String() = %q, want %q", tt.e, got, tt.want)
		}
	}
}

func TestNonStopWritePolicy(t *testing.T) {
	tests := []struct {
		p    NonStopWritePolicy
		want string
	}{
		{PolicyForce, "force"},
		{PolicyDiscardExisting, "discard-existing"},
		{PolicyDiscardIncoming, "discard-incoming"},
		{NonStopWritePolicy(7), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("NonStopWritePolicy(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestStackState(t *testing.T) {
	tests := []struct {
		s    StackState
		want string
	}{
		{StateUnattached, "unattached"},
		{StateConnected, "connected"},
		{StateListening, "listening"},
		{StateClosed, "closed"},
		{StackState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("StackState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
