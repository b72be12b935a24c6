package coupon

import (
	"errors"
	"testing"
	"time"
)

func TestCheckUsable(t *testing.T) {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name   string
		coupon Coupon
		usages int
		want   error
	}{
		{
			name:   "valid",
			coupon: Coupon{Status: StatusActive, ExpiresAt: future, UsageLimit: 5},
			usages: 4,
			want:   nil,
		},
		{
			name:   "inactive",
			coupon: Coupon{Status: StatusInactive, ExpiresAt: future},
			want:   ErrInactive,
		},
		{
			name:   "expired",
			coupon: Coupon{Status: StatusActive, ExpiresAt: past},
			want:   ErrExpired,
		},
		{
			name:   "limit reached",
			coupon: Coupon{Status: StatusActive, ExpiresAt: future, UsageLimit: 5},
			usages: 5,
			want:   ErrUsageLimit,
		},
		{
			name:   "zero limit means unlimited",
			coupon: Coupon{Status: StatusActive, ExpiresAt: future, UsageLimit: 0},
			usages: 1000,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coupon.checkUsable(now, tt.usages); !errors.Is(got, tt.want) {
				t.Fatalf("checkUsable() = %v, want %v", got, tt.want)
			}
		})
	}
}
