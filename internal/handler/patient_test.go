package handler

import "testing"

func TestNormalizePageLimit(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: 10},
		{name: "negative page", page: -3, limit: 25, wantPage: 1, wantLimit: 25},
		{name: "limit too large", page: 2, limit: 500, wantPage: 2, wantLimit: 10},
		{name: "in range untouched", page: 4, limit: 100, wantPage: 4, wantLimit: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := normalizePageLimit(tt.page, tt.limit)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Fatalf("normalizePageLimit(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.limit, page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}
