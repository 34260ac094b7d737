package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Role
	}{
		{name: "doctor", in: "doctor", want: RoleDoctor},
		{name: "admin upper", in: "ADMIN", want: RoleAdmin},
		{name: "patient padded", in: "  patient ", want: RolePatient},
		{name: "empty", in: "", want: RoleNone},
		{name: "unknown collapses", in: "superuser", want: RoleNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRole(tt.in); got != tt.want {
				t.Fatalf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultReadScope(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want ResultScope
	}{
		{name: "admin sees everything", role: RoleAdmin, want: ScopeAll},
		{name: "doctor needs a link", role: RoleDoctor, want: ScopeLinked},
		{name: "patient reads any", role: RolePatient, want: ScopeAny},
		{name: "unscoped reads any", role: RoleNone, want: ScopeAny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Identity{ID: 1, Role: tt.role}
			if got := id.ResultReadScope(); got != tt.want {
				t.Fatalf("ResultReadScope() = %v, want %v", got, tt.want)
			}
		})
	}
}
