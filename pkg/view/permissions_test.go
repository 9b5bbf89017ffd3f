package view

import "testing"

func TestPermissionGate(t *testing.T) {
	for _, name := range allowedPermissions {
		if !PermissionAllowed(name) {
			t.Errorf("permission %s must be allowed", name)
		}
	}
	for _, name := range []string{"geolocation", "notifications", "clipboard-read", "midi", ""} {
		if PermissionAllowed(name) {
			t.Errorf("permission %s must be denied", name)
		}
	}
}

func TestGrantableSubset(t *testing.T) {
	// explicit grants must never widen the gate
	for _, perm := range grantablePermissions {
		name, ok := permissionNames[perm]
		if !ok {
			t.Errorf("grantable permission %s has no gate name", perm)
			continue
		}
		if !PermissionAllowed(name) {
			t.Errorf("grantable permission %s is outside the allow-list", perm)
		}
	}
}

func TestGrantedPermissionsPassTheGate(t *testing.T) {
	granted := GrantedPermissions()
	if len(granted) != len(grantablePermissions) {
		t.Errorf("expected %d granted permissions, got %d", len(grantablePermissions), len(granted))
	}
	for _, perm := range granted {
		if !PermissionAllowed(permissionNames[perm]) {
			t.Errorf("granted permission %s does not pass the gate", perm)
		}
	}
}
