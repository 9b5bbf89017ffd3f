package view

import (
	"slices"

	cdpbrowser "github.com/chromedp/cdproto/browser"
)

// allowedPermissions is the complete permission allow-list for the embedded
// surface. Everything not named here is denied, the surface never prompts.
var allowedPermissions = []string{
	"media",
	"mediaKeySystem",
	"audioCapture",
	"videoCapture",
	"pointerLock",
	"fullscreen",
}

// PermissionAllowed is the gate applied to permission requests from the
// embedded page.
func PermissionAllowed(name string) bool {
	return slices.Contains(allowedPermissions, name)
}

// grantablePermissions is the subset of the allow-list the browser accepts
// explicit grants for. Pointer lock and fullscreen have no grant type, they
// are covered by the gate alone.
var grantablePermissions = []cdpbrowser.PermissionType{
	cdpbrowser.PermissionTypeAudioCapture,
	cdpbrowser.PermissionTypeVideoCapture,
	cdpbrowser.PermissionTypeProtectedMediaIdentifier,
}

// permissionNames maps the grantable permission types onto the gate's
// vocabulary.
var permissionNames = map[cdpbrowser.PermissionType]string{
	cdpbrowser.PermissionTypeAudioCapture:             "audioCapture",
	cdpbrowser.PermissionTypeVideoCapture:             "videoCapture",
	cdpbrowser.PermissionTypeProtectedMediaIdentifier: "mediaKeySystem",
}

// GrantedPermissions is the grant set applied at surface creation: the
// grantable subset filtered through the gate, so widening the grant list
// without widening the gate has no effect.
func GrantedPermissions() []cdpbrowser.PermissionType {
	granted := make([]cdpbrowser.PermissionType, 0, len(grantablePermissions))
	for _, perm := range grantablePermissions {
		if PermissionAllowed(permissionNames[perm]) {
			granted = append(granted, perm)
		}
	}
	return granted
}
