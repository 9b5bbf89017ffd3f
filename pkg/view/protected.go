package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"emperror.dev/errors"
	"github.com/beevik/ntp"
)

// ProtectedContentStatus reports whether license gated playback can work in
// the current environment. Probed once per session, the result does not
// change while the browser lives.
type ProtectedContentStatus struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
	Path      string `json:"path,omitempty"`
}

const keySystemProbeScript = `(function(){
if (!navigator.requestMediaKeySystemAccess) {
	return Promise.resolve({available: false, message: 'encrypted media API unavailable'});
}
var config = [{
	initDataTypes: ['cenc'],
	audioCapabilities: [{contentType: 'audio/mp4; codecs="mp4a.40.2"'}],
	videoCapabilities: [{contentType: 'video/mp4; codecs="avc1.42E01E"'}]
}];
return navigator.requestMediaKeySystemAccess('com.widevine.alpha', config).then(function() {
	return {available: true, message: 'media key system available'};
}, function(err) {
	return {available: false, message: 'media key system rejected: ' + String(err)};
});
})()`

// cdmCandidates lists where the media decryption component usually sits.
func cdmCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/Frameworks/Google Chrome Framework.framework/Versions/Current/Libraries/WidevineCdm",
			filepath.Join(os.Getenv("HOME"), "Library/Application Support/Google/Chrome/WidevineCdm"),
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("PROGRAMFILES"), `Google\Chrome\Application\WidevineCdm`),
			filepath.Join(os.Getenv("LOCALAPPDATA"), `Google\Chrome\User Data\WidevineCdm`),
		}
	default:
		return []string{
			"/opt/google/chrome/WidevineCdm",
			"/usr/lib/chromium/WidevineCdm",
			filepath.Join(os.Getenv("HOME"), ".config/google-chrome/WidevineCdm"),
		}
	}
}

func locateCDM() string {
	for _, candidate := range cdmCandidates() {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}

// clockSkew measures the offset between the system clock and NTP time.
// License servers reject requests from machines with a skewed clock, so a
// large offset is worth an advisory even when the key system probe passes.
func clockSkew(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot query ntp server %s", server)
	}
	if err := resp.Validate(); err != nil {
		return 0, errors.Wrapf(err, "invalid ntp response from %s", server)
	}
	return resp.ClockOffset, nil
}

const maxClockSkew = 30 * time.Second

// probeProtectedContent runs the one time capability probe. Repeating it has
// no benefit, the once latch keeps it to a single run per session.
func (surface *Surface) probeProtectedContent(ctx context.Context) {
	surface.probeOnce.Do(func() {
		status := &ProtectedContentStatus{}
		if err := surface.RunScript(ctx, keySystemProbeScript, status); err != nil {
			surface.logger.Error().Err(err).Msg("cannot probe media key system")
			status.Available = false
			status.Message = fmt.Sprintf("probe failed: %v", err)
		}
		status.Path = locateCDM()
		if status.Available && status.Path == "" {
			status.Message += "; decryption component not found on disk"
		}
		if surface.config.NTPServer != "" {
			if skew, err := clockSkew(surface.config.NTPServer); err != nil {
				surface.logger.Info().Err(err).Msg("clock skew check failed")
			} else if skew > maxClockSkew || skew < -maxClockSkew {
				status.Message += fmt.Sprintf("; system clock off by %v, license requests may fail", skew.Round(time.Second))
				surface.logger.Warn().Msgf("system clock off by %v", skew.Round(time.Second))
			}
		}
		surface.mutex.Lock()
		surface.protected = status
		surface.mutex.Unlock()
		surface.logger.Info().Msgf("protected content: available=%v %s", status.Available, status.Message)
	})
}

// ProtectedContentStatus returns the probe result, or a pending record when
// the probe has not run yet.
func (surface *Surface) ProtectedContentStatus() ProtectedContentStatus {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	if surface.protected == nil {
		return ProtectedContentStatus{Available: false, Message: "not probed yet"}
	}
	return *surface.protected
}
