package platform

import (
	"fmt"
	"log/slog"
	"os"

	"meetingbot/internal/browser"
	"meetingbot/internal/config"
)

// PlatformImageEnv names the deployment image the process was built for.
// When set, the factory refuses payloads targeting a different platform.
const PlatformImageEnv = "MEETINGBOT_PLATFORM_IMAGE"

// New selects the adapter variant for the payload's platform tag. The tag
// is inspected exactly once, here; the engine only ever sees the Adapter
// interface.
func New(settings *config.BotData, page browser.Page, recordingDir string, logger *slog.Logger) (Adapter, error) {
	tag := settings.MeetingInfo.Platform

	if image := os.Getenv(PlatformImageEnv); image != "" && !validPlatformForImage(tag, image) {
		return nil, fmt.Errorf("platform image %q does not match payload platform %q", image, tag)
	}

	switch tag {
	case config.PlatformGoogle:
		return newMeetAdapter(settings, page, recordingDir, logger), nil
	case config.PlatformTeams:
		return newTeamsAdapter(settings, page, recordingDir, logger), nil
	case config.PlatformZoom:
		return newZoomAdapter(settings, page, recordingDir, logger), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %q", tag)
	}
}

// The Google image historically shipped under the name "meet"; accept the
// mismatch.
func validPlatformForImage(platform, image string) bool {
	if platform == image {
		return true
	}
	return platform == config.PlatformGoogle && image == "meet"
}
