package event

type EventType string

const TypePlayPause EventType = "play-pause"
const TypeNextTrack EventType = "next-track"
const TypePreviousTrack EventType = "previous-track"
const TypeSetVolume EventType = "set-volume"
const TypeMiniPlayer EventType = "toggle-miniplayer"
const TypeDarkMode EventType = "toggle-darkmode"
const TypeAppState EventType = "app-state"
const TypeNavigate EventType = "navigate"
const TypeResult EventType = "result"
const TypeStateChanged EventType = "state-changed"
const TypeStringMessage EventType = "message"
