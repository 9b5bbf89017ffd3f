package view

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sahmad98/go-ringbuffer"
)

// consoleRing keeps the most recent page console lines for the diagnostics
// endpoint. The hosted page is noisy, only a bounded window is worth keeping.
type consoleRing struct {
	mutex sync.Mutex
	ring  *ringbuffer.RingBuffer
}

func newConsoleRing(size int32) *consoleRing {
	return &consoleRing{
		ring: ringbuffer.NewRingBuffer(size),
	}
}

func (console *consoleRing) Write(format string, a ...interface{}) {
	line := fmt.Sprintf(format, a...)
	if suppressedConsole(line) {
		return
	}
	console.mutex.Lock()
	defer console.mutex.Unlock()
	console.ring.Write(line)
}

func (console *consoleRing) Lines() []string {
	console.mutex.Lock()
	defer console.mutex.Unlock()
	result := []string{}
	console.ring.Reader = console.ring.Writer
	var i int32
	for ; i < console.ring.Size; i++ {
		elem := console.ring.Read()
		str, ok := elem.(string)
		if !ok {
			continue
		}
		result = append(result, str)
	}
	return result
}

// suppressedConsole reports whether the line belongs to the lyrics subsystem
// of the hosted page. That subsystem fails independently of playback and its
// errors must not surface as application errors.
func suppressedConsole(line string) bool {
	return strings.Contains(strings.ToLower(line), "lyrics")
}
