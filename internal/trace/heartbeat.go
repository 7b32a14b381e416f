package trace

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Heartbeat emits an event every interval naming the files still being
// processed. A file that keeps showing up across beats is stuck.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat starts beating into t. It returns nil when t is off or
// interval is not positive; Stop accepts nil.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || t.Level() == LevelOff || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go h.run(t, interval)
	return h
}

func (h *Heartbeat) run(t Tracer, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for beat := 1; ; beat++ {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			files := OpenFiles()
			ev := &Event{
				Time:   now,
				Seq:    seq.Add(1),
				Kind:   KindHeartbeat,
				Scope:  ScopeRun,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d, %d open", beat, len(files)),
			}
			if len(files) > 0 {
				ev.Attrs = map[string]string{"files": strings.Join(files, " ")}
			}
			t.Emit(ev)
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
