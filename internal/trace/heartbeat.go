package trace

import (
	"fmt"
	"sync"
	"time"
)

// StartHeartbeat emits a heartbeat every interval until the returned stop
// function is called. Heartbeats with no span ends between them mean the run
// is stuck, usually inside the go command during package loading.
func StartHeartbeat(t Tracer, interval time.Duration) (stop func()) {
	if t == nil || !t.Enabled() || interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for n := 1; ; n++ {
			select {
			case <-done:
				return
			case <-tick.C:
				t.Emit(stamp(&Event{Kind: KindHeartbeat, Scope: ScopeDriver, Name: "heartbeat", Detail: fmt.Sprintf("#%d", n)}))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
