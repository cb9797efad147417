package control

import (
	"fmt"
	"os"
)

// DumpLogs stops every forwarding thread's log ring and serializes each
// one to "<dir>/r2-log-<thread>.json", the same one-shot dump the
// original's log API performs on request rather than continuously
// flushing. Stopping is permanent for that thread's logger: there is no
// Resume, so DumpLogs is meant for shutdown-time diagnostics rather than
// a repeatable live tool.
func (r *R2) DumpLogs(dir string) error {
	for _, t := range r.threads {
		t.logger.Stop()
		path := fmt.Sprintf("%s/r2-log-%d.json", dir, t.thread)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("control: dump logs thread %d: %w", t.thread, err)
		}
		err = t.logger.Serialize(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("control: serialize logs thread %d: %w", t.thread, err)
		}
	}
	return nil
}
