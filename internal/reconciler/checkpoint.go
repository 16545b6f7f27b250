package reconciler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Checkpoints is the local KV holding ingestion progress per watched
// collection and the cooperative stop flags of long-running sync jobs.
// It survives restarts so a backfill resumes where the stream left off.
type Checkpoints struct {
	db *pebble.DB
}

// OpenCheckpoints opens (or creates) the checkpoint database at path.
func OpenCheckpoints(path string) (*Checkpoints, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open checkpoints at %s: %w", path, err)
	}
	return &Checkpoints{db: db}, nil
}

func (c *Checkpoints) Close() error {
	return c.db.Close()
}

func eventKey(chainID uint64, token string) []byte {
	return fmt.Appendf(nil, "event:%d:%s", chainID, token)
}

func stopKey(jobID string) []byte {
	return append([]byte("stop:"), jobID...)
}

// LastEvent returns the newest event timestamp recorded for a
// collection, or false when none has been recorded yet.
func (c *Checkpoints) LastEvent(chainID uint64, token string) (time.Time, bool) {
	value, closer, err := c.db.Get(eventKey(chainID, token))
	if err != nil {
		return time.Time{}, false
	}
	defer closer.Close()
	if len(value) != 8 {
		return time.Time{}, false
	}
	return time.Unix(int64(binary.BigEndian.Uint64(value)), 0), true
}

// SetLastEvent advances the collection's checkpoint. Older timestamps
// never move it backwards.
func (c *Checkpoints) SetLastEvent(chainID uint64, token string, t time.Time) error {
	if prev, ok := c.LastEvent(chainID, token); ok && !t.After(prev) {
		return nil
	}
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], uint64(t.Unix()))
	return c.db.Set(eventKey(chainID, token), value[:], pebble.NoSync)
}

// RequestStop asks a running sync job to finish its current unit of
// work and exit.
func (c *Checkpoints) RequestStop(jobID string) error {
	return c.db.Set(stopKey(jobID), []byte{1}, pebble.Sync)
}

// Stopped reports whether a stop has been requested for the job.
func (c *Checkpoints) Stopped(jobID string) bool {
	value, closer, err := c.db.Get(stopKey(jobID))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			return true
		}
		return false
	}
	defer closer.Close()
	return len(value) == 1 && value[0] == 1
}

// ClearStop removes a job's stop flag once the job has exited.
func (c *Checkpoints) ClearStop(jobID string) error {
	return c.db.Delete(stopKey(jobID), pebble.Sync)
}
