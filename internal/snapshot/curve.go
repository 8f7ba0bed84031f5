package snapshot

import (
	"sync"
	"time"

	"alpha-arena/pkg/types"
)

// CurvePoint is one bucket of an account's asset curve.
type CurvePoint struct {
	Time        time.Time `json:"time"`
	TotalAssets float64   `json:"total_assets"`
}

// curveCache memoizes computed asset curves per account and resolution.
// Every entry for an account is invalidated whenever a new snapshot row
// lands for it.
type curveCache struct {
	mu      sync.Mutex
	entries map[curveKey][]CurvePoint
}

type curveKey struct {
	accountID int64
	window    time.Duration
	bucket    time.Duration
}

func newCurveCache() *curveCache {
	return &curveCache{entries: make(map[curveKey][]CurvePoint)}
}

func (c *curveCache) get(key curveKey) ([]CurvePoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	points, ok := c.entries[key]
	return points, ok
}

func (c *curveCache) set(key curveKey, points []CurvePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = points
}

func (c *curveCache) invalidate(accountID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.accountID == accountID {
			delete(c.entries, key)
		}
	}
}

// AssetCurve returns the account's asset curve over the window, bucketed to
// the given resolution (last snapshot in each bucket wins). Results are
// cached until the next snapshot write for the account.
func (s *Service) AssetCurve(accountID int64, window, bucket time.Duration) ([]CurvePoint, error) {
	key := curveKey{accountID: accountID, window: window, bucket: bucket}
	if points, ok := s.curves.get(key); ok {
		return points, nil
	}

	snaps, err := s.store.SnapshotsSince(accountID, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}

	points := bucketSnapshots(snaps, bucket)
	s.curves.set(key, points)
	return points, nil
}

func bucketSnapshots(snaps []types.AssetSnapshot, bucket time.Duration) []CurvePoint {
	if bucket <= 0 {
		bucket = time.Minute
	}
	var points []CurvePoint
	for _, snap := range snaps {
		at := snap.EventTime.Truncate(bucket)
		point := CurvePoint{Time: at, TotalAssets: snap.TotalAssets}
		if n := len(points); n > 0 && points[n-1].Time.Equal(at) {
			points[n-1] = point
			continue
		}
		points = append(points, point)
	}
	return points
}
