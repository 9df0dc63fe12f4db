package archive

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// LaunchRecords reads every record of one launch, in write order.
// A record seen in several snapshots is returned once.
func LaunchRecords(ctx context.Context, ds lode.Dataset, launchID string) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, wrap("read", "snapshots", err)
	}

	seen := make(map[int64]bool)
	var out []map[string]any
	for _, snap := range snapshots {
		if !snapshotHasLaunch(snap, launchID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrap("read", fmt.Sprintf("snapshot/%s", snap.ID), err)
		}
		// Manifest paths are a coarse filter; record fields are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["launch_id"] != launchID {
				continue
			}
			seq := toInt64(record["seq"])
			if seen[seq] {
				continue
			}
			seen[seq] = true
			out = append(out, record)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("archive: launch %s: %w", launchID, ErrNotFound)
	}
	slices.SortFunc(out, func(a, b map[string]any) int {
		return cmp.Compare(toInt64(a["seq"]), toInt64(b["seq"]))
	})
	return out, nil
}

// toInt64 converts a decoded JSON number to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// snapshotHasLaunch checks manifest paths for an exact launch_id segment,
// so launch-1 does not match launch-10.
func snapshotHasLaunch(snap *lode.DatasetSnapshot, launchID string) bool {
	segment := "launch_id=" + launchID
	for _, f := range snap.Manifest.Files {
		if slices.Contains(strings.Split(f.Path, "/"), segment) {
			return true
		}
	}
	return false
}
