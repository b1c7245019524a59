package feed_test

import (
	"testing"
	"time"

	"github.com/nexocrm/leadview"
	"github.com/nexocrm/leadview/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionMergeDeduplicates(t *testing.T) {
	col := feed.NewCollection()

	page := []leadview.Lead{{ID: "l1"}, {ID: "l2"}, {ID: "l3"}}

	require.Equal(t, 3, col.Merge(page))
	require.Equal(t, 3, col.Len())

	// Merging the same page twice yields the same set as merging once.
	require.Equal(t, 0, col.Merge(page))
	require.Equal(t, 3, col.Len())

	// Overlapping delivery only adds the unseen id.
	require.Equal(t, 1, col.Merge([]leadview.Lead{{ID: "l3"}, {ID: "l4"}}))
	require.Equal(t, 4, col.Len())
}

func TestCollectionMergeKeepsExistingEntry(t *testing.T) {
	col := feed.NewCollection()
	col.Merge([]leadview.Lead{{ID: "l1", Status: "contacted"}})
	col.Merge([]leadview.Lead{{ID: "l1", Status: "new"}})

	snap := col.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "contacted", snap[0].Status)
}

func TestCollectionSnapshotOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	col := feed.NewCollection()
	col.Merge([]leadview.Lead{
		{ID: "l1", CreatedAt: base},
		{ID: "l3", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "l2", CreatedAt: base.Add(time.Hour)},
		{ID: "l0", CreatedAt: base},
	})

	snap := col.Snapshot()
	ids := make([]string, len(snap))
	for i, l := range snap {
		ids[i] = l.ID
	}
	// Newest first, ties broken on id.
	assert.Equal(t, []string{"l3", "l2", "l0", "l1"}, ids)
}
