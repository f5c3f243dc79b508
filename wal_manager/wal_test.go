package wal_manager

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 256

func testImage(fill byte) []byte {
	img := make([]byte, testPageSize)
	for i := range img {
		img[i] = fill
	}
	return img
}

// appendAndCommit stages the given page images and commits them as one batch.
func appendAndCommit(t *testing.T, w *WAL, pages map[int64][]byte, order []int64) {
	t.Helper()
	for _, id := range order {
		require.NoError(t, w.Append(id, pages[id]))
	}
	require.NoError(t, w.Commit())
}

func TestReplayReturnsCommittedImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	pages := map[int64][]byte{
		3: testImage(0xAA),
		7: testImage(0xBB),
		0: testImage(0xCC),
	}
	appendAndCommit(t, w, pages, []int64{3, 7, 0})

	got := make(map[int64][]byte)
	applied, err := w.Replay(func(pageID int64, image []byte) error {
		got[pageID] = append([]byte(nil), image...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, applied)
	for id, want := range pages {
		require.Equal(t, want, got[id], "page %d", id)
	}
}

func TestReplayIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	appendAndCommit(t, w, map[int64][]byte{1: testImage(1)}, []int64{1})

	first, err := w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	second, err := w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRollbackDropsStagedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(1, testImage(1)))
	require.NoError(t, w.Append(2, testImage(2)))
	w.Rollback()
	require.True(t, w.Empty())

	// The rolled-back sequence numbers are reused; replay still sees a
	// contiguous sequence.
	appendAndCommit(t, w, map[int64][]byte{5: testImage(5)}, []int64{5})
	applied, err := w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, applied)
}

func TestUncommittedRecordsNeverReachTheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	require.NoError(t, w.Append(1, testImage(1)))
	require.NoError(t, w.Close())

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, stat.Size())
}

func TestTornTailIsCutOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	appendAndCommit(t, w, map[int64][]byte{1: testImage(1)}, []int64{1})
	appendAndCommit(t, w, map[int64][]byte{2: testImage(2)}, []int64{2})
	intact := w.Size()
	appendAndCommit(t, w, map[int64][]byte{3: testImage(3)}, []int64{3})
	require.NoError(t, w.Close())

	// Lose the last few bytes of the final record, as a crash mid-write
	// would.
	require.NoError(t, os.Truncate(path, w.Size()-5))

	w, err = OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	applied, err := w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 2, applied)
	require.Equal(t, intact, w.Size())

	// The log is usable again after the cut.
	appendAndCommit(t, w, map[int64][]byte{4: testImage(4)}, []int64{4})
	applied, err = w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 3, applied)
}

func TestMidStreamCorruptionFailsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	appendAndCommit(t, w, map[int64][]byte{1: testImage(1)}, []int64{1})
	firstEnd := w.Size()
	appendAndCommit(t, w, map[int64][]byte{2: testImage(2)}, []int64{2})
	require.NoError(t, w.Close())

	// Flip a data byte inside the first record. It is followed by a whole
	// further record, so this cannot be a torn tail.
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, firstEnd-1)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Replay(func(int64, []byte) error { return nil })
	require.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestTornBatchIsNeverHalfApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	appendAndCommit(t, w, map[int64][]byte{1: testImage(1), 2: testImage(2)}, []int64{1, 2})
	intact := w.Size()
	appendAndCommit(t, w, map[int64][]byte{3: testImage(3), 4: testImage(4), 5: testImage(5)}, []int64{3, 4, 5})
	total := w.Size()
	require.NoError(t, w.Close())

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	// Cutting anywhere inside the second batch, even between two of its
	// whole records, must recover only the first batch. A batch without
	// its marker never reached the commit fsync's return.
	for cut := intact + 1; cut < total; cut += 7 {
		cutPath := filepath.Join(dir, "cut.wal")
		require.NoError(t, os.WriteFile(cutPath, original[:cut], 0644))

		cw, err := OpenWAL(cutPath, testPageSize)
		require.NoError(t, err)
		var pages []int64
		applied, err := cw.Replay(func(pageID int64, _ []byte) error {
			pages = append(pages, pageID)
			return nil
		})
		require.NoError(t, err, "cut at %d", cut)
		require.Equal(t, 2, applied, "cut at %d", cut)
		require.Equal(t, []int64{1, 2}, pages, "cut at %d", cut)
		require.Equal(t, intact, cw.Size(), "cut at %d", cut)
		require.NoError(t, cw.Close())
	}
}

func TestMidStreamLengthCorruptionFailsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	for i := int64(1); i <= 5; i++ {
		appendAndCommit(t, w, map[int64][]byte{i: testImage(byte(i))}, []int64{i})
	}
	require.NoError(t, w.Close())

	// A huge length in the first record's header makes its claimed end run
	// past the file. Committed batches follow it, so this is corruption,
	// not a torn tail, and replay must not silently drop them.
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 16)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Replay(func(int64, []byte) error { return nil })
	require.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestTruncateEmptiesTheLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	appendAndCommit(t, w, map[int64][]byte{1: testImage(1)}, []int64{1})
	require.NoError(t, w.Truncate())
	require.True(t, w.Empty())

	applied, err := w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Zero(t, applied)

	// Sequence numbers restart from 1 after a truncate.
	appendAndCommit(t, w, map[int64][]byte{9: testImage(9)}, []int64{9})
	applied, err = w.Replay(func(int64, []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, applied)
}

func TestIncompressibleImagesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	rng := rand.New(rand.NewSource(7))
	image := make([]byte, testPageSize)
	rng.Read(image)

	require.NoError(t, w.Append(4, image))
	require.NoError(t, w.Commit())

	var got []byte
	applied, err := w.Replay(func(_ int64, img []byte) error {
		got = append([]byte(nil), img...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	require.Equal(t, image, got)
}

func TestTruncationAtAnyOffsetLeavesValidPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)

	// One commit per record so the boundary after each record is known.
	const n = 5
	boundaries := make([]int64, 0, n+1)
	boundaries = append(boundaries, 0)
	for i := 0; i < n; i++ {
		appendAndCommit(t, w, map[int64][]byte{int64(i): testImage(byte(i))}, []int64{int64(i)})
		boundaries = append(boundaries, w.Size())
	}
	total := w.Size()
	require.NoError(t, w.Close())

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	for cut := int64(0); cut <= total; cut += 11 {
		cutPath := filepath.Join(dir, "cut.wal")
		require.NoError(t, os.WriteFile(cutPath, original[:cut], 0644))

		wantApplied := 0
		for _, b := range boundaries[1:] {
			if b <= cut {
				wantApplied++
			}
		}

		cw, err := OpenWAL(cutPath, testPageSize)
		require.NoError(t, err)
		applied, err := cw.Replay(func(int64, []byte) error { return nil })
		require.NoError(t, err, "cut at %d", cut)
		require.Equal(t, wantApplied, applied, "cut at %d", cut)
		require.NoError(t, cw.Close())
	}
}

func TestAppendRejectsWrongImageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := OpenWAL(path, testPageSize)
	require.NoError(t, err)
	defer w.Close()

	require.Error(t, w.Append(1, make([]byte, testPageSize-1)))
}
