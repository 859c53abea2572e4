package ranking

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/okian/kayfabe/internal/domain/model"
)

func TestBoard_BasicOperations(t *testing.T) {
	b := NewBoard([]model.Standing{
		{WrestlerID: 7, Name: "Seven", Score: 4100},
		{WrestlerID: 3, Name: "Three", Score: 4300},
		{WrestlerID: 9, Name: "Nine", Score: 3900},
	})

	if b.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", b.Len())
	}

	top := b.Top(0)
	want := []int64{3, 7, 9}
	for i, e := range top {
		if e.WrestlerID != want[i] {
			t.Errorf("position %d: expected wrestler %d, got %d", i+1, want[i], e.WrestlerID)
		}
		if e.Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i+1, i+1, e.Rank)
		}
	}

	if rank, ok := b.Rank(9); !ok || rank != 3 {
		t.Errorf("expected wrestler 9 at rank 3, got %d (%v)", rank, ok)
	}
	if score, ok := b.Score(7); !ok || score != 4100 {
		t.Errorf("expected score 4100, got %d (%v)", score, ok)
	}
	if e, ok := b.Entry(3); !ok || e.Name != "Three" || e.Rank != 1 {
		t.Errorf("unexpected entry %+v (%v)", e, ok)
	}
}

func TestBoard_Absent(t *testing.T) {
	b := NewBoard(nil)
	if _, ok := b.Rank(1); ok {
		t.Error("expected absent rank on empty board")
	}
	if _, ok := b.Score(1); ok {
		t.Error("expected absent score on empty board")
	}
	if len(b.Top(10)) != 0 {
		t.Error("expected empty top")
	}
}

func TestBoard_TiesKeepSourceOrder(t *testing.T) {
	b := NewBoard([]model.Standing{
		{WrestlerID: 5, Score: 4000},
		{WrestlerID: 2, Score: 4000},
		{WrestlerID: 8, Score: 4000},
	})
	for i, id := range []int64{5, 2, 8} {
		if rank, _ := b.Rank(id); rank != i+1 {
			t.Errorf("wrestler %d: expected rank %d, got %d", id, i+1, rank)
		}
	}
}

func TestBoard_DuplicateKeepsFirst(t *testing.T) {
	b := NewBoard([]model.Standing{
		{WrestlerID: 1, Score: 10},
		{WrestlerID: 1, Score: 99},
	})
	if b.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", b.Len())
	}
	if score, _ := b.Score(1); score != 10 {
		t.Errorf("expected first row to win, got %d", score)
	}
}

func TestBoard_TopLimit(t *testing.T) {
	rows := make([]model.Standing, 50)
	for i := range rows {
		rows[i] = model.Standing{WrestlerID: int64(i + 1), Score: int64(1000 - i)}
	}
	b := NewBoard(rows)

	top := b.Top(10)
	if len(top) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(top))
	}
	if top[9].WrestlerID != 10 || top[9].Rank != 10 {
		t.Errorf("unexpected tenth entry %+v", top[9])
	}
	if len(b.Top(500)) != 50 {
		t.Error("expected limit above size to return all rows")
	}
}

func TestBoard_RankMatchesSortedOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rows := make([]model.Standing, 2000)
	for i := range rows {
		rows[i] = model.Standing{WrestlerID: int64(i + 1), Score: int64(rng.Intn(300))}
	}
	b := NewBoard(rows)

	sorted := append([]model.Standing(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	for i, row := range sorted {
		rank, ok := b.Rank(row.WrestlerID)
		if !ok || rank != i+1 {
			t.Fatalf("wrestler %d: expected rank %d, got %d (%v)", row.WrestlerID, i+1, rank, ok)
		}
	}
	for i, e := range b.Top(0) {
		if e.WrestlerID != sorted[i].WrestlerID {
			t.Fatalf("position %d: expected wrestler %d, got %d", i+1, sorted[i].WrestlerID, e.WrestlerID)
		}
	}
}
