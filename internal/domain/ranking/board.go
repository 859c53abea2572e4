package ranking

import (
	"github.com/okian/kayfabe/internal/domain/model"
)

// Board is an immutable ranked result set backed by a treap.
//
// Ordering: score DESC, then the position the row had in the source
// result. In-order traversal yields the leaderboard from best to worst and
// node sizes give a wrestler's rank in O(log n).
type Board struct {
	root *node
	byID map[int64]*node
}

// Entry is one leaderboard row.
type Entry struct {
	Rank        int    `json:"rank"`
	WrestlerID  int64  `json:"wrestler_id"`
	Name        string `json:"name,omitempty"`
	PromotionID *int64 `json:"promotion_id,omitempty"`
	Score       int64  `json:"score"`
}

type node struct {
	row   model.Standing
	seq   int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether a ranks before b.
func less(a, b *node) bool {
	if a.row.Score != b.row.Score {
		return a.row.Score > b.row.Score
	}
	return a.seq < b.seq
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority scrambles seq so sorted input still yields a balanced treap.
func priority(seq int) uint64 {
	z := uint64(seq) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(root, n *node) *node {
	if root == nil {
		return n
	}
	if less(n, root) {
		root.left = insert(root.left, n)
		if root.left.prio > root.prio {
			root = rotateRight(root)
		}
	} else {
		root.right = insert(root.right, n)
		if root.right.prio > root.prio {
			root = rotateLeft(root)
		}
	}
	fix(root)
	return root
}

// NewBoard ranks rows. A wrestler listed more than once keeps the first row.
func NewBoard(rows []model.Standing) *Board {
	b := &Board{byID: make(map[int64]*node, len(rows))}
	for i, row := range rows {
		if _, dup := b.byID[row.WrestlerID]; dup {
			continue
		}
		n := &node{row: row, seq: i, prio: priority(i), size: 1}
		b.byID[row.WrestlerID] = n
		b.root = insert(b.root, n)
	}
	return b
}

// Len returns the number of ranked wrestlers.
func (b *Board) Len() int {
	return len(b.byID)
}

// Rank returns the 1-based position of a wrestler.
func (b *Board) Rank(wrestlerID int64) (int, bool) {
	target, ok := b.byID[wrestlerID]
	if !ok {
		return 0, false
	}
	rank := 1
	for n := b.root; n != nil; {
		switch {
		case n == target:
			return rank + nsize(n.left), true
		case less(target, n):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0, false
}

// Score returns a wrestler's score.
func (b *Board) Score(wrestlerID int64) (int64, bool) {
	n, ok := b.byID[wrestlerID]
	if !ok {
		return 0, false
	}
	return n.row.Score, true
}

// Entry returns a wrestler's row.
func (b *Board) Entry(wrestlerID int64) (Entry, bool) {
	n, ok := b.byID[wrestlerID]
	if !ok {
		return Entry{}, false
	}
	rank, _ := b.Rank(wrestlerID)
	return toEntry(n, rank), true
}

// Top returns up to limit rows in rank order; limit < 1 returns all.
func (b *Board) Top(limit int) []Entry {
	if limit < 1 || limit > b.Len() {
		limit = b.Len()
	}
	out := make([]Entry, 0, limit)
	collectTopN(b.root, limit, &out)
	return out
}

func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, toEntry(n, len(*out)+1))
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

func toEntry(n *node, rank int) Entry {
	return Entry{
		Rank:        rank,
		WrestlerID:  n.row.WrestlerID,
		Name:        n.row.Name,
		PromotionID: n.row.PromotionID,
		Score:       n.row.Score,
	}
}
