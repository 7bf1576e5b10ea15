package orderbook

type color uint8

const (
	red color = iota
	black
)

type node struct {
	key    uint64
	tick   *Tick
	color  color
	left   *node
	right  *node
	parent *node
}

// tickIndex keeps every live Tick of a book ordered by tick id.
// It is a red-black tree with a shared black sentinel, so lookups, inserts and
// removals are O(log n) and in-order walks from any starting price are cheap.
// Bids and asks share one index; a book that is not crossed keeps every bid
// below every ask.
type tickIndex struct {
	root *node
	nil  *node
	size int
}

func newTickIndex() *tickIndex {
	sentinel := &node{color: black}
	return &tickIndex{root: sentinel, nil: sentinel}
}

func (t *tickIndex) Len() int { return t.size }

// find returns the tick with the given id, or nil.
func (t *tickIndex) find(id uint64) *Tick {
	n := t.search(id)
	if n == t.nil {
		return nil
	}
	return n.tick
}

// getOrInit returns the tick at id, creating an empty one on side if missing.
func (t *tickIndex) getOrInit(id uint64, side Direction) *Tick {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		switch {
		case id < x.key:
			x = x.left
		case id > x.key:
			x = x.right
		default:
			return x.tick
		}
	}

	tick := NewTick(id, side)
	z := &node{key: id, tick: tick, color: red, left: t.nil, right: t.nil, parent: y}
	switch {
	case y == t.nil:
		t.root = z
	case id < y.key:
		y.left = z
	default:
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return tick
}

// remove drops the tick at id and reports whether it existed.
func (t *tickIndex) remove(id uint64) bool {
	z := t.search(id)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

func (t *tickIndex) min() *Tick {
	if n := t.minNode(t.root); n != t.nil {
		return n.tick
	}
	return nil
}

func (t *tickIndex) max() *Tick {
	if n := t.maxNode(t.root); n != t.nil {
		return n.tick
	}
	return nil
}

// ceiling returns the lowest tick with id >= from, or nil.
func (t *tickIndex) ceiling(from uint64) *Tick {
	if n := t.ceilingNode(from); n != t.nil {
		return n.tick
	}
	return nil
}

// floor returns the highest tick with id <= from, or nil.
func (t *tickIndex) floor(from uint64) *Tick {
	if n := t.floorNode(from); n != t.nil {
		return n.tick
	}
	return nil
}

// ascend calls fn for every tick with id >= from in increasing order until fn
// returns false.
func (t *tickIndex) ascend(from uint64, fn func(*Tick) bool) {
	for n := t.ceilingNode(from); n != t.nil; n = t.next(n) {
		if !fn(n.tick) {
			return
		}
	}
}

// descend calls fn for every tick with id <= from in decreasing order until fn
// returns false.
func (t *tickIndex) descend(from uint64, fn func(*Tick) bool) {
	for n := t.floorNode(from); n != t.nil; n = t.prev(n) {
		if !fn(n.tick) {
			return
		}
	}
}

func (t *tickIndex) search(id uint64) *node {
	n := t.root
	for n != t.nil {
		switch {
		case id < n.key:
			n = n.left
		case id > n.key:
			n = n.right
		default:
			return n
		}
	}
	return t.nil
}

func (t *tickIndex) ceilingNode(id uint64) *node {
	n, best := t.root, t.nil
	for n != t.nil {
		switch {
		case id < n.key:
			best = n
			n = n.left
		case id > n.key:
			n = n.right
		default:
			return n
		}
	}
	return best
}

func (t *tickIndex) floorNode(id uint64) *node {
	n, best := t.root, t.nil
	for n != t.nil {
		switch {
		case id > n.key:
			best = n
			n = n.right
		case id < n.key:
			n = n.left
		default:
			return n
		}
	}
	return best
}

func (t *tickIndex) minNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *tickIndex) maxNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *tickIndex) next(n *node) *node {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *tickIndex) prev(n *node) *node {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *tickIndex) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *tickIndex) rightRotate(y *node) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	switch {
	case y.parent == t.nil:
		t.root = x
	case y == y.parent.right:
		y.parent.right = x
	default:
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *tickIndex) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.leftRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rightRotate(z.parent.parent)
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rightRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.leftRotate(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *tickIndex) transplant(u, v *node) {
	switch {
	case u.parent == t.nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *tickIndex) deleteNode(z *node) {
	y := z
	yColor := y.color
	var x *node

	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minNode(z.right)
		yColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yColor == black {
		t.deleteFixup(x)
	}
	// the sentinel's parent is scratch space during fixup
	t.nil.parent = nil
}

func (t *tickIndex) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rightRotate(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.leftRotate(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.leftRotate(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rightRotate(x.parent)
			x = t.root
		}
	}
	x.color = black
}
