package ir

// domTree holds immediate dominators of the blocks reachable from a
// function's entry, computed with the Cooper-Harvey-Kennedy iteration over
// reverse postorder.
type domTree struct {
	order map[*BasicBlock]int // reverse postorder index
	idom  []int
}

func newDomTree(f *Function, succs map[*BasicBlock][]*BasicBlock, preds map[*BasicBlock][]*BasicBlock) *domTree {
	entry := f.Entry()
	var post []*BasicBlock
	seen := map[*BasicBlock]bool{entry: true}

	type frame struct {
		b    *BasicBlock
		next int
	}
	stack := []frame{{b: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ss := succs[top.b]
		if top.next < len(ss) {
			s := ss[top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}

	n := len(post)
	d := &domTree{order: make(map[*BasicBlock]int, n), idom: make([]int, n)}
	rpo := make([]*BasicBlock, n)
	for i, b := range post {
		rpo[n-1-i] = b
		d.order[b] = n - 1 - i
	}
	for i := range d.idom {
		d.idom[i] = -1
	}
	d.idom[0] = 0

	for changed := true; changed; {
		changed = false
		for i := 1; i < n; i++ {
			newIdom := -1
			for _, p := range preds[rpo[i]] {
				pi, ok := d.order[p]
				if !ok || d.idom[pi] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pi
				} else {
					newIdom = d.intersect(pi, newIdom)
				}
			}
			if newIdom != -1 && d.idom[i] != newIdom {
				d.idom[i] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *domTree) intersect(a, b int) int {
	for a != b {
		for a > b {
			a = d.idom[a]
		}
		for b > a {
			b = d.idom[b]
		}
	}
	return a
}

func (d *domTree) reachable(b *BasicBlock) bool {
	_, ok := d.order[b]
	return ok
}

// dominates reports whether every path from the entry to b passes through a
func (d *domTree) dominates(a, b *BasicBlock) bool {
	ai, ok1 := d.order[a]
	bi, ok2 := d.order[b]
	if !ok1 || !ok2 {
		return false
	}
	for bi > ai {
		bi = d.idom[bi]
	}
	return ai == bi
}
