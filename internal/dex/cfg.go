/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dex

import (
	"fmt"

	"github.com/oleiade/lane"
)

// NoTry is the try region of unprotected code.
const NoTry int64 = -1

// Boundaries marks every index of the stream that starts a straight-line
// region: the first item, a run of markers, and the item following an
// instruction that does not simply fall through.
func Boundaries(insns []*Instr) []bool {
	ret := make([]bool, len(insns))
	for i, v := range insns {
		switch {
		case i == 0:
			ret[i] = true
		case insns[i-1].Op.EndsBlock():
			ret[i] = true
		case v.Op.IsMarker() && !insns[i-1].Op.IsMarker():
			ret[i] = true
		}
	}
	return ret
}

// Regions returns the try region each item of the stream belongs to, NoTry
// for unprotected items. Markers belong to the region in effect after them.
func Regions(insns []*Instr) ([]int64, error) {
	cur := NoTry
	ret := make([]int64, len(insns))

	/* track the region while scanning */
	for i, v := range insns {
		switch v.Op {
		case MOP_try_start:
			if cur != NoTry {
				return nil, fmt.Errorf("nested try region %d inside %d at %d", v.Lit, cur, i)
			}
			cur = v.Lit
		case MOP_try_end:
			if cur != v.Lit {
				return nil, fmt.Errorf("try_end %d does not close the open region at %d", v.Lit, i)
			}
			cur = NoTry
		}
		ret[i] = cur
	}

	/* every region must be closed */
	if cur != NoTry {
		return nil, fmt.Errorf("try region %d is never closed", cur)
	}
	return ret, nil
}

type BasicBlock struct {
	Id    int
	Start int
	Len   int
	Try   int64
	Link  []*BasicBlock
}

// Last returns the index of the last item of the block.
func (self *BasicBlock) Last() int {
	return self.Start + self.Len - 1
}

type CFG struct {
	Root    *BasicBlock
	Blocks  []*BasicBlock
	Labels  map[int64]*BasicBlock
	Catches map[int64]*BasicBlock
}

type GraphBuilder struct {
	insns   []*Instr
	regions []int64
	cfg     *CFG
}

func CreateGraphBuilder(insns []*Instr) *GraphBuilder {
	return &GraphBuilder{
		insns: insns,
		cfg: &CFG{
			Labels:  make(map[int64]*BasicBlock),
			Catches: make(map[int64]*BasicBlock),
		},
	}
}

// BuildCFG splits the stream into basic blocks and links them.
func BuildCFG(insns []*Instr) (*CFG, error) {
	return CreateGraphBuilder(insns).Build()
}

func (self *GraphBuilder) Build() (*CFG, error) {
	var err error
	if self.regions, err = Regions(self.insns); err != nil {
		return nil, err
	}

	/* empty method, no blocks */
	if len(self.insns) == 0 {
		return self.cfg, nil
	}

	/* split into blocks and collect the labels */
	if err = self.split(); err != nil {
		return nil, err
	}

	/* link the blocks together */
	for i, bb := range self.cfg.Blocks {
		if err = self.link(i, bb); err != nil {
			return nil, err
		}
	}

	/* the first block is the entry */
	self.cfg.Root = self.cfg.Blocks[0]
	return self.cfg, nil
}

func (self *GraphBuilder) split() error {
	var bb *BasicBlock
	heads := Boundaries(self.insns)

	/* scan every item */
	for i, v := range self.insns {
		if heads[i] {
			bb = &BasicBlock{Id: len(self.cfg.Blocks) + 1, Start: i}
			self.cfg.Blocks = append(self.cfg.Blocks, bb)
		}

		/* the region of a block is the one in effect after its leading markers */
		bb.Len++
		bb.Try = self.regions[i]

		/* record labels and handlers */
		switch v.Op {
		case MOP_target:
			if _, ok := self.cfg.Labels[v.Lit]; ok {
				return fmt.Errorf("duplicated label L%d", v.Lit)
			}
			self.cfg.Labels[v.Lit] = bb
		case MOP_catch:
			if _, ok := self.cfg.Catches[v.Lit]; ok {
				return fmt.Errorf("duplicated handler for try region %d", v.Lit)
			}
			self.cfg.Catches[v.Lit] = bb
		}
	}
	return nil
}

func (self *GraphBuilder) link(i int, bb *BasicBlock) error {
	last := self.insns[bb.Last()]

	/* branch targets */
	if last.Op.IsBranch() {
		if to, ok := self.cfg.Labels[last.Lit]; !ok {
			return fmt.Errorf("branch to undefined label L%d", last.Lit)
		} else {
			bb.Link = append(bb.Link, to)
		}
	}

	/* fallthrough to the next block */
	if !last.Op.IsTerminal() && i+1 < len(self.cfg.Blocks) {
		bb.Link = append(bb.Link, self.cfg.Blocks[i+1])
	}

	/* any instruction in a try region may throw into its handler */
	if bb.Try != NoTry {
		if h, ok := self.cfg.Catches[bb.Try]; !ok {
			return fmt.Errorf("try region %d has no handler", bb.Try)
		} else {
			bb.Link = append(bb.Link, h)
		}
	}
	return nil
}

// Reachable returns the set of block ids reachable from the entry.
func (self *CFG) Reachable() map[int]bool {
	q := lane.NewQueue()
	m := make(map[int]bool)

	/* empty graph */
	if self.Root == nil {
		return m
	}

	/* traverse the graph with BFS */
	for q.Enqueue(self.Root); !q.Empty(); {
		p := q.Dequeue().(*BasicBlock)
		if m[p.Id] {
			continue
		}

		/* add all links into queue */
		m[p.Id] = true
		for _, r := range p.Link {
			if !m[r.Id] {
				q.Enqueue(r)
			}
		}
	}
	return m
}
