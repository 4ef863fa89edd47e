// seehuhn.de/go/cffsubr - subroutinize and desubroutinize CFF font data
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cff

import (
	"bytes"
	"container/heap"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"seehuhn.de/go/dag"
	"seehuhn.de/go/postscript/funit"
)

const (
	// minSubrLen is the smallest fragment length, in bytes, considered
	// for extraction.  Shorter fragments can never save space.
	minSubrLen = 4

	// maxSubrs is the largest number of subroutines one INDEX can hold
	// while keeping the biased operand encoding reversible.
	maxSubrs = 65533
)

// Subroutinize rebuilds the subroutine INDEXes of the font from scratch.
//
// The glyph charstrings are first flattened, and then repeated charstring
// fragments are extracted into local and global subroutines.  The result
// renders identically to the original font and is never larger than the
// desubroutinized form of the font.
//
// If an error occurs the font is left unchanged.
func (f *Font) Subroutinize() error {
	progs, err := f.flattenAll()
	if err != nil {
		return err
	}

	e := &subrEngine{
		version: f.Version,
		numFD:   f.numFontDicts(),
		progs:   progs,
	}
	e.codes = make([][]byte, len(progs))
	e.bounds = make([][]int, len(progs))
	e.fdOf = make([]int, len(progs))
	e.claims = make([][]claim, len(progs))
	for gid, tokens := range progs {
		code, offs, err := encodeTokens(tokens)
		if err != nil {
			return err
		}
		e.codes[gid] = code
		e.bounds[gid] = offs
		e.fdOf[gid] = f.fdIndex(gid)
	}
	if f.Version == VersionCFF {
		e.depths = make([][]int, len(progs))
		for gid, tokens := range progs {
			e.depths[gid] = stackDepths(tokens)
		}
	}
	e.local = make([][]*subrInfo, e.numFD)

	e.selectSubrs(e.mineCandidates())
	if err := e.rewriteAll(); err != nil {
		return err
	}
	e.renumber()
	glyphCodes, gsubrs, lsubrs, err := e.assemble()
	if err != nil {
		return err
	}

	if e.subrBytes(glyphCodes, gsubrs, lsubrs) > e.flatBytes() {
		// extraction did not pay off
		glyphCodes = e.codes
		gsubrs = nil
		lsubrs = make([]cffIndex, e.numFD)
	}

	for gid, g := range f.Glyphs {
		g.Code = glyphCodes[gid]
	}
	f.GlobalSubrs = gsubrs
	f.localSubrs = lsubrs
	return nil
}

// A subrEngine holds the intermediate state of one subroutinization run.
// All glyph programs are kept in flattened, minimally encoded form; byte
// offsets always refer to these minimal encodings.
type subrEngine struct {
	version Version
	numFD   int

	progs  [][]token
	codes  [][]byte
	bounds [][]int // token boundary offsets, one slice per program
	fdOf   []int
	depths [][]int // argument stack depth per boundary; CFF only

	claims [][]claim // accepted extractions, per program, sorted, disjoint

	global []*subrInfo
	local  [][]*subrInfo
	subrs  []*subrInfo // all subroutines, in order of creation

	glyphItems [][]rewriteItem
}

// A claim records that a byte range of a glyph program has been
// assigned to a subroutine.
type claim struct {
	start, end int
	subr       *subrInfo
}

// A subrInfo describes one extracted subroutine.
type subrInfo struct {
	text   []byte  // body bytes, before nested rewriting
	tokens []token // body tokens
	fd     int     // owning local INDEX, or -1 for the global INDEX
	serial int     // creation order

	origProg, origTok int // first occurrence, used for stack depth checks

	endsWithEndchar bool

	items     []rewriteItem
	depth     int // call nesting depth, 1 for a subroutine calling no others
	scopeSize int // size of the owning INDEX, for operand size estimates
	numCalls  int
	index     int
	biased    int
	code      []byte
}

// A rewriteItem is one element of a rewritten charstring: either a
// literal token, or a call to a subroutine.
type rewriteItem struct {
	tok  token
	call *subrInfo
}

// A suffix identifies a token-aligned position in a glyph program.
type suffix struct {
	prog, tok int
}

type occurrence struct {
	prog, tok, endTok int
	start, end        int // byte offsets
}

type candidate struct {
	text []byte
	occs []occurrence // token-aligned occurrences, sorted by (prog, start)
}

func (e *subrEngine) suffixBytes(s suffix) []byte {
	return e.codes[s.prog][e.bounds[s.prog][s.tok]:]
}

// tokenAt returns the index of the token starting at the given byte
// offset, or false if the offset is not a token boundary.
func tokenAt(bounds []int, off int) (int, bool) {
	i := sort.SearchInts(bounds, off)
	if i < len(bounds) && bounds[i] == off {
		return i, true
	}
	return 0, false
}

// alignedLen returns the largest l' <= l such that l' is a token
// boundary offset relative to both suffixes.
func (e *subrEngine) alignedLen(a, b suffix, l int) int {
	for {
		la := e.boundaryFloor(a, l)
		lb := e.boundaryFloor(b, l)
		if la == l && lb == l {
			return l
		}
		if la < lb {
			l = la
		} else {
			l = lb
		}
	}
}

// boundaryFloor returns the largest token boundary offset <= l,
// relative to the start of the suffix.
func (e *subrEngine) boundaryFloor(s suffix, l int) int {
	bb := e.bounds[s.prog]
	base := bb[s.tok]
	i := sort.SearchInts(bb, base+l+1) - 1
	return bb[i] - base
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// mineCandidates returns all repeated, token-aligned charstring
// fragments which are candidates for extraction, sorted by their bytes.
//
// The fragments are found by sorting all token-aligned suffixes of all
// glyph programs and inspecting the common prefixes of neighbouring
// suffixes.  Every right-maximal repeated fragment shows up this way;
// shorter fragments with the same occurrence set can never score better
// and need not be considered separately.
func (e *subrEngine) mineCandidates() []*candidate {
	var sufs []suffix
	for p, tokens := range e.progs {
		for t := range tokens {
			if len(e.codes[p])-e.bounds[p][t] >= minSubrLen {
				sufs = append(sufs, suffix{prog: p, tok: t})
			}
		}
	}
	sort.Slice(sufs, func(i, j int) bool {
		d := bytes.Compare(e.suffixBytes(sufs[i]), e.suffixBytes(sufs[j]))
		if d != 0 {
			return d < 0
		}
		if sufs[i].prog != sufs[j].prog {
			return sufs[i].prog < sufs[j].prog
		}
		return sufs[i].tok < sufs[j].tok
	})

	seen := make(map[string]bool)
	for i := 1; i < len(sufs); i++ {
		a, b := sufs[i-1], sufs[i]
		l := commonPrefixLen(e.suffixBytes(a), e.suffixBytes(b))
		l = e.alignedLen(a, b, l)
		if l >= minSubrLen {
			seen[string(e.suffixBytes(a)[:l])] = true
		}
	}

	keys := maps.Keys(seen)
	slices.Sort(keys)

	var cands []*candidate
	for _, key := range keys {
		text := []byte(key)
		cand := &candidate{text: text}
		lo, hi := e.suffixRange(sufs, text)
		for _, s := range sufs[lo:hi] {
			start := e.bounds[s.prog][s.tok]
			endTok, ok := tokenAt(e.bounds[s.prog], start+len(text))
			if !ok {
				continue
			}
			cand.occs = append(cand.occs, occurrence{
				prog:   s.prog,
				tok:    s.tok,
				endTok: endTok,
				start:  start,
				end:    start + len(text),
			})
		}
		if len(cand.occs) < 2 {
			continue
		}
		sort.Slice(cand.occs, func(i, j int) bool {
			oi, oj := cand.occs[i], cand.occs[j]
			if oi.prog != oj.prog {
				return oi.prog < oj.prog
			}
			return oi.start < oj.start
		})
		cands = append(cands, cand)
	}
	return cands
}

// suffixRange returns the range of sorted suffixes having text as a
// byte prefix.
func (e *subrEngine) suffixRange(sufs []suffix, text []byte) (int, int) {
	lo := sort.Search(len(sufs), func(i int) bool {
		return bytes.Compare(e.suffixBytes(sufs[i]), text) >= 0
	})
	hi := sort.Search(len(sufs), func(i int) bool {
		s := e.suffixBytes(sufs[i])
		if len(s) > len(text) {
			s = s[:len(text)]
		}
		return bytes.Compare(s, text) > 0
	})
	return lo, hi
}

// A plan is the result of evaluating a candidate against the current
// set of claims.
type plan struct {
	free []occurrence // new occurrences, disjoint from all claims
	body []bodyOcc    // occurrences inside already extracted subroutines
	fd   int          // target INDEX: -1 for global

	endsWithEndchar bool
}

type bodyOcc struct {
	subr *subrInfo
	off  int // byte offset within subr.text
}

// operandEstimate returns the size of a subroutine operand when the
// INDEX holds n subroutines.  This is an estimate; the exact size is
// only known once the final subroutine numbering is fixed.
func operandEstimate(n int) int {
	switch {
	case n < 215:
		return 1
	case n < 2263:
		return 2
	default:
		return 3
	}
}

// evaluate computes the number of bytes saved by extracting the
// candidate now.  A nil plan means the candidate is no longer viable.
func (e *subrEngine) evaluate(cand *candidate) (int, *plan) {
	pl := &plan{}
	lastEnd := -1
	lastProg := -1
	seenBody := make(map[bodyOccKey]bool)
	for _, occ := range cand.occs {
		c, ok := e.claimAt(occ.prog, occ.start, occ.end)
		switch {
		case ok && c.subr != nil:
			// fully inside an extracted subroutine
			key := bodyOccKey{serial: c.subr.serial, off: occ.start - c.start}
			if !seenBody[key] {
				seenBody[key] = true
				pl.body = append(pl.body, bodyOcc{subr: c.subr, off: key.off})
			}
		case ok:
			// free, but must not overlap a previous free occurrence
			if occ.prog == lastProg && occ.start < lastEnd {
				continue
			}
			pl.free = append(pl.free, occ)
			lastProg, lastEnd = occ.prog, occ.end
		}
	}

	occTotal := len(pl.free) + len(pl.body)
	if occTotal < 2 {
		return 0, nil
	}

	pl.fd = e.placement(pl)
	scope := e.scopeList(pl.fd)
	if len(*scope) >= maxSubrs {
		return 0, nil
	}

	var first occurrence
	if len(pl.free) > 0 {
		first = pl.free[0]
	} else {
		first = cand.occs[0]
	}
	pl.endsWithEndchar = e.progs[first.prog][first.endTok-1].op == t2endchar

	callCost := 1 + operandEstimate(len(*scope))
	retLen := 0
	if e.version == VersionCFF && !pl.endsWithEndchar {
		retLen = 1
	}
	bodyLen := len(cand.text)

	// Savings: each occurrence is replaced by a call; the INDEX gains
	// the body, a return operator, and one offset table entry.
	score := occTotal*(bodyLen-callCost) - (bodyLen + retLen + 1)
	return score, pl
}

type bodyOccKey struct {
	serial, off int
}

// claimAt locates the occurrence [start,end) relative to the claims of
// the program.  If the range is free, it returns a zero claim and true.
// If the range lies fully inside one claim, it returns that claim and
// true.  A partial overlap returns false.
func (e *subrEngine) claimAt(prog, start, end int) (claim, bool) {
	cc := e.claims[prog]
	i := sort.Search(len(cc), func(i int) bool {
		return cc[i].end > start
	})
	if i == len(cc) || cc[i].start >= end {
		return claim{}, true
	}
	c := cc[i]
	if c.start <= start && end <= c.end {
		return c, true
	}
	return claim{}, false
}

// placement decides which INDEX a subroutine goes into: fonts with a
// single font DICT use the global INDEX; otherwise a subroutine used by
// a single font DICT goes into that DICT's local INDEX, and shared
// subroutines go into the global INDEX.
func (e *subrEngine) placement(pl *plan) int {
	if e.numFD == 1 {
		return -1
	}
	fd := -2
	for _, occ := range pl.free {
		if fd == -2 {
			fd = e.fdOf[occ.prog]
		} else if fd != e.fdOf[occ.prog] {
			return -1
		}
	}
	for _, bo := range pl.body {
		if bo.subr.fd == -1 {
			return -1
		}
		if fd == -2 {
			fd = bo.subr.fd
		} else if fd != bo.subr.fd {
			return -1
		}
	}
	if fd < 0 {
		return -1
	}
	return fd
}

func (e *subrEngine) scopeList(fd int) *[]*subrInfo {
	if fd < 0 {
		return &e.global
	}
	return &e.local[fd]
}

type candEntry struct {
	cand  *candidate
	score int
}

type candHeap []*candEntry

func (h candHeap) Len() int { return len(h) }
func (h candHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.cand.text) != len(b.cand.text) {
		return len(a.cand.text) > len(b.cand.text)
	}
	oa, ob := a.cand.occs[0], b.cand.occs[0]
	if oa.prog != ob.prog {
		return oa.prog < ob.prog
	}
	if oa.start != ob.start {
		return oa.start < ob.start
	}
	return bytes.Compare(a.cand.text, b.cand.text) < 0
}
func (h candHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candHeap) Push(x interface{}) {
	*h = append(*h, x.(*candEntry))
}

func (h *candHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// selectSubrs greedily extracts candidates in order of decreasing
// savings.  Scores go stale as extractions claim byte ranges, so
// entries are re-evaluated when popped and pushed back if their score
// changed.
func (e *subrEngine) selectSubrs(cands []*candidate) {
	h := make(candHeap, 0, len(cands))
	for _, cand := range cands {
		score, pl := e.evaluate(cand)
		if pl != nil && score >= 0 {
			h = append(h, &candEntry{cand: cand, score: score})
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		ent := heap.Pop(&h).(*candEntry)
		score, pl := e.evaluate(ent.cand)
		if pl == nil || score < 0 {
			continue
		}
		if score != ent.score {
			ent.score = score
			heap.Push(&h, ent)
			continue
		}
		e.accept(ent.cand, pl)
	}
}

// accept turns the candidate into a subroutine and claims the byte
// ranges of its free occurrences.
func (e *subrEngine) accept(cand *candidate, pl *plan) {
	var first occurrence
	if len(pl.free) > 0 {
		first = pl.free[0]
	} else {
		first = cand.occs[0]
	}

	s := &subrInfo{
		text:            cand.text,
		tokens:          e.progs[first.prog][first.tok:first.endTok],
		fd:              pl.fd,
		serial:          len(e.subrs),
		origProg:        first.prog,
		origTok:         first.tok,
		endsWithEndchar: pl.endsWithEndchar,
	}
	e.subrs = append(e.subrs, s)
	scope := e.scopeList(pl.fd)
	*scope = append(*scope, s)

	for _, occ := range pl.free {
		cc := e.claims[occ.prog]
		i := sort.Search(len(cc), func(i int) bool {
			return cc[i].start >= occ.start
		})
		cc = append(cc, claim{})
		copy(cc[i+1:], cc[i:])
		cc[i] = claim{start: occ.start, end: occ.end, subr: s}
		e.claims[occ.prog] = cc
	}
}

// A rewriteEdge is one step through a charstring: either a single
// literal token, or a call covering a run of tokens.
type rewriteEdge struct {
	call *subrInfo // nil for a literal token
	to   int
}

// A rewriteGraph finds the cheapest encoding of a token sequence,
// given a set of usable subroutines.  Vertices are token boundaries.
type rewriteGraph struct {
	tokens []token
	bounds []int
	calls  [][]rewriteEdge
}

func (g *rewriteGraph) AppendEdges(ee []rewriteEdge, v int) []rewriteEdge {
	ee = append(ee, rewriteEdge{to: v + 1})
	return append(ee, g.calls[v]...)
}

func (g *rewriteGraph) Length(v int, e rewriteEdge) int {
	if e.call == nil {
		return g.bounds[v+1] - g.bounds[v]
	}
	return 1 + operandEstimate(e.call.scopeSize)
}

func (g *rewriteGraph) To(v int, e rewriteEdge) int {
	return e.to
}

// buildGraph constructs the rewrite graph for one token sequence.  The
// depths slice may be nil; if present, calls are not placed at
// positions where the subroutine operand would overflow the argument
// stack.
func (e *subrEngine) buildGraph(tokens []token, code []byte, bounds []int, depths []int, callees []*subrInfo) *rewriteGraph {
	g := &rewriteGraph{
		tokens: tokens,
		bounds: bounds,
		calls:  make([][]rewriteEdge, len(tokens)),
	}
	for _, t := range callees {
		if len(t.text) > len(code) {
			continue
		}
		off := 0
		for {
			k := bytes.Index(code[off:], t.text)
			if k < 0 {
				break
			}
			pos := off + k
			off = pos + 1
			i, ok1 := tokenAt(bounds, pos)
			j, ok2 := tokenAt(bounds, pos+len(t.text))
			if !ok1 || !ok2 {
				continue
			}
			if depths != nil && depths[i] >= maxStack {
				continue
			}
			g.calls[i] = append(g.calls[i], rewriteEdge{call: t, to: j})
		}
	}
	return g
}

// rewrite finds the cheapest cover of the token sequence and returns
// the resulting item list.
func (e *subrEngine) rewrite(tokens []token, code []byte, bounds []int, depths []int, callees []*subrInfo) ([]rewriteItem, error) {
	g := e.buildGraph(tokens, code, bounds, depths, callees)
	ee, err := dag.ShortestPath[rewriteEdge, int](g, len(tokens))
	if err != nil {
		return nil, err
	}

	var items []rewriteItem
	v := 0
	for _, edge := range ee {
		if edge.call != nil {
			items = append(items, rewriteItem{call: edge.call})
		} else {
			items = append(items, rewriteItem{tok: tokens[v]})
		}
		v = edge.to
	}
	return items, nil
}

// rewriteAll rewrites all subroutine bodies and glyph charstrings in
// terms of subroutine calls.  Bodies are processed in order of
// increasing length, so a body can only call strictly shorter
// subroutines and the call graph is a DAG.
func (e *subrEngine) rewriteAll() error {
	for fd := -1; fd < e.numFD; fd++ {
		scope := *e.scopeList(fd)
		for _, s := range scope {
			s.scopeSize = len(scope)
		}
	}

	order := make([]*subrInfo, len(e.subrs))
	copy(order, e.subrs)
	sort.Slice(order, func(i, j int) bool {
		if len(order[i].text) != len(order[j].text) {
			return len(order[i].text) < len(order[j].text)
		}
		return order[i].serial < order[j].serial
	})

	for _, s := range order {
		_, bounds, err := encodeTokens(s.tokens)
		if err != nil {
			return err
		}

		var depths []int
		if e.depths != nil {
			// the body executes with the stack of its call sites; use
			// the first occurrence as a representative
			pd := e.depths[s.origProg]
			depths = make([]int, len(s.tokens)+1)
			for i := range depths {
				depths[i] = pd[s.origTok+i]
			}
		}

		callees := e.callees(s.fd, len(s.text), maxCallDepth-2)
		items, err := e.rewrite(s.tokens, s.text, bounds, depths, callees)
		if err != nil {
			return err
		}
		s.items = items

		s.depth = 1
		for _, it := range items {
			if it.call != nil && it.call.depth+1 > s.depth {
				s.depth = it.call.depth + 1
			}
		}
		if n := len(items); n > 0 {
			last := items[n-1]
			if last.call != nil {
				s.endsWithEndchar = last.call.endsWithEndchar
			} else {
				s.endsWithEndchar = last.tok.op == t2endchar
			}
		}
	}

	e.glyphItems = make([][]rewriteItem, len(e.progs))
	for gid, tokens := range e.progs {
		var depths []int
		if e.depths != nil {
			depths = e.depths[gid]
		}
		callees := e.callees(e.fdOf[gid], len(e.codes[gid])+1, maxCallDepth-1)
		items, err := e.rewrite(tokens, e.codes[gid], e.bounds[gid], depths, callees)
		if err != nil {
			return err
		}
		e.glyphItems[gid] = items
	}
	return nil
}

// callees returns the subroutines usable from a charstring belonging to
// the given font DICT, shorter than maxLen bytes and nested no deeper
// than maxDepth.
func (e *subrEngine) callees(fd int, maxLen, maxDepth int) []*subrInfo {
	var res []*subrInfo
	for _, s := range e.global {
		if len(s.text) < maxLen && s.depth <= maxDepth {
			res = append(res, s)
		}
	}
	if fd >= 0 {
		for _, s := range e.local[fd] {
			if len(s.text) < maxLen && s.depth <= maxDepth {
				res = append(res, s)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].serial < res[j].serial
	})
	return res
}

// renumber drops subroutines which ended up unused, counts the call
// sites of the remaining ones, and assigns the most frequently called
// subroutines the shortest operand encodings.
func (e *subrEngine) renumber() {
	for _, s := range e.subrs {
		s.numCalls = 0
	}

	seen := make(map[*subrInfo]bool)
	var queue []*subrInfo
	count := func(items []rewriteItem) {
		for _, it := range items {
			if it.call == nil {
				continue
			}
			it.call.numCalls++
			if !seen[it.call] {
				seen[it.call] = true
				queue = append(queue, it.call)
			}
		}
	}
	for _, items := range e.glyphItems {
		count(items)
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		count(s.items)
	}

	for fd := -1; fd < e.numFD; fd++ {
		scope := e.scopeList(fd)
		kept := (*scope)[:0]
		for _, s := range *scope {
			if s.numCalls > 0 {
				kept = append(kept, s)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool {
			if kept[i].numCalls != kept[j].numCalls {
				return kept[i].numCalls > kept[j].numCalls
			}
			return kept[i].serial < kept[j].serial
		})
		b := bias(len(kept))
		for i, s := range kept {
			s.index = i
			s.biased = i - b
		}
		*scope = kept
	}
}

// assemble encodes all subroutine bodies and glyph charstrings.
func (e *subrEngine) assemble() ([][]byte, cffIndex, []cffIndex, error) {
	// Bodies may call shorter subroutines, so encode in order of
	// increasing length.  (Encoding only needs the callee's operand
	// value, which is already fixed, so the order does not actually
	// matter; it just mirrors the rewrite order.)
	all := append(append([]*subrInfo{}, e.global...), flattenScopes(e.local)...)
	for _, s := range all {
		code, err := e.encodeItems(s.items)
		if err != nil {
			return nil, nil, nil, err
		}
		if e.version == VersionCFF && !s.endsWithEndchar {
			code = append(code, byte(t2return))
		}
		s.code = code
	}

	gsubrs := make(cffIndex, len(e.global))
	for _, s := range e.global {
		gsubrs[s.index] = s.code
	}
	lsubrs := make([]cffIndex, e.numFD)
	for fd, scope := range e.local {
		lsubrs[fd] = make(cffIndex, len(scope))
		for _, s := range scope {
			lsubrs[fd][s.index] = s.code
		}
	}

	glyphCodes := make([][]byte, len(e.glyphItems))
	for gid, items := range e.glyphItems {
		code, err := e.encodeItems(items)
		if err != nil {
			return nil, nil, nil, err
		}
		glyphCodes[gid] = code
	}
	return glyphCodes, gsubrs, lsubrs, nil
}

func flattenScopes(scopes [][]*subrInfo) []*subrInfo {
	var res []*subrInfo
	for _, scope := range scopes {
		res = append(res, scope...)
	}
	return res
}

func (e *subrEngine) encodeItems(items []rewriteItem) ([]byte, error) {
	var code []byte
	var err error
	for _, it := range items {
		if it.call == nil {
			code, err = it.tok.append(code)
			if err != nil {
				return nil, err
			}
			continue
		}
		code = append(code, encodeInt(funit.Int16(it.call.biased))...)
		if it.call.fd < 0 {
			code = append(code, byte(t2callgsubr))
		} else {
			code = append(code, byte(t2callsubr))
		}
	}
	return code, nil
}

// subrBytes returns the number of bytes the charstrings and subroutine
// INDEXes occupy in the subroutinized form.
func (e *subrEngine) subrBytes(glyphCodes [][]byte, gsubrs cffIndex, lsubrs []cffIndex) int {
	total := len(gsubrs.encode(e.version))
	for _, subrs := range lsubrs {
		if len(subrs) > 0 {
			total += len(subrs.encode(e.version))
		}
	}
	for _, code := range glyphCodes {
		total += len(code)
	}
	return total
}

// flatBytes returns the number of bytes the charstrings and subroutine
// INDEXes occupy in the desubroutinized form.
func (e *subrEngine) flatBytes() int {
	total := len(cffIndex(nil).encode(e.version))
	for _, code := range e.codes {
		total += len(code)
	}
	return total
}

// stackDepths returns the Type 2 argument stack depth at every token
// boundary of a flattened CFF charstring.
func stackDepths(tokens []token) []int {
	depths := make([]int, len(tokens)+1)
	d := 0
	for i, tk := range tokens {
		depths[i] = d
		switch {
		case tk.isNumber():
			d++
		case tk.op == t2dup || tk.op == t2random:
			d++
		case tk.op == t2add || tk.op == t2sub || tk.op == t2div ||
			tk.op == t2mul || tk.op == t2and || tk.op == t2or ||
			tk.op == t2eq || tk.op == t2drop || tk.op == t2put:
			d--
		case tk.op == t2roll:
			d -= 2
		case tk.op == t2ifelse:
			d -= 3
		case tk.op == t2abs || tk.op == t2neg || tk.op == t2sqrt ||
			tk.op == t2not || tk.op == t2exch || tk.op == t2index ||
			tk.op == t2get:
			// no change
		default:
			// path construction, hint and endchar operators clear the stack
			d = 0
		}
		if d < 0 {
			d = 0
		}
		depths[i+1] = d
	}
	return depths
}
