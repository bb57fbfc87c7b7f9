package placement

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/geom"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
)

// Options tune the search. Zero values take defaults.
type Options struct {
	// LatticeStepM is the candidate lattice pitch. Default: the larger of
	// the terrain cell size and half the minimum spacing, so the lattice
	// always oversamples the spacing constraint.
	LatticeStepM float64
	// Workers bounds the scoring parallelism. Default: GOMAXPROCS.
	Workers int
}

// candidate is one trial footprint. Transient: never escapes the search.
type candidate struct {
	idx      int
	center   geom.Point
	bearing  float64
	fp       geom.Polygon
	meanElev float64
	meanSlop float64
	elevStd  float64
	score    float64 // static score, lower is better
	alive    bool
}

// optimizer carries the per-run search state.
type optimizer struct {
	boundary  geom.Polygon
	model     *terrain.Model
	excl      *exclusion.Index
	spec      AssetSpec
	objective Objective
	step      float64
	diag      float64 // site diagonal, normalizes the clustering signal

	cands      []*candidate // feasible candidates, lattice order
	rejections map[RejectionReason]int
	total      int

	// accepted-set state
	accepted []AssetPlacement
	centroid geom.Point

	// spatial arena: bucket -> candidate indices, for spacing invalidation
	bucketW float64
	buckets map[[2]int][]int
}

// scoringBatch is how many lattice positions each worker claims at a time;
// cancellation is checked between batches.
const scoringBatch = 256

// Place runs the full search: lattice generation, parallel feasibility and
// scoring, then serialized greedy selection. Identical inputs yield an
// identical Result. Under-placement is reported in the Result, not as an
// error; a footprint that fits nowhere inside the boundary returns
// InfeasibleConstraintError.
func Place(ctx context.Context, boundary geom.Polygon, model *terrain.Model,
	excl *exclusion.Index, spec AssetSpec, objective Objective, opts Options) (*Result, error) {

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if !objective.Valid() {
		objective = ObjectiveBalanced
	}

	o := &optimizer{
		boundary:   boundary,
		model:      model,
		excl:       excl,
		spec:       spec,
		objective:  objective,
		rejections: make(map[RejectionReason]int),
	}
	o.step = opts.LatticeStepM
	if o.step <= 0 {
		o.step = math.Max(model.Elevation.CellSize, spec.MinSpacingM/2)
		if o.step <= 0 {
			o.step = math.Min(spec.WidthM, spec.LengthM)
		}
	}
	br := boundary.BoundingRect()
	o.diag = math.Hypot(br.X.Hi-br.X.Lo, br.Y.Hi-br.Y.Lo)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if err := o.evaluateLattice(ctx, workers); err != nil {
		return nil, err
	}
	if o.total > 0 && o.rejections[RejectOutOfBoundary] == o.total {
		return nil, &InfeasibleConstraintError{
			Reason:      "footprint does not fit inside the boundary at any lattice position",
			WidthM:      spec.WidthM,
			LengthM:     spec.LengthM,
			BoundaryM2:  boundary.Area(),
			LatticeStep: o.step,
		}
	}

	o.scoreStatic()
	o.buildArena()

	pass := "heap"
	var err error
	if o.dynamicObjective() {
		pass = "rescan"
		err = o.selectByRescan(ctx)
	} else {
		err = o.selectByHeap(ctx)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Objective:          objective,
		Spec:               spec,
		Placed:             o.accepted,
		Requested:          spec.Count,
		Rejections:         o.rejections,
		CandidatesTotal:    o.total,
		CandidatesFeasible: len(o.cands),
		LatticeStepM:       o.step,
		ScoringParallel:    workers,
		SelectionPassType:  pass,
	}
	res.computeAggregates()

	monitoring.Logf("[Placement] %s: placed %d/%d (%.0f%%), %d/%d candidates feasible",
		objective, res.PlacedCount, res.Requested, res.SuccessRatePct,
		res.CandidatesFeasible, res.CandidatesTotal)
	return res, nil
}

// evaluateLattice walks the candidate lattice, testing feasibility and
// sampling terrain for every position/bearing in parallel. Results land in
// lattice order so the outcome is deterministic regardless of worker count.
func (o *optimizer) evaluateLattice(ctx context.Context, workers int) error {
	br := o.boundary.BoundingRect()
	cols := int((br.X.Hi-br.X.Lo)/o.step) + 1
	rows := int((br.Y.Hi-br.Y.Lo)/o.step) + 1
	bearings := o.spec.bearings()
	o.total = rows * cols * len(bearings)

	slots := make([]*candidate, o.total)
	tallies := make([]map[RejectionReason]int, workers)

	var wg sync.WaitGroup
	var next int64
	var mu sync.Mutex
	cancelled := false

	for w := 0; w < workers; w++ {
		wg.Add(1)
		tallies[w] = make(map[RejectionReason]int)
		go func(tally map[RejectionReason]int) {
			defer wg.Done()
			for {
				mu.Lock()
				if cancelled || next >= int64(o.total) {
					mu.Unlock()
					return
				}
				lo := next
				next += scoringBatch
				if ctx.Err() != nil {
					cancelled = true
					mu.Unlock()
					return
				}
				mu.Unlock()

				hi := lo + scoringBatch
				if hi > int64(o.total) {
					hi = int64(o.total)
				}
				for i := lo; i < hi; i++ {
					o.evaluateOne(int(i), br, cols, bearings, slots, tally)
				}
			}
		}(tallies[w])
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, t := range tallies {
		for k, v := range t {
			o.rejections[k] += v
		}
	}
	for _, c := range slots {
		if c != nil {
			c.idx = len(o.cands)
			c.alive = true
			o.cands = append(o.cands, c)
		}
	}
	return nil
}

// evaluateOne tests the i-th lattice slot and stores a candidate when it is
// feasible on the static constraints (boundary, exclusion, terrain, slope).
func (o *optimizer) evaluateOne(i int, br geom.Rect, cols int,
	bearings []float64, slots []*candidate, tally map[RejectionReason]int) {

	bi := i % len(bearings)
	pos := i / len(bearings)
	row := pos / cols
	col := pos % cols

	center := geom.Pt(
		br.X.Lo+(float64(col)+0.5)*o.step,
		br.Y.Lo+(float64(row)+0.5)*o.step,
	)
	fp := geom.FootprintRect(center, o.spec.WidthM, o.spec.LengthM, bearings[bi])

	if !o.boundary.ContainsPolygon(fp) {
		tally[RejectOutOfBoundary]++
		return
	}
	if o.excl != nil && o.excl.IsExcludedFootprint(fp) {
		tally[RejectExcludedZone]++
		return
	}
	fs := o.model.SampleFootprint(fp)
	if fs.Cells == 0 {
		// A footprint smaller than a grid cell can straddle no cell centre;
		// fall back to the cell under the candidate centre.
		ev := o.model.Elevation.At(center)
		sv := o.model.SlopeDeg.At(center)
		if !terrain.Valid(ev) || !terrain.Valid(sv) {
			tally[RejectNoTerrainData]++
			return
		}
		fs = terrain.FootprintSample{
			Cells: 1, MeanElevation: ev, MeanSlopeDeg: sv,
			MinElevation: ev, MaxElevation: ev,
		}
	}
	if fs.MeanSlopeDeg > o.spec.MaxSlopeDeg {
		tally[RejectSlopeExceeded]++
		return
	}

	slots[i] = &candidate{
		center:   center,
		bearing:  bearings[bi],
		fp:       fp,
		meanElev: fs.MeanElevation,
		meanSlop: fs.MeanSlopeDeg,
		elevStd:  fs.ElevStdDev,
	}
}

// dynamicObjective reports whether the score depends on the accepted set.
func (o *optimizer) dynamicObjective() bool {
	return o.objective == ObjectiveMinimizeInterAssetDistance ||
		o.objective == ObjectiveBalanced
}

// scoreStatic assigns the static score component. Signals are normalized to
// [0,1] over the feasible set so the balanced objective can combine them.
func (o *optimizer) scoreStatic() {
	if len(o.cands) == 0 {
		return
	}
	stdLo, stdHi := math.Inf(1), math.Inf(-1)
	slpLo, slpHi := math.Inf(1), math.Inf(-1)
	for _, c := range o.cands {
		stdLo, stdHi = math.Min(stdLo, c.elevStd), math.Max(stdHi, c.elevStd)
		slpLo, slpHi = math.Min(slpLo, c.meanSlop), math.Max(slpHi, c.meanSlop)
	}
	norm := func(v, lo, hi float64) float64 {
		if hi <= lo {
			return 0
		}
		return (v - lo) / (hi - lo)
	}
	for _, c := range o.cands {
		nStd := norm(c.elevStd, stdLo, stdHi)
		nSlp := norm(c.meanSlop, slpLo, slpHi)
		switch o.objective {
		case ObjectiveMinimizeCutFill:
			c.score = nStd
		case ObjectiveMaximizeFlatAreas:
			c.score = nSlp
		case ObjectiveMinimizeInterAssetDistance:
			// Static quality prior; the clustering term is added during
			// selection once assets exist to cluster around.
			c.score = nSlp
		case ObjectiveBalanced:
			c.score = (nStd + nSlp) / 2
		}
	}
}

// dynamicScore is the full score for a candidate given the current accepted
// set. Only meaningful for dynamic objectives.
func (o *optimizer) dynamicScore(c *candidate) float64 {
	if len(o.accepted) == 0 {
		return c.score
	}
	nDist := geom.Dist(c.center, o.centroid) / o.diag
	switch o.objective {
	case ObjectiveMinimizeInterAssetDistance:
		// Clustering dominates once a seed asset exists.
		return nDist + c.score*0.1
	case ObjectiveBalanced:
		return (c.score*2 + nDist) / 3
	}
	return c.score
}

// buildArena buckets candidates by position so acceptance can invalidate
// spacing violators without a full scan.
func (o *optimizer) buildArena() {
	o.bucketW = o.spec.MinSpacingM
	if o.bucketW <= 0 {
		o.bucketW = o.step
	}
	o.buckets = make(map[[2]int][]int)
	for _, c := range o.cands {
		k := o.bucketKey(c.center)
		o.buckets[k] = append(o.buckets[k], c.idx)
	}
}

func (o *optimizer) bucketKey(p geom.Point) [2]int {
	return [2]int{int(math.Floor(p.X / o.bucketW)), int(math.Floor(p.Y / o.bucketW))}
}

// accept records the candidate and kills every remaining candidate that now
// violates spacing or overlaps the new footprint.
func (o *optimizer) accept(c *candidate) {
	c.alive = false
	p := AssetPlacement{
		ID:         len(o.accepted) + 1,
		Center:     c.center,
		BearingDeg: c.bearing,
		Footprint:  c.fp,
		ElevationM: c.meanElev,
		SlopeDeg:   c.meanSlop,
		Score:      c.score,
	}
	o.accepted = append(o.accepted, p)

	// Running centroid of accepted centres.
	var sum geom.Point
	for _, a := range o.accepted {
		sum = sum.Add(a.Center)
	}
	o.centroid = sum.Mul(1 / float64(len(o.accepted)))

	// Invalidate neighbours. The kill radius covers both the spacing
	// constraint and footprint overlap.
	killR := math.Max(o.spec.MinSpacingM, math.Hypot(o.spec.WidthM, o.spec.LengthM))
	reach := int(math.Ceil(killR/o.bucketW)) + 1
	base := o.bucketKey(c.center)
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for _, ci := range o.buckets[[2]int{base[0] + dx, base[1] + dy}] {
				n := o.cands[ci]
				if !n.alive {
					continue
				}
				if geom.Dist(n.center, c.center) < o.spec.MinSpacingM ||
					n.fp.Intersects(c.fp) {
					n.alive = false
					o.rejections[RejectSpacing]++
				}
			}
		}
	}
}

// candidateHeap is a min-heap over static scores with index tiebreak, so the
// pop order is deterministic.
type candidateHeap []*candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].idx < h[j].idx
}
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(*candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// selectByHeap pops best-first with lazy invalidation: a popped candidate
// killed since it was pushed is simply discarded.
func (o *optimizer) selectByHeap(ctx context.Context) error {
	h := make(candidateHeap, len(o.cands))
	copy(h, o.cands)
	heap.Init(&h)

	for len(o.accepted) < o.spec.Count && h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := heap.Pop(&h).(*candidate)
		if !c.alive {
			continue
		}
		o.accept(c)
	}
	return nil
}

// selectByRescan rescans alive candidates each round because the clustering
// term moves with the accepted centroid. The candidate set shrinks
// monotonically, so at most Count full passes run.
func (o *optimizer) selectByRescan(ctx context.Context) error {
	for len(o.accepted) < o.spec.Count {
		if err := ctx.Err(); err != nil {
			return err
		}
		var best *candidate
		bestScore := math.Inf(1)
		for _, c := range o.cands {
			if !c.alive {
				continue
			}
			if s := o.dynamicScore(c); s < bestScore {
				bestScore, best = s, c
			}
		}
		if best == nil {
			break
		}
		o.accept(best)
	}
	return nil
}
