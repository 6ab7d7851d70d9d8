package timeline

// ScrollSync keeps the tree panel and the chart body at the same vertical
// offset. Chart scrolls drive the tree; wheel input on the tree drives the
// chart. An offset is written only when it differs from the current one,
// so a write that echoes back as a scroll event stops there.
//
// ScrollSync is not safe for concurrent use; ViewState serialises access.
type ScrollSync struct {
	tree, chart int
	max         int

	onTree  func(offset int)
	onChart func(offset int)
}

// NewScrollSync returns a ScrollSync. The callbacks are invoked whenever
// the corresponding pane must move and may be nil.
func NewScrollSync(onTree, onChart func(offset int)) *ScrollSync {
	return &ScrollSync{onTree: onTree, onChart: onChart}
}

// SetMax bounds the offsets to [0, max]. Zero disables the upper bound.
func (s *ScrollSync) SetMax(max int) {
	s.max = max
	s.ChartScrolled(s.chart)
}

// ChartScrolled records a chart scroll and moves the tree to match.
func (s *ScrollSync) ChartScrolled(offset int) {
	offset = s.clamp(offset)
	s.chart = offset
	s.writeTree(offset)
}

// TreeWheel applies wheel input captured on the tree to the chart. The tree
// follows the chart.
func (s *ScrollSync) TreeWheel(delta int) {
	target := s.clamp(s.chart + delta)
	if target != s.chart {
		s.chart = target
		if s.onChart != nil {
			s.onChart(target)
		}
	}
	s.writeTree(s.chart)
}

// Offsets returns the current tree and chart offsets.
func (s *ScrollSync) Offsets() (tree, chart int) {
	return s.tree, s.chart
}

func (s *ScrollSync) writeTree(offset int) {
	if s.tree == offset {
		return
	}
	s.tree = offset
	if s.onTree != nil {
		s.onTree(offset)
	}
}

func (s *ScrollSync) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if s.max > 0 && offset > s.max {
		return s.max
	}
	return offset
}
