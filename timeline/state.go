package timeline

import (
	"sync"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// CategoryFilter is one checkbox of the category filter.
type CategoryFilter struct {
	Category types.Category `json:"category"`
	Label    string         `json:"label"`
	Active   bool           `json:"active"`
}

// View is the result of building the timeline for one user.
type View struct {
	Rows    []Row   `json:"rows"`
	Entries []Entry `json:"entries"`
	Layout  *Layout `json:"layout"`

	Window      Window           `json:"window"`
	Categories  []CategoryFilter `json:"categories"`
	Granularity Granularity      `json:"granularity"`

	TreeOffset  int `json:"tree_offset"`
	ChartOffset int `json:"chart_offset"`
}

// Empty reports whether there is nothing to show.
func (v *View) Empty() bool {
	return len(v.Rows) == 0
}

// ViewState is the per-user timeline state that survives reloads.
// It is safe for concurrent use.
type ViewState struct {
	mu sync.Mutex

	window      Window
	categories  map[types.Category]bool
	collapsed   CollapseSet
	granularity Granularity
	scroll      *ScrollSync

	// defaultCollapsed latches once category rows have been collapsed
	// after the first build that produced rows.
	defaultCollapsed bool
}

// NewViewState returns the initial state: the default window around today,
// every category active, nothing collapsed, weekly columns.
func NewViewState(today civil.Date) *ViewState {
	categories := make(map[types.Category]bool, len(types.Categories))
	for _, c := range types.Categories {
		categories[c] = true
	}
	return &ViewState{
		window:      DefaultWindow(today),
		categories:  categories,
		collapsed:   NewCollapseSet(),
		granularity: GranularityWeek,
		scroll:      NewScrollSync(nil, nil),
	}
}

// Build builds the view for tasks and applies the one-time default collapse.
func (v *ViewState) Build(tasks []*storage.Task, profiles []*storage.Profile, today civil.Date) *View {
	v.mu.Lock()
	defer v.mu.Unlock()

	in := Input{
		Tasks:      tasks,
		Profiles:   profiles,
		Window:     v.window,
		Collapsed:  v.collapsed,
		Categories: v.categories,
	}
	rows := Build(in)

	if !v.defaultCollapsed && len(rows) > 0 {
		v.defaultCollapsed = true
		// Inactive categories are collapsed too, so they come back closed.
		expanded := in
		expanded.Collapsed = nil
		expanded.Categories = nil
		for _, r := range Build(expanded) {
			if r.Key.Kind == KindCategory {
				v.collapsed[r.Key] = struct{}{}
			}
		}
		rows = Build(in)
	}

	entries := Project(rows, v.window, today)
	layout := ComputeLayout(entries, v.window, today, v.granularity)

	v.scroll.SetMax(max(0, len(rows)*RowHeight))
	tree, chart := v.scroll.Offsets()

	return &View{
		Rows:        rows,
		Entries:     entries,
		Layout:      layout,
		Window:      v.window,
		Categories:  v.categoryFilters(),
		Granularity: v.granularity,
		TreeOffset:  tree,
		ChartOffset: chart,
	}
}

func (v *ViewState) categoryFilters() []CategoryFilter {
	filters := make([]CategoryFilter, len(types.Categories))
	for i, c := range types.Categories {
		filters[i] = CategoryFilter{Category: c, Label: c.Label(), Active: v.categories[c]}
	}
	return filters
}

// Toggle flips the collapse flag of key and reports whether it is now collapsed.
func (v *ViewState) Toggle(key RowKey) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.collapsed.Toggle(key)
}

// Collapsed returns a copy of the collapsed set.
func (v *ViewState) Collapsed() CollapseSet {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.collapsed.Clone()
}

// Window returns the current window.
func (v *ViewState) Window() Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// SetWindow replaces the window. Reversed ends are swapped. A window longer
// than MaxWindowDays is refused and the current one kept.
func (v *ViewState) SetWindow(w Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window = w.normalized()
	return nil
}

// ResetWindow sets the window to [today-7, today+90].
func (v *ViewState) ResetWindow(today civil.Date) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window = DefaultWindow(today)
}

// SetCategory turns a category on or off. Collapse state is untouched.
func (v *ViewState) SetCategory(c types.Category, active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.categories[types.NormalizeCategory(string(c))] = active
}

// SetCategories activates exactly the given categories.
func (v *ViewState) SetCategories(active []types.Category) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range types.Categories {
		v.categories[c] = false
	}
	for _, c := range active {
		v.categories[types.NormalizeCategory(string(c))] = true
	}
}

// SetGranularity changes the chart columns.
func (v *ViewState) SetGranularity(g Granularity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.granularity = ParseGranularity(string(g))
}

// ChartScrolled records the chart offset reported by the client.
func (v *ViewState) ChartScrolled(offset int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scroll.ChartScrolled(offset)
}

// TreeWheel applies wheel input from the tree panel.
func (v *ViewState) TreeWheel(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scroll.TreeWheel(delta)
}

// ScrollOffsets returns the tree and chart offsets.
func (v *ViewState) ScrollOffsets() (tree, chart int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scroll.Offsets()
}
