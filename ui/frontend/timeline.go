package frontend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/timeline"
	"github.com/youssefsiam38/taskpg/types"
	"github.com/youssefsiam38/taskpg/ui/service"
)

// timelineData wraps a view with what the timeline templates need.
func (rt *router[TTx]) timelineData(view *timeline.View) map[string]any {
	return map[string]any{
		"BasePath":      rt.config.BasePath,
		"View":          view,
		"RowHeight":     timeline.RowHeight,
		"Granularities": []timeline.Granularity{timeline.GranularityDay, timeline.GranularityWeek, timeline.GranularityMonth},
	}
}

func (rt *router[TTx]) userID(r *http.Request) string {
	return sessionFrom(r.Context()).Profile.ID
}

func (rt *router[TTx]) handleTimeline(w http.ResponseWriter, r *http.Request) {
	view, err := rt.svc.TimelineView(r.Context(), rt.userID(r))
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	if err := rt.renderer.render(w, r, "timeline.html", page{Title: "Timeline", Data: rt.timelineData(view)}); err != nil {
		rt.serverError(w, r, err)
	}
}

// renderTimeline rebuilds the view and answers with the timeline fragment,
// or redirects when the request did not come from HTMX.
func (rt *router[TTx]) renderTimeline(w http.ResponseWriter, r *http.Request, view *timeline.View, err error) {
	if err == nil && view == nil {
		view, err = rt.svc.TimelineView(r.Context(), rt.userID(r))
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	case service.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		rt.serverError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") != "true" {
		rt.redirect(w, r, "/timeline")
		return
	}
	if err := rt.renderer.renderFragment(w, "fragments/timeline.html", rt.timelineData(view)); err != nil {
		rt.serverError(w, r, err)
	}
}

// rowKey parses the "key" form value.
func rowKey(w http.ResponseWriter, r *http.Request) (timeline.RowKey, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return timeline.RowKey{}, false
	}
	key, err := timeline.ParseRowKey(r.PostFormValue("key"))
	if err != nil {
		http.Error(w, "Bad row key", http.StatusBadRequest)
		return timeline.RowKey{}, false
	}
	return key, true
}

func (rt *router[TTx]) handleTimelineToggle(w http.ResponseWriter, r *http.Request) {
	key, ok := rowKey(w, r)
	if !ok {
		return
	}
	rt.svc.ToggleRow(rt.userID(r), key)
	rt.renderTimeline(w, r, nil, nil)
}

// handleTimelineWindow applies the two date inputs. A blank input leaves
// that side of the window open.
func (rt *router[TTx]) handleTimelineWindow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	from, err := optionalDate("from", r.PostFormValue("from"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	to, err := optionalDate("to", r.PostFormValue("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := rt.svc.SetWindow(rt.userID(r), from, to); err != nil {
		http.Error(w, "The window can span at most five years", http.StatusUnprocessableEntity)
		return
	}
	rt.renderTimeline(w, r, nil, nil)
}

func (rt *router[TTx]) handleTimelineResetWindow(w http.ResponseWriter, r *http.Request) {
	rt.svc.ResetWindow(rt.userID(r))
	rt.renderTimeline(w, r, nil, nil)
}

// handleTimelineCategories takes the checked boxes as the active set.
func (rt *router[TTx]) handleTimelineCategories(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	var active []types.Category
	for _, c := range r.PostForm["category"] {
		active = append(active, types.Category(c))
	}
	rt.svc.SetCategories(rt.userID(r), active)
	rt.renderTimeline(w, r, nil, nil)
}

func (rt *router[TTx]) handleTimelineGranularity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	rt.svc.SetGranularity(rt.userID(r), timeline.ParseGranularity(r.PostFormValue("granularity")))
	rt.renderTimeline(w, r, nil, nil)
}

// handleTimelineDrag takes either start/end dates or an edge and a day delta.
func (rt *router[TTx]) handleTimelineDrag(w http.ResponseWriter, r *http.Request) {
	key, ok := rowKey(w, r)
	if !ok {
		return
	}
	start, end := r.PostFormValue("start"), r.PostFormValue("end")
	if start != "" && end != "" {
		s, err := service.ParseDate("start", start)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		e, err := service.ParseDate("end", end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		view, err := rt.svc.RescheduleBar(r.Context(), rt.userID(r), key, s, e)
		rt.renderTimeline(w, r, view, err)
		return
	}

	view, err := rt.svc.DragBar(r.Context(), rt.userID(r), key, service.ParseDragEdge(r.PostFormValue("edge")), formInt(r, "days"))
	rt.renderTimeline(w, r, view, err)
}

func (rt *router[TTx]) handleTimelineProgress(w http.ResponseWriter, r *http.Request) {
	key, ok := rowKey(w, r)
	if !ok {
		return
	}
	view, err := rt.svc.SetBarProgress(r.Context(), rt.userID(r), key, formInt(r, "progress"))
	rt.renderTimeline(w, r, view, err)
}

// handleTimelineScroll records chart scroll ("chart") or tree wheel
// ("wheel") input and answers with both offsets as JSON.
func (rt *router[TTx]) handleTimelineScroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	var tree, chart int
	if r.PostFormValue("chart") != "" {
		tree, chart = rt.svc.ScrollChart(rt.userID(r), formInt(r, "chart"))
	} else {
		tree, chart = rt.svc.WheelTree(rt.userID(r), formInt(r, "wheel"))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"tree": tree, "chart": chart})
}

func optionalDate(field, s string) (*civil.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := service.ParseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
