package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/flipbook"
	"github.com/local/flipbook/internal/imagerender"
)

type pageView struct {
	Number   int    `json:"number"`
	Cover    bool   `json:"cover"`
	Density  string `json:"density"`
	Rendered bool   `json:"rendered"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	URL      string `json:"url"`
}

type bookView struct {
	State  flipbook.State        `json:"state"`
	Layout *flipbook.Dimensions  `json:"layout,omitempty"`
	Flip   *flipbook.FlipOptions `json:"flip,omitempty"`
	Pages  []pageView            `json:"pages"`
}

type progressView struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

type statusView struct {
	BoardState
	State    flipbook.State `json:"state"`
	Progress progressView   `json:"progress"`
}

type sessionView struct {
	ID          string        `json:"id"`
	Mode        flipbook.Mode `json:"mode"`
	Current     int           `json:"current"`
	Total       int           `json:"total"`
	Visible     []int         `json:"visible,omitempty"`
	AutoRunning bool          `json:"auto_running"`
	Fullscreen  bool          `json:"fullscreen"`
}

type modeRequest struct {
	Mode       string `json:"mode"`
	Fullscreen bool   `json:"fullscreen"`
}

func (w *Web) handleBook(wr http.ResponseWriter, r *http.Request) {
	view := bookView{State: w.opts.Loader.State(), Pages: []pageView{}}
	if b := w.Book(); b != nil {
		layout, flip := b.Layout, b.Flip
		view.Layout, view.Flip = &layout, &flip
	}
	for _, p := range w.opts.Board.Pages() {
		pw, ph := p.Surface.Size()
		view.Pages = append(view.Pages, pageView{
			Number:   p.Number,
			Cover:    p.Cover,
			Density:  string(p.Density()),
			Rendered: p.Rendered(),
			Width:    pw,
			Height:   ph,
			URL:      fmt.Sprintf("/pages/%d", p.Number),
		})
	}
	writeJSON(wr, http.StatusOK, view)
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
	st := w.opts.Board.State()
	// a viewer that already picked a mode no longer sees the selector
	if v, ok := w.sessions.lookup(r); ok {
		if hidden, _ := v.ui.state(); hidden {
			st.SelectorVisible = false
		}
	}
	done, failed := w.opts.Loader.Progress()
	writeJSON(wr, http.StatusOK, statusView{
		State:      w.opts.Loader.State(),
		BoardState: st,
		Progress:   progressView{Done: done, Failed: failed, Total: st.Pages},
	})
}

func (w *Web) handlePage(wr http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(wr, http.StatusNotFound, "page not found")
		return
	}
	p, ok := w.opts.Board.Page(n)
	if !ok {
		writeError(wr, http.StatusNotFound, "page not found")
		return
	}
	format, err := imagerender.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(wr, http.StatusBadRequest, err.Error())
		return
	}
	img := p.Surface.Snapshot()
	if img == nil {
		writeError(wr, http.StatusConflict, "page not rendered yet")
		return
	}
	data, err := w.opts.Encoder.Encode(img, format)
	if err != nil {
		log.Error().Err(err).Int("page", n).Msg("encode page")
		writeError(wr, http.StatusInternalServerError, "encode failed")
		return
	}
	wr.Header().Set("Content-Type", format.ContentType())
	wr.Header().Set("Content-Length", strconv.Itoa(len(data)))
	wr.Header().Set("Cache-Control", "public, max-age=3600")
	wr.Write(data)
}

func (w *Web) handleSession(wr http.ResponseWriter, r *http.Request) {
	v, ok := w.viewer(wr, r)
	if !ok {
		return
	}
	writeJSON(wr, http.StatusOK, v.view())
}

func (w *Web) handleMode(wr http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(wr, http.StatusBadRequest, "invalid json body")
		return
	}
	mode, err := flipbook.ParseMode(req.Mode)
	if err != nil {
		writeError(wr, http.StatusBadRequest, err.Error())
		return
	}
	v, ok := w.viewer(wr, r)
	if !ok {
		return
	}
	// the scheduler must outlive this request
	if err := v.session.SelectMode(v.ctx, v.ui, mode, req.Fullscreen); err != nil {
		if errors.Is(err, flipbook.ErrModeSelected) {
			writeError(wr, http.StatusConflict, err.Error())
			return
		}
		writeError(wr, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(wr, http.StatusOK, v.view())
}

func (w *Web) handleNext(wr http.ResponseWriter, r *http.Request) {
	v, ok := w.viewer(wr, r)
	if !ok {
		return
	}
	v.session.Flipper.FlipNext()
	writeJSON(wr, http.StatusOK, v.view())
}

// viewer resolves the session or writes the error response.
func (w *Web) viewer(wr http.ResponseWriter, r *http.Request) (*viewer, bool) {
	v, err := w.session(wr, r)
	if err == nil {
		return v, true
	}
	if errors.Is(err, errBookNotReady) {
		writeError(wr, http.StatusConflict, err.Error())
	} else {
		log.Error().Err(err).Msg("create session")
		writeError(wr, http.StatusInternalServerError, "session unavailable")
	}
	return nil, false
}

type visibler interface {
	Visible() []int
}

func (v *viewer) view() sessionView {
	_, fullscreen := v.ui.state()
	f := v.session.Flipper
	out := sessionView{
		ID:         v.session.ID,
		Mode:       v.session.Mode(),
		Current:    f.CurrentPageIndex(),
		Total:      f.PageCount(),
		Fullscreen: fullscreen,
	}
	if vf, ok := f.(visibler); ok {
		out.Visible = vf.Visible()
	}
	if s := v.session.Scheduler(); s != nil {
		out.AutoRunning = s.Running()
	}
	return out
}
