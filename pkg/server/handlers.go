package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/gadget"
)

// userPrefPrefix marks user preference values in the iframe query string.
const userPrefPrefix = "up_"

var iframeTemplate = template.Must(template.New("ifr").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body,td,div,span,p{font-family:arial,sans-serif;}body{margin:0;padding:0;}</style>
<script>{{.Features}}</script>
</head>
<body>
{{.Body}}
</body>
</html>
`))

type iframeData struct {
	Title    string
	Features template.JS
	Body     template.HTML
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gctx := &gadget.Context{
		URL:           q.Get("url"),
		Locale:        gadget.NewLocale(q.Get("lang"), q.Get("country")),
		ModuleID:      q.Get("mid"),
		View:          q.Get("view"),
		IgnoreCache:   q.Get("nocache") == "1",
		UserPrefs:     make(map[string]string),
		RenderContext: feature.GadgetContext,
	}
	for k, v := range q {
		if name, ok := strings.CutPrefix(k, userPrefPrefix); ok && name != "" && len(v) > 0 {
			gctx.UserPrefs[name] = v[0]
		}
	}

	g, err := s.runner.Render(r.Context(), gctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, ok := g.View(gctx.View)
	if !ok {
		s.writeError(w, r, gerrors.New(gerrors.ErrCodeNotFound, "gadget has no view %q", gctx.View))
		return
	}
	if view.Type == gadget.ViewURL {
		http.Redirect(w, r, view.Href, http.StatusFound)
		return
	}

	var buf bytes.Buffer
	err = iframeTemplate.Execute(&buf, iframeData{
		Title:    g.Title,
		Features: template.JS(g.FeatureContent),
		Body:     template.HTML(view.Body),
	})
	if err != nil {
		s.writeError(w, r, gerrors.Wrap(gerrors.ErrCodeInternal, err, "render iframe"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if gctx.IgnoreCache {
		w.Header().Set("Cache-Control", "no-cache")
	}
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleJS(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSuffix(chi.URLParam(r, "features"), ".js")
	names := strings.Split(raw, ":")
	for _, name := range names {
		if err := gerrors.ValidateFeatureName(name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	rc := feature.GadgetContext
	if r.URL.Query().Get("c") == "1" {
		rc = feature.ContainerContext
	}

	res := s.registry.Resolve(names)
	if !res.OK() {
		s.writeError(w, r, gerrors.New(gerrors.ErrCodeNotFound, "unknown feature(s): %s", strings.Join(res.Missing, ", ")))
		return
	}
	content, err := s.assembler.ContentForMany(r.Context(), s.registry.SortFeatures(res.Found), rc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write(content)
}

// featureInfo is the JSON form of one registry entry.
type featureInfo struct {
	Name             string   `json:"name"`
	Dependencies     []string `json:"dependencies"`
	Core             bool     `json:"core"`
	GadgetScripts    int      `json:"gadget_scripts"`
	ContainerScripts int      `json:"container_scripts"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	descs := s.registry.Descriptors()
	out := make([]featureInfo, 0, len(descs))
	for _, d := range descs {
		deps := d.Dependencies
		if deps == nil {
			deps = []string{}
		}
		out = append(out, featureInfo{
			Name:             d.Name,
			Dependencies:     deps,
			Core:             d.IsCore(),
			GadgetScripts:    len(d.GadgetScripts),
			ContainerScripts: len(d.ContainerScripts),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("encode feature list", "error", err)
	}
}
