package pipeline

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gadgethost/pkg/assemble"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/gadget"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
	"github.com/matzehuels/gadgethost/pkg/observability"
	"github.com/matzehuels/gadgethost/pkg/substitute"
)

// Runner renders gadgets against one feature registry.
//
// The Runner holds no per-render state. Multiple goroutines can safely share
// it.
type Runner struct {
	Registry   *feature.Registry
	Assembler  *assemble.Assembler
	Fetcher    httpfetch.Fetcher
	Parser     gadget.SpecParser
	Blacklist  Blacklist
	Processors *Processors
	Logger     *log.Logger
}

// NewRunner creates a runner with the XML spec parser, no blacklist and no
// feature processors. If logger is nil, logs are discarded.
func NewRunner(reg *feature.Registry, asm *assemble.Assembler, fetcher httpfetch.Fetcher, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Registry:   reg,
		Assembler:  asm,
		Fetcher:    fetcher,
		Parser:     gadget.XMLParser{},
		Blacklist:  NoBlacklist{},
		Processors: NewProcessors(),
		Logger:     logger,
	}
}

// render is the state of one request.
type render struct {
	id     string
	gctx   *gadget.Context
	g      *gadget.Gadget
	logger *log.Logger
}

type stage struct {
	name string
	run  func(context.Context, *render) error
}

func (r *Runner) stages() []stage {
	return []stage{
		{StageSpecFetch, r.fetchSpec},
		{StageMessageBundles, r.mergeMessageBundles},
		{StageSubstitutions, r.setupSubstitutions},
		{StageFeatures, r.reconcileFeatures},
		{StageProcessFeatures, r.processFeatures},
		{StageSubstitute, r.substitute},
		{StagePreloads, r.fetchPreloads},
		{StageFeatureContent, r.featureContent},
	}
}

// Render runs the pipeline and returns the rendered gadget.
func (r *Runner) Render(ctx context.Context, gctx *gadget.Context) (*gadget.Gadget, error) {
	g, _, err := r.Execute(ctx, gctx)
	return g, err
}

// Execute runs the pipeline and also returns render statistics. On failure
// the gadget is nil and the Result carries the Failed state.
func (r *Runner) Execute(ctx context.Context, gctx *gadget.Context) (*gadget.Gadget, *Result, error) {
	if gctx == nil {
		return nil, nil, gerrors.New(gerrors.ErrCodeInvalidInput, "missing render context")
	}
	rs := &render{id: uuid.NewString(), gctx: gctx}
	rs.logger = r.Logger.With("render", rs.id[:8])
	result := &Result{RenderID: rs.id, State: Failed}

	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, gctx.URL)

	for _, st := range r.stages() {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, rs, result, start, err)
		}
		stageStart := time.Now()
		err := st.run(ctx, rs)
		d := time.Since(stageStart)
		hooks.OnStageComplete(ctx, st.name, d, err)
		result.Stats.Stages = append(result.Stats.Stages, StageTiming{Stage: st.name, Duration: d})
		if err != nil {
			rs.logger.Debug("stage failed", "stage", st.name, "error", err)
			return r.fail(ctx, rs, result, start, err)
		}
	}

	result.State = Rendered
	result.Stats.Total = time.Since(start)
	result.Stats.Features = len(rs.g.Features)
	result.Stats.Preloads = len(rs.g.PreloadResults)
	result.Stats.PayloadBytes = len(rs.g.FeatureContent)
	hooks.OnRenderComplete(ctx, gctx.URL, len(rs.g.Features), result.Stats.Total, nil)

	rs.logger.Info("rendered gadget",
		"url", gctx.URL,
		"features", len(rs.g.Features),
		"bytes", len(rs.g.FeatureContent),
		"duration", result.Stats.Total.Round(time.Millisecond))
	return rs.g, result, nil
}

func (r *Runner) fail(ctx context.Context, rs *render, result *Result, start time.Time, err error) (*gadget.Gadget, *Result, error) {
	result.Stats.Total = time.Since(start)
	observability.Pipeline().OnRenderComplete(ctx, rs.gctx.URL, 0, result.Stats.Total, err)
	rs.logger.Warn("render failed", "url", rs.gctx.URL, "error", err)
	return nil, result, err
}

// degraded logs and reports a non-fatal condition.
func (r *Runner) degraded(ctx context.Context, rs *render, stage, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	rs.logger.Warn("degraded", "stage", stage, "detail", detail)
	observability.Pipeline().OnDegraded(ctx, stage, detail)
}

// =============================================================================
// Stage 1: Spec fetch
// =============================================================================

func (r *Runner) fetchSpec(ctx context.Context, rs *render) error {
	if _, err := gerrors.ValidateGadgetURL(rs.gctx.URL); err != nil {
		return err
	}
	if r.Blacklist != nil && r.Blacklist.IsBlacklisted(rs.gctx.URL) {
		return gerrors.New(gerrors.ErrCodeBlacklisted, "gadget %s is blacklisted", rs.gctx.URL)
	}
	resp, err := r.Fetcher.Fetch(ctx, &httpfetch.Request{URL: rs.gctx.URL, IgnoreCache: rs.gctx.IgnoreCache})
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeSpecFetch, err, "fetch %s", rs.gctx.URL)
	}
	if !resp.OK() {
		return gerrors.New(gerrors.ErrCodeSpecFetch, "fetch %s: status %d", rs.gctx.URL, resp.StatusCode)
	}

	g, err := r.Parser.Parse(resp.Body, rs.gctx)
	if err != nil {
		if gerrors.GetCode(err) == "" {
			err = gerrors.Wrap(gerrors.ErrCodeInvalidSpec, err, "parse %s", rs.gctx.URL)
		}
		return err
	}
	g.ID = rs.gctx.URL
	if g.ModuleID = rs.gctx.ModuleID; g.ModuleID == "" {
		g.ModuleID = rs.id
	}
	rs.g = g
	return nil
}

// =============================================================================
// Stage 2: Message bundles
// =============================================================================

func (r *Runner) mergeMessageBundles(ctx context.Context, rs *render) error {
	specs := rs.g.MatchLocales(rs.gctx.Locale)
	bundles := make([]map[string]string, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ls := range specs {
		if ls.MessagesURL == "" {
			bundles[i] = ls.Messages
			continue
		}
		g.Go(func() error {
			bundles[i] = r.fetchBundle(gctx, rs, ls)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Most specific first; general bundles only fill in missing keys.
	merged := make(map[string]string)
	for _, b := range bundles {
		for k, v := range b {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	if len(specs) == 0 || len(merged) == 0 {
		rs.logger.Debug("empty message bundle", "locale", rs.gctx.Locale)
	}
	rs.g.MessageBundle = merged
	return nil
}

func (r *Runner) fetchBundle(ctx context.Context, rs *render, ls *gadget.LocaleSpec) map[string]string {
	u := resolveRef(rs.gctx.URL, ls.MessagesURL)
	resp, err := r.Fetcher.Fetch(ctx, &httpfetch.Request{URL: u, IgnoreCache: rs.gctx.IgnoreCache})
	if err != nil {
		r.degraded(ctx, rs, StageMessageBundles, "bundle %s for %s: %v", u, ls.Locale, err)
		return ls.Messages
	}
	if !resp.OK() {
		r.degraded(ctx, rs, StageMessageBundles, "bundle %s for %s: status %d", u, ls.Locale, resp.StatusCode)
		return ls.Messages
	}
	msgs, err := gadget.ParseMessageBundle(resp.Body)
	if err != nil {
		r.degraded(ctx, rs, StageMessageBundles, "bundle %s for %s: %v", u, ls.Locale, err)
		return ls.Messages
	}
	// Inline messages of the same locale take precedence over fetched ones.
	out := make(map[string]string, len(msgs)+len(ls.Messages))
	maps.Copy(out, msgs)
	maps.Copy(out, ls.Messages)
	return out
}

// =============================================================================
// Stage 3: Substitution setup
// =============================================================================

func (r *Runner) setupSubstitutions(ctx context.Context, rs *render) error {
	subs := substitute.New()
	subs.AddSubstitution(substitute.Module, substitute.ModuleID, rs.g.ModuleID)
	subs.AddSubstitutions(substitute.Message, rs.g.MessageBundle)

	rtl := false
	if specs := rs.g.MatchLocales(rs.gctx.Locale); len(specs) > 0 {
		rtl = specs[0].RTL
	}
	subs.SetBidi(rtl)

	for _, up := range rs.g.UserPrefs {
		value, ok := rs.gctx.UserPrefs[up.Name]
		if !ok {
			value = up.DefaultValue
		}
		up.Value = value
		subs.AddSubstitution(substitute.UserPref, up.Name, value)
	}
	rs.g.Substitutions = subs
	return nil
}

// =============================================================================
// Stage 4: Feature reconciliation
// =============================================================================

func (r *Runner) reconcileFeatures(ctx context.Context, rs *render) error {
	res := r.Registry.Resolve(rs.g.RequiredFeatures())

	var required []string
	for _, name := range res.Missing {
		if req, ok := rs.g.Requires[name]; ok && req.Optional {
			rs.g.MissingOptional = append(rs.g.MissingOptional, name)
			r.degraded(ctx, rs, StageFeatures, "optional feature %s is not available", name)
			continue
		}
		required = append(required, name)
	}
	if len(required) > 0 {
		return gerrors.New(gerrors.ErrCodeUnsupportedFeature, "unsupported feature(s): %s", strings.Join(required, ", "))
	}

	rs.g.Features = r.Registry.SortFeatures(res.Found)
	return nil
}

// =============================================================================
// Stage 5: Feature processing
// =============================================================================

func (r *Runner) processFeatures(ctx context.Context, rs *render) error {
	type bound struct {
		name   string
		fp     FeatureProcessor
		params map[string][]string
	}
	var procs []bound
	for _, name := range rs.g.Features {
		fp, ok := r.Processors.Get(name)
		if !ok {
			continue
		}
		var params map[string][]string
		if req, ok := rs.g.Requirement(name); ok {
			params = req.Params
		}
		procs = append(procs, bound{name, fp, params})
	}

	for _, p := range procs {
		if err := p.fp.Prepare(ctx, rs.g, rs.gctx, p.params); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeInternal, err, "prepare feature %s", p.name)
		}
	}
	for _, p := range procs {
		if err := p.fp.Process(ctx, rs.g, rs.gctx, p.params); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeInternal, err, "process feature %s", p.name)
		}
	}
	return nil
}

// =============================================================================
// Stage 6: Substitution pass
// =============================================================================

func (r *Runner) substitute(ctx context.Context, rs *render) error {
	g, subs := rs.g, rs.g.Substitutions
	for _, f := range []*string{&g.Title, &g.TitleURL, &g.Description, &g.Author, &g.AuthorEmail, &g.Screenshot, &g.Thumbnail} {
		*f = subs.Substitute(*f)
	}
	for _, v := range g.Views {
		v.Body = subs.Substitute(v.Body)
		v.Href = subs.Substitute(v.Href)
	}
	for _, up := range g.UserPrefs {
		up.DisplayName = subs.Substitute(up.DisplayName)
	}
	for _, p := range g.Preloads {
		p.Href = subs.Substitute(p.Href)
	}
	return nil
}

// =============================================================================
// Stage 7: Preloads
// =============================================================================

func (r *Runner) fetchPreloads(ctx context.Context, rs *render) error {
	view := rs.gctx.View
	if view == "" {
		view = gadget.DefaultView
	}
	var wanted []*gadget.Preload
	for _, p := range rs.g.Preloads {
		if p.AppliesTo(view) {
			wanted = append(wanted, p)
		}
	}
	results := make([]gadget.PreloadResult, len(wanted))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range wanted {
		g.Go(func() error {
			u := resolveRef(rs.gctx.URL, p.Href)
			results[i] = gadget.PreloadResult{Href: u}
			resp, err := r.Fetcher.Fetch(gctx, &httpfetch.Request{
				URL:         u,
				IgnoreCache: rs.gctx.IgnoreCache,
				AuthType:    p.AuthType,
				SignOwner:   p.SignOwner,
				SignViewer:  p.SignViewer,
			})
			if err != nil {
				results[i].Err = err.Error()
				r.degraded(gctx, rs, StagePreloads, "preload %s: %v", u, err)
				return nil
			}
			results[i].StatusCode = resp.StatusCode
			results[i].Body = resp.Body
			if !resp.OK() {
				r.degraded(gctx, rs, StagePreloads, "preload %s: status %d", u, resp.StatusCode)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	rs.g.PreloadResults = results
	return nil
}

// =============================================================================
// Stage 8: Feature content
// =============================================================================

func (r *Runner) featureContent(ctx context.Context, rs *render) error {
	content, err := r.Assembler.ContentForMany(ctx, rs.g.Features, rs.gctx.RenderContext)
	if err != nil {
		return err
	}
	rs.g.FeatureContent = content
	return nil
}

// resolveRef resolves ref against the gadget spec URL. Absolute references
// and unparseable input are returned unchanged.
func resolveRef(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
