package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"mealplan-cli/internal/model"
	"mealplan-cli/internal/payload"
	"mealplan-cli/internal/persist"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var assetsFS embed.FS

const groupsSelector = "#plan-groups"

type ServerConfig struct {
	Addr string
	// CSRFToken, when set, must accompany every action as the X-CSRFToken header.
	CSRFToken string
	Logger    *zap.Logger
}

// Server is a small planner server: it renders the plan page with the embedded data
// documents, accepts the drag/drop actions and pushes fragment patches to open pages.
type Server struct {
	mu        sync.RWMutex
	cfg       ServerConfig
	tmpl      *template.Template
	log       *zap.Logger
	groupings *model.Groupings
	recipes   model.Catalog

	hub *resourceHub
}

func NewServer(cfg ServerConfig, data *payload.Payload) (*Server, error) {
	if data == nil {
		return nil, errors.New("web: no plan data")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8000"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		tmpl:      tmpl,
		log:       cfg.Logger,
		groupings: data.Groupings.Clone(),
		recipes:   data.Recipes,
		hub:       newResourceHub(),
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handlePlan)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /data.json", s.handleData)
	mux.HandleFunc("GET /docs/{$}", s.handleDocs)
	mux.HandleFunc("GET /docs/{topic}", s.handleDocs)
	mux.HandleFunc("POST "+persist.MovePath, s.handleMove)
	mux.HandleFunc("POST "+persist.AssignPath+"{itemId}/{groupId}/", s.handleAssign)
	mux.HandleFunc("POST "+persist.RenamePath+"{groupId}/", s.handleRename)
	mux.HandleFunc("POST "+persist.TogglePath+"{groupId}/{recipeId}/", s.handleToggle)
	return s.logRequests(mux)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		return hs.Shutdown(shutdownCtx)
	}
}

// Payload returns a copy of the current plan.
func (s *Server) Payload() *payload.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &payload.Payload{Groupings: s.groupings.Clone(), Recipes: s.recipes}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path == "/events" {
			return
		}
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(persist.RequestIDHeader)),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type recipeVM struct {
	ID   string
	Name string
}

type groupVM struct {
	ID      string
	Name    string
	Recipes []recipeVM
}

type planVM struct {
	Grouping      string
	Keys          []string
	Groups        []groupVM
	GroupingsJSON template.JS
	RecipesJSON   template.JS
}

// activeKey resolves ?grouping=, defaulting to the first grouping.
func (s *Server) activeKey(r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.URL.Query().Get("grouping"))
	if key == "" {
		return s.groupings.Keys[0], true
	}
	_, ok := s.groupings.Get(key)
	return key, ok
}

// planView must be called with s.mu held.
func (s *Server) planView(key string) (planVM, error) {
	gr, _ := s.groupings.Get(key)
	vm := planVM{Grouping: key, Keys: slices.Clone(s.groupings.Keys)}
	for _, g := range gr.Ordered() {
		gv := groupVM{ID: g.ID, Name: g.Name}
		for _, rid := range g.RecipeIDs {
			gv.Recipes = append(gv.Recipes, recipeVM{ID: rid, Name: s.recipes.Name(rid)})
		}
		vm.Groups = append(vm.Groups, gv)
	}
	gb, err := json.Marshal(s.groupings)
	if err != nil {
		return planVM{}, err
	}
	rb, err := json.Marshal(s.recipes)
	if err != nil {
		return planVM{}, err
	}
	vm.GroupingsJSON = template.JS(gb)
	vm.RecipesJSON = template.JS(rb)
	return vm, nil
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	key, ok := s.activeKey(r)
	if !ok {
		s.mu.RUnlock()
		http.Error(w, fmt.Sprintf("unknown grouping %q", key), http.StatusNotFound)
		return
	}
	vm, err := s.planView(key)
	s.mu.RUnlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	html, err := s.renderTemplate("page", vm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	body := struct {
		Groupings *model.Groupings `json:"groupings"`
		Recipes   model.Catalog    `json:"recipes"`
	}{s.groupings, s.recipes}
	b, err := json.Marshal(body)
	s.mu.RUnlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

// handleEvents streams the groups fragment of one grouping whenever the plan changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	key, ok := s.activeKey(r)
	s.mu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("unknown grouping %q", key), http.StatusNotFound)
		return
	}

	// Subscribe before the first event so no change between the two is lost.
	ch, cancel := s.hub.subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	_ = sse.MarshalAndPatchSignals(map[string]any{"grouping": key, "planVersion": s.hub.version()})

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-s.hub.done:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			s.mu.RLock()
			vm, err := s.planView(key)
			s.mu.RUnlock()
			var html string
			if err == nil {
				html, err = s.renderTemplate("groups", vm)
			}
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector(groupsSelector), datastar.WithMode(datastar.ElementPatchModeOuter))
			_ = sse.MarshalAndPatchSignals(map[string]any{"planVersion": s.hub.version()})
		}
	}
}

func (s *Server) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.CSRFToken == "" {
		return true
	}
	if r.Header.Get(persist.CSRFHeader) == s.cfg.CSRFToken {
		return true
	}
	http.Error(w, "CSRF verification failed", http.StatusForbidden)
	return false
}

// handleMove sets the destination order from to_order. The source is updated from
// from_order when present; otherwise the moved ids are dropped from it.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := persist.ParseMoveForm(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	status, err := s.applyMove(req)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	s.log.Info("plan reordered",
		zap.String("to", req.ToGroup),
		zap.String("from", req.FromGroup),
		zap.Strings("to_order", req.ToOrder))
	s.hub.broadcast()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) applyMove(req persist.MoveRequest) (int, error) {
	gr, to, ok := s.groupings.FindGroup(req.ToGroup)
	if !ok {
		return http.StatusNotFound, &NotFoundError{Kind: "group", ID: req.ToGroup}
	}
	var from *model.Group
	if req.FromGroup != "" && req.FromGroup != req.ToGroup {
		if from, ok = gr.Group(req.FromGroup); !ok {
			return http.StatusNotFound, &NotFoundError{Kind: "group", ID: req.FromGroup}
		}
	}
	if err := s.checkOrder(req.ToOrder); err != nil {
		return http.StatusBadRequest, fmt.Errorf("to_order: %w", err)
	}
	if from != nil {
		if err := s.checkOrder(req.FromOrder); err != nil {
			return http.StatusBadRequest, fmt.Errorf("from_order: %w", err)
		}
	}

	to.RecipeIDs = slices.Clone(req.ToOrder)
	if from == nil {
		return http.StatusOK, nil
	}
	if len(req.FromOrder) > 0 {
		from.RecipeIDs = slices.Clone(req.FromOrder)
		return http.StatusOK, nil
	}
	from.RecipeIDs = slices.DeleteFunc(from.RecipeIDs, func(id string) bool {
		return slices.Contains(req.ToOrder, id)
	})
	return http.StatusOK, nil
}

func (s *Server) checkOrder(ids []string) error {
	seen := map[string]bool{}
	for _, id := range ids {
		if _, ok := s.recipes[id]; !ok {
			return &NotFoundError{Kind: "recipe", ID: id}
		}
		if seen[id] {
			return fmt.Errorf("recipe %q listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// handleAssign moves one recipe into a group of the same grouping, appending it.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(w, r) {
		return
	}
	itemID := strings.TrimSpace(r.PathValue("itemId"))
	groupID := strings.TrimSpace(r.PathValue("groupId"))

	s.mu.Lock()
	err := s.applyAssign(itemID, groupID)
	s.mu.Unlock()
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("recipe assigned", zap.String("recipe", itemID), zap.String("group", groupID))
	s.hub.broadcast()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) applyAssign(itemID, groupID string) error {
	if _, ok := s.recipes[itemID]; !ok {
		return &NotFoundError{Kind: "recipe", ID: itemID}
	}
	gr, to, ok := s.groupings.FindGroup(groupID)
	if !ok {
		return &NotFoundError{Kind: "group", ID: groupID}
	}
	if to.IndexOf(itemID) >= 0 {
		return nil
	}
	for _, g := range gr.Ordered() {
		if at := g.IndexOf(itemID); at >= 0 {
			g.RecipeIDs = slices.Delete(g.RecipeIDs, at, at+1)
			break
		}
	}
	to.RecipeIDs = append(to.RecipeIDs, itemID)
	return nil
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(w, r) {
		return
	}
	groupID := strings.TrimSpace(r.PathValue("groupId"))
	name := strings.TrimSpace(r.PostFormValue("meal_group_name"))
	if name == "" {
		http.Error(w, "Name required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, g, ok := s.groupings.FindGroup(groupID)
	if ok {
		g.Name = name
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, (&NotFoundError{Kind: "group", ID: groupID}).Error(), http.StatusNotFound)
		return
	}
	s.hub.broadcast()
	w.WriteHeader(http.StatusOK)
}

// handleToggle adds a recipe to the end of a group, or removes it when already there.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !s.checkCSRF(w, r) {
		return
	}
	groupID := strings.TrimSpace(r.PathValue("groupId"))
	recipeID := strings.TrimSpace(r.PathValue("recipeId"))

	s.mu.Lock()
	added, err := s.applyToggle(groupID, recipeID)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Info("recipe toggled", zap.String("group", groupID), zap.String("recipe", recipeID), zap.Bool("added", added))
	s.hub.broadcast()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) applyToggle(groupID, recipeID string) (bool, error) {
	if _, ok := s.recipes[recipeID]; !ok {
		return false, &NotFoundError{Kind: "recipe", ID: recipeID}
	}
	_, g, ok := s.groupings.FindGroup(groupID)
	if !ok {
		return false, &NotFoundError{Kind: "group", ID: groupID}
	}
	if at := g.IndexOf(recipeID); at >= 0 {
		g.RecipeIDs = slices.Delete(g.RecipeIDs, at, at+1)
		return false, nil
	}
	g.RecipeIDs = append(g.RecipeIDs, recipeID)
	return true, nil
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// resourceHub fans change notifications out to open event streams.
type resourceHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
	ver  int

	// done is closed on shutdown so open streams return.
	done      chan struct{}
	closeOnce sync.Once
}

func newResourceHub() *resourceHub {
	return &resourceHub{subs: map[chan struct{}]struct{}{}, done: make(chan struct{})}
}

func (h *resourceHub) closeAll() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *resourceHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}

func (h *resourceHub) broadcast() {
	h.mu.Lock()
	h.ver++
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *resourceHub) version() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ver
}
