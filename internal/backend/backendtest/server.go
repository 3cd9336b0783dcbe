// Package backendtest runs an in-memory stand-in for the asset backend: the
// REST endpoints the console calls and the notification hub it listens to.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const sessionCookie = "asset_session"

type asset struct {
	id       string
	name     string
	parentID string
}

type signal struct {
	ID          int    `json:"id"`
	AssetID     int    `json:"assetId"`
	Name        string `json:"name"`
	ValueType   string `json:"valueType"`
	Description string `json:"description"`
}

type notification struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// User is the account the fake backend accepts.
type User struct {
	ID       int
	Username string
	Password string
	Email    string
	Role     string
	Token    string
}

type Server struct {
	srv *httptest.Server
	t   testing.TB

	mu            sync.Mutex
	user          User
	rootID        string
	assets        map[string]*asset
	order         []string
	nextID        int
	signals       map[string][]signal
	notifications []notification
	importLogs    map[string]string
	calls         []string

	hubMu    sync.Mutex
	hubConns map[*websocket.Conn]struct{}
}

// New starts a backend holding a Plant root with two children, Pump1 and
// Valve2, and Pump3 under Valve2. It is closed with the test.
func New(t testing.TB, user User) *Server {
	t.Helper()

	s := &Server{
		t:          t,
		user:       user,
		assets:     map[string]*asset{},
		signals:    map[string][]signal{},
		importLogs: map[string]string{},
		hubConns:   map[*websocket.Conn]struct{}{},
		nextID:     100,
	}
	s.seed()

	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) seed() {
	s.rootID = "1"
	for _, a := range []asset{
		{id: "1", name: "Plant"},
		{id: "2", name: "Pump1", parentID: "1"},
		{id: "3", name: "Valve2", parentID: "1"},
		{id: "4", name: "Pump3", parentID: "3"},
	} {
		copied := a
		s.assets[a.id] = &copied
		s.order = append(s.order, a.id)
	}
}

// APIURL is the base of the REST endpoints.
func (s *Server) APIURL() string {
	return s.srv.URL + "/api"
}

// HubURL is the notification hub endpoint.
func (s *Server) HubURL() string {
	return s.srv.URL + "/Notification"
}

// Calls lists the mutating requests received so far as "METHOD path".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// HubClients reports the number of open hub sockets.
func (s *Server) HubClients() int {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()
	return len(s.hubConns)
}

// AddNotification stores a durable notification for the user.
func (s *Server) AddNotification(kind string, actor string, message string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.notifications = append(s.notifications, notification{
		ID:        s.nextID,
		Type:      kind,
		UserName:  actor,
		Message:   message,
		CreatedAt: at.UTC().Format(time.RFC3339),
	})
}

// Rename changes an asset behind the console's back, as another user would.
func (s *Server) Rename(id string, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[id]; ok {
		a.name = name
	}
}

func (s *Server) Close() {
	s.hubMu.Lock()
	for conn := range s.hubConns {
		_ = conn.Close()
	}
	s.hubMu.Unlock()
	s.srv.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/Notification/negotiate", s.negotiate)
	r.Get("/Notification", s.hub)

	r.Route("/api", func(api chi.Router) {
		api.Post("/Auth/Login", s.login)
		api.Post("/Auth/Register", s.record(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		api.Group(func(p chi.Router) {
			p.Use(s.authenticated)

			p.Get("/Auth/GetUserInfo", s.userInfo)

			p.Get("/AssetHierarchy", s.hierarchy)
			p.Get("/AssetHierarchy/TotalAssets", s.total)
			p.Post("/AssetHierarchy", s.record(s.createNode))
			p.Post("/AssetHierarchy/AddNewAsset", s.record(s.addAsset))
			p.Put("/AssetHierarchy/Update/{id}", s.record(s.rename))
			p.Delete("/AssetHierarchy/{id}", s.record(s.deleteNode))
			p.Post("/AssetHierarchy/ReorderAsset/{id}/{parent}", s.record(s.reorder))
			p.Post("/AssetHierarchy/GetAssetInfo/{id}", s.record(s.stats))
			p.Get("/AssetHierarchy/DownloadFile/{format}", s.download)
			p.Post("/AssetHierarchy/Upload", s.record(s.upload))
			p.Post("/AssetHierarchy/UploadExistingTree", s.record(s.upload))
			p.Get("/AssetHierarchy/ImportFileLogs", s.logs)

			p.Get("/Signals/Asset/{id}/AllSignals", s.listSignals)
			p.Post("/Signals/Asset/{id}/AddSignal", s.record(s.addSignal))

			p.Get("/Notification/user/{user}", s.listNotifications)
			p.Put("/Notification/mark-read", s.record(s.markRead))
			p.Put("/Notification/mark-all-read/{user}", s.record(s.markAllRead))
			p.Delete("/Notification/clear/{user}", s.record(s.clearNotifications))
		})
	})
	return r
}

func (s *Server) record(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api"))
		s.mu.Unlock()
		next(w, r)
	}
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value == s.user.Username {
			next.ServeHTTP(w, r)
			return
		}
		if s.user.Token != "" && r.Header.Get("Authorization") == "Bearer "+s.user.Token {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if in.Username != s.user.Username || in.Password != s.user.Password {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: s.user.Username, Path: "/", HttpOnly: true})
	_, _ = w.Write([]byte("Login successful"))
}

func (s *Server) userInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"userId":   s.user.ID,
		"userName": s.user.Username,
		"email":    s.user.Email,
		"role":     s.user.Role,
	})
}

type wireNode struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	ParentID *int       `json:"parentId"`
	Children []wireNode `json:"children"`
}

// treeLocked renders the hierarchy in the backend's wire shape with numeric
// ids.
func (s *Server) treeLocked(id string) wireNode {
	a := s.assets[id]
	n, _ := strconv.Atoi(a.id)
	node := wireNode{ID: n, Name: a.name, Children: []wireNode{}}
	if a.parentID != "" {
		p, _ := strconv.Atoi(a.parentID)
		node.ParentID = &p
	}
	for _, childID := range s.order {
		if child := s.assets[childID]; child != nil && child.parentID == id {
			node.Children = append(node.Children, s.treeLocked(childID))
		}
	}
	return node
}

func (s *Server) hierarchy(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootID == "" {
		http.NotFound(w, nil)
		return
	}
	writeJSON(w, s.treeLocked(s.rootID))
}

func (s *Server) total(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprint(w, len(s.assets))
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, ok := s.assets[in.ParentID]; !ok {
		s.mu.Unlock()
		http.Error(w, "Parent not found", http.StatusNotFound)
		return
	}
	id := in.ID
	if id == "" {
		s.nextID++
		id = strconv.Itoa(s.nextID)
	}
	if _, taken := s.assets[id]; taken {
		s.mu.Unlock()
		http.Error(w, "Asset id already exists", http.StatusConflict)
		return
	}
	s.assets[id] = &asset{id: id, name: in.Name, parentID: in.ParentID}
	s.order = append(s.order, id)
	parentName := s.assets[in.ParentID].name
	s.mu.Unlock()

	s.Broadcast("RecieveAssetNotification", map[string]any{"type": "AssetAdded", "userName": s.user.Username, "assetName": in.Name, "parentName": parentName})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) addAsset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("assetName")

	s.mu.Lock()
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.assets[id] = &asset{id: id, name: name, parentID: s.rootID}
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.Broadcast("RecieveAssetNotification", map[string]any{"type": "AssetAdded", "userName": s.user.Username, "assetName": name})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := r.URL.Query().Get("name")

	s.mu.Lock()
	a, ok := s.assets[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	old := a.name
	a.name = name
	s.mu.Unlock()

	s.Broadcast("RecieveAssetNotification", map[string]any{"type": "AssetUpdated", "userName": s.user.Username, "oldName": old, "newName": name})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	a, ok := s.assets[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	s.removeLocked(id)
	if id == s.rootID {
		s.rootID = ""
	}
	s.mu.Unlock()

	s.Broadcast("RecieveAssetNotification", map[string]any{"type": "AssetDeleted", "userName": s.user.Username, "assetName": a.name})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) removeLocked(id string) {
	for _, childID := range slices.Clone(s.order) {
		if child := s.assets[childID]; child != nil && child.parentID == id {
			s.removeLocked(childID)
		}
	}
	delete(s.assets, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}

func (s *Server) reorder(w http.ResponseWriter, r *http.Request) {
	id, parent := chi.URLParam(r, "id"), chi.URLParam(r, "parent")

	s.mu.Lock()
	a, ok := s.assets[id]
	p, parentOK := s.assets[parent]
	if !ok || !parentOK {
		s.mu.Unlock()
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	a.parentID = parent
	name, parentName := a.name, p.name
	s.mu.Unlock()

	s.Broadcast("RecieveAssetNotification", map[string]any{"type": "AssetReordered", "userName": s.user.Username, "assetName": name, "parentName": parentName})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	a, ok := s.assets[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	s.Broadcast("RecieveStatsNotification", map[string]any{"assetId": id, "assetName": a.name, "stats": map[string]float64{"avg": 21.5}})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if format != "json" {
		http.Error(w, "Unsupported format", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	tree := s.treeLocked(s.rootID)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="hierarchy.json"`)
	_ = json.NewEncoder(w).Encode(tree)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || !json.Valid(data) {
		http.Error(w, "Invalid JSON file", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.importLogs[time.Now().UTC().Format(time.RFC3339Nano)] = "imported " + header.Filename
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) logs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.importLogs)
}

func (s *Server) listSignals(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.signals[chi.URLParam(r, "id")]
	if out == nil {
		out = []signal{}
	}
	writeJSON(w, out)
}

func (s *Server) addSignal(w http.ResponseWriter, r *http.Request) {
	var in signal
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	assetID := chi.URLParam(r, "id")

	s.mu.Lock()
	s.nextID++
	in.ID = s.nextID
	s.signals[assetID] = append(s.signals[assetID], in)
	s.mu.Unlock()

	s.Broadcast("RecieveSignalNotification", map[string]any{"type": "SignalAdded", "userName": s.user.Username, "signalName": in.Name, "assetId": assetID})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listNotifications(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.notifications)
	if out == nil {
		out = []notification{}
	}
	writeJSON(w, out)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	var ids []int
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	for i := range s.notifications {
		if slices.Contains(ids, s.notifications[i].ID) {
			s.notifications[i].IsRead = true
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) markAllRead(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearNotifications(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.notifications = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
