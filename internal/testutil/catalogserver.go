package testutil

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
)

// FakeAsset is an asset held by FakeCatalogServer.
type FakeAsset struct {
	ID       string
	Checksum string
	Size     int
	Fields   map[string]string // multipart fields of the upload
}

type fakeAlbum struct {
	id     string
	name   string
	assets []string
}

// FakeCatalogServer is an in-memory photo catalog speaking the HTTP API
// under /api/. It supports fault injection for transport and status errors.
type FakeCatalogServer struct {
	*httptest.Server
	APIKey string

	mu         sync.Mutex
	seq        int
	albums     []*fakeAlbum
	assets     map[string]*FakeAsset
	assetOrder []string
	requests   []string

	resets       map[string]int // "METHOD /api/path" or "" for any -> remaining drops
	forced       map[string]int // "METHOD /api/path pattern" -> status
	conflictNext bool

	// MaxUploadSize answers larger uploads with 413. 0 means no limit.
	MaxUploadSize int
	// PageSize caps search pages. 0 means the client's size.
	PageSize int
}

// NewFakeCatalogServer starts a server that is closed when the test ends.
func NewFakeCatalogServer(t *testing.T) *FakeCatalogServer {
	t.Helper()

	s := &FakeCatalogServer{
		APIKey: "test-api-key",
		assets: make(map[string]*FakeAsset),
		resets: make(map[string]int),
		forced: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/albums", s.listAlbums)
	mux.HandleFunc("POST /api/albums", s.createAlbum)
	mux.HandleFunc("GET /api/albums/{id}", s.getAlbum)
	mux.HandleFunc("DELETE /api/albums/{id}", s.deleteAlbum)
	mux.HandleFunc("PUT /api/albums/{id}/assets", s.addToAlbum)
	mux.HandleFunc("GET /api/assets/{id}", s.getAsset)
	mux.HandleFunc("DELETE /api/assets/{id}/albums", s.removeFromAlbum)
	mux.HandleFunc("POST /api/assets", s.upload)
	mux.HandleFunc("DELETE /api/assets", s.deleteAssets)
	mux.HandleFunc("POST /api/search/metadata", s.search)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// ResetConnections drops the connection of the next n requests without
// answering them.
func (s *FakeCatalogServer) ResetConnections(n int) {
	s.ResetConnectionsOn("", "", n)
}

// ResetConnectionsOn drops the next n requests to method and path.
func (s *FakeCatalogServer) ResetConnectionsOn(method, path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ""
	if method != "" {
		key = method + " " + path
	}
	s.resets[key] = n
}

// ForceStatus answers every request to method and path with status.
func (s *FakeCatalogServer) ForceStatus(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[method+" "+path] = status
}

// SetAPIKey changes the key the server accepts.
func (s *FakeCatalogServer) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.APIKey = key
}

// ConflictOnNextCreate makes the next album creation store the album but
// answer 409, as if another client had created it first.
func (s *FakeCatalogServer) ConflictOnNextCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictNext = true
}

// Requests returns "METHOD PATH" for every request received, including
// dropped ones.
func (s *FakeCatalogServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// CountRequests returns how many requests matched method and path.
func (s *FakeCatalogServer) CountRequests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

// AddAlbum stores an album and returns its id.
func (s *FakeCatalogServer) AddAlbum(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAlbum(name).id
}

// AddAsset stores an asset with the checksum in the given albums.
func (s *FakeCatalogServer) AddAsset(checksum string, albumIDs ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.addAsset(&FakeAsset{Checksum: checksum})
	for _, id := range albumIDs {
		if album := s.album(id); album != nil {
			album.assets = append(album.assets, a.ID)
		}
	}
	return a.ID
}

// Asset returns a stored asset or nil.
func (s *FakeCatalogServer) Asset(id string) *FakeAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[id]
}

// AlbumAssets returns the asset ids of the album in insertion order.
func (s *FakeCatalogServer) AlbumAssets(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if album := s.album(id); album != nil {
		return slices.Clone(album.assets)
	}
	return nil
}

// AlbumCount returns the number of albums named name.
func (s *FakeCatalogServer) AlbumCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.albums {
		if a.name == name {
			n++
		}
	}
	return n
}

func (s *FakeCatalogServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		key := r.Method + " " + r.URL.Path
		s.requests = append(s.requests, key)
		reset := false
		for _, k := range []string{key, ""} {
			if s.resets[k] > 0 {
				s.resets[k]--
				reset = true
				break
			}
		}
		status, forced := s.forced[key]
		apiKey := s.APIKey
		s.mu.Unlock()

		if reset {
			hj, ok := w.(http.Hijacker)
			if !ok {
				http.Error(w, "hijack unsupported", http.StatusInternalServerError)
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		if r.Header.Get("x-api-key") != apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		if forced {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *FakeCatalogServer) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

func (s *FakeCatalogServer) addAlbum(name string) *fakeAlbum {
	a := &fakeAlbum{id: s.nextID("album"), name: name}
	s.albums = append(s.albums, a)
	return a
}

func (s *FakeCatalogServer) addAsset(a *FakeAsset) *FakeAsset {
	a.ID = s.nextID("asset")
	s.assets[a.ID] = a
	s.assetOrder = append(s.assetOrder, a.ID)
	return a
}

func (s *FakeCatalogServer) album(id string) *fakeAlbum {
	for _, a := range s.albums {
		if a.id == id {
			return a
		}
	}
	return nil
}

type assetJSON struct {
	ID       string      `json:"id"`
	Checksum string      `json:"checksum"`
	Albums   []albumJSON `json:"albums,omitempty"`
}

type albumJSON struct {
	ID     string      `json:"id"`
	Name   string      `json:"albumName"`
	Assets []assetJSON `json:"assets,omitempty"`
}

type idsJSON struct {
	IDs []string `json:"ids"`
}

func (s *FakeCatalogServer) listAlbums(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []albumJSON{}
	for _, a := range s.albums {
		out = append(out, albumJSON{ID: a.id, Name: a.name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeCatalogServer) createAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AlbumName string `json:"albumName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlbumName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "albumName required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.addAlbum(req.AlbumName)
	if s.conflictNext {
		s.conflictNext = false
		writeJSON(w, http.StatusConflict, map[string]string{"message": "album exists"})
		return
	}
	writeJSON(w, http.StatusCreated, albumJSON{ID: a.id, Name: a.name})
}

func (s *FakeCatalogServer) getAlbum(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.album(r.PathValue("id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "album not found"})
		return
	}
	out := albumJSON{ID: a.id, Name: a.name, Assets: []assetJSON{}}
	for _, id := range a.assets {
		out.Assets = append(out.Assets, assetJSON{ID: id, Checksum: s.assets[id].Checksum})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeCatalogServer) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if s.album(id) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "album not found"})
		return
	}
	s.albums = slices.DeleteFunc(s.albums, func(a *fakeAlbum) bool { return a.id == id })
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeCatalogServer) addToAlbum(w http.ResponseWriter, r *http.Request) {
	var req idsJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.album(r.PathValue("id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "album not found"})
		return
	}
	type result struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	var out []result
	for _, id := range req.IDs {
		switch {
		case s.assets[id] == nil:
			out = append(out, result{ID: id, Error: "not_found"})
		case slices.Contains(a.assets, id):
			out = append(out, result{ID: id, Error: "duplicate"})
		default:
			a.assets = append(a.assets, id)
			out = append(out, result{ID: id, Success: true})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeCatalogServer) removeFromAlbum(w http.ResponseWriter, r *http.Request) {
	var req idsJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assetID := r.PathValue("id")
	for _, albumID := range req.IDs {
		if a := s.album(albumID); a != nil {
			a.assets = slices.DeleteFunc(a.assets, func(id string) bool { return id == assetID })
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeCatalogServer) getAsset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "asset not found"})
		return
	}
	out := assetJSON{ID: a.ID, Checksum: a.Checksum}
	for _, album := range s.albums {
		if slices.Contains(album.assets, a.ID) {
			out.Albums = append(out.Albums, albumJSON{ID: album.id, Name: album.name})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeCatalogServer) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f, _, err := r.FormFile("assetData")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "assetData required"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	fields := make(map[string]string)
	for k, v := range r.MultipartForm.Value {
		fields[k] = v[0]
	}
	fields["x-immich-checksum"] = r.Header.Get("x-immich-checksum")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MaxUploadSize > 0 && len(data) > s.MaxUploadSize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	h := sha1.Sum(data)
	sum := base64.StdEncoding.EncodeToString(h[:])
	for _, id := range s.assetOrder {
		if s.assets[id].Checksum == sum {
			writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "duplicate"})
			return
		}
	}

	a := s.addAsset(&FakeAsset{Checksum: sum, Size: len(data), Fields: fields})
	writeJSON(w, http.StatusCreated, map[string]string{"id": a.ID, "status": "created"})
}

func (s *FakeCatalogServer) deleteAssets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool     `json:"force"`
		IDs   []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range req.IDs {
		delete(s.assets, id)
	}
	s.assetOrder = slices.DeleteFunc(s.assetOrder, func(id string) bool { return s.assets[id] == nil })
	for _, a := range s.albums {
		a.assets = slices.DeleteFunc(a.assets, func(id string) bool { return s.assets[id] == nil })
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeCatalogServer) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checksum     string `json:"checksum"`
		IsNotInAlbum bool   `json:"isNotInAlbum"`
		Page         int    `json:"page"`
		Size         int    `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member := make(map[string]bool)
	for _, a := range s.albums {
		for _, id := range a.assets {
			member[id] = true
		}
	}

	var matches []assetJSON
	for _, id := range s.assetOrder {
		a := s.assets[id]
		if req.Checksum != "" && a.Checksum != req.Checksum {
			continue
		}
		if req.IsNotInAlbum && member[id] {
			continue
		}
		matches = append(matches, assetJSON{ID: a.ID, Checksum: a.Checksum})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	size := req.Size
	if s.PageSize > 0 && (size == 0 || size > s.PageSize) {
		size = s.PageSize
	}
	if size <= 0 {
		size = 250
	}
	page := max(req.Page, 1)

	start := min((page-1)*size, len(matches))
	end := min(start+size, len(matches))

	var next *string
	if end < len(matches) {
		n := strconv.Itoa(page + 1)
		next = &n
	}

	var out struct {
		Assets struct {
			Items    []assetJSON `json:"items"`
			NextPage *string     `json:"nextPage"`
		} `json:"assets"`
	}
	out.Assets.Items = append([]assetJSON{}, matches[start:end]...)
	out.Assets.NextPage = next
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
