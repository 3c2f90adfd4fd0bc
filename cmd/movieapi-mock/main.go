// movieapi-mock is an in-memory stand-in for the movie API, used for local
// development of the web client. It implements the documented REST surface
// with cookie sessions and server-side search, sorting, and aggregates.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type movie struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Year        int    `json:"year"`
	Genre       string `json:"genre"`
	Director    string `json:"director,omitempty"`
	Description string `json:"description,omitempty"`
	PosterURL   string `json:"poster_url,omitempty"`
}

type rating struct {
	RatingID  int64  `json:"rating_id"`
	MovieID   int64  `json:"movie_id"`
	UserID    int64  `json:"-"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at"`
}

type user struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	Password string `json:"-"`
}

type state struct {
	mu       sync.Mutex
	movies   map[int64]*movie
	ratings  map[int64]*rating
	users    map[int64]*user
	sessions map[string]int64
	nextID   int64
}

func newState() *state {
	s := &state{
		movies:   make(map[int64]*movie),
		ratings:  make(map[int64]*rating),
		users:    make(map[int64]*user),
		sessions: make(map[string]int64),
		nextID:   1,
	}
	seed := []movie{
		{Title: "The Long Take", Year: 1998, Genre: "Drama", Director: "M. Osei", Description: "A single night in a single shot."},
		{Title: "Orbit Decay", Year: 2014, Genre: "Sci-Fi", Director: "L. Brandt", Description: "A salvage crew races a falling station."},
		{Title: "Violet Hour", Year: 2007, Genre: "Thriller", Director: "R. Kimura", Description: "A translator hears one word too many."},
		{Title: "Copper Creek", Year: 1973, Genre: "Western", Director: "H. Dillard", Description: "A town with two sheriffs and no law."},
	}
	for i := range seed {
		m := seed[i]
		m.ID = s.nextID
		s.nextID++
		s.movies[m.ID] = &m
	}
	admin := &user{ID: s.nextID, Username: "admin", Email: "admin@example.com", IsAdmin: true, Password: "admin12345"}
	s.nextID++
	s.users[admin.ID] = admin
	return s
}

func (s *state) aggregate(movieID int64) (*float64, *int64) {
	var sum, count int64
	for _, r := range s.ratings {
		if r.MovieID == movieID {
			sum += int64(r.Score)
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(count)
	return &avg, &count
}

type movieOut struct {
	movie
	AverageRating *float64 `json:"average_rating,omitempty"`
	RatingCount   *int64   `json:"rating_count,omitempty"`
}

func (s *state) movieOut(m *movie) movieOut {
	avg, count := s.aggregate(m.ID)
	return movieOut{movie: *m, AverageRating: avg, RatingCount: count}
}

func main() {
	var (
		port    = flag.String("port", "9080", "port to listen on")
		verbose = flag.Bool("v", false, "log every request")
	)
	flag.Parse()

	s := newState()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/register/", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login/", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout/", s.handleLogout)

	mux.HandleFunc("GET /api/movies/", s.handleListMovies)
	mux.HandleFunc("GET /api/movies/search/", s.handleSearchMovies)
	mux.HandleFunc("GET /api/movies/{id}/", s.handleMovieDetail)
	mux.HandleFunc("GET /api/movies/{id}/ratings/", s.handleMovieRatings)

	mux.HandleFunc("GET /api/ratings/mine/", s.handleMyRatings)
	mux.HandleFunc("GET /api/ratings/mine/details/", s.handleMyRatingDetails)
	mux.HandleFunc("POST /api/ratings/{movieID}/", s.handleCreateRating)
	mux.HandleFunc("PUT /api/ratings/{id}/edit/", s.handleEditRating)
	mux.HandleFunc("DELETE /api/ratings/{id}/delete/", s.handleDeleteRating)

	mux.HandleFunc("GET /api/recommendations/mine/", s.handleRecommendations)

	mux.HandleFunc("GET /api/profile/", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile/", s.handleUpdateProfile)

	mux.HandleFunc("POST /api/admin/movies/add/", s.handleAdminAdd)
	mux.HandleFunc("PUT /api/admin/movies/{id}/edit/", s.handleAdminEdit)
	mux.HandleFunc("DELETE /api/admin/movies/{id}/delete/", s.handleAdminDelete)

	var handler http.Handler = mux
	if *verbose {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL)
			mux.ServeHTTP(w, r)
		})
	}

	addr := ":" + *port
	log.Printf("mock movie api listening on %s (%d movies, admin@example.com / admin12345)", addr, len(s.movies))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("encode response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

func (s *state) sessionUser(r *http.Request) *user {
	c, err := r.Cookie("sessionid")
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	return s.users[id]
}

func (s *state) requireUser(w http.ResponseWriter, r *http.Request) *user {
	u := s.sessionUser(r)
	if u == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
	}
	return u
}

func (s *state) startSession(w http.ResponseWriter, u *user) {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)
	s.mu.Lock()
	s.sessions[token] = u.ID
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: token, Path: "/", HttpOnly: true})
}

func (s *state) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "username, email and a password of 8+ characters are required")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) {
			s.mu.Unlock()
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
	}
	u := &user{ID: s.nextID, Username: req.Username, Email: req.Email, Password: req.Password}
	s.nextID++
	s.users[u.ID] = u
	s.mu.Unlock()

	s.startSession(w, u)
	respond(w, http.StatusCreated, map[string]any{"user": u})
}

func (s *state) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	var found *user
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) && u.Password == req.Password {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.startSession(w, found)
	respond(w, http.StatusOK, map[string]any{"user": found})
}

func (s *state) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("sessionid"); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *state) listMovies() []movieOut {
	out := make([]movieOut, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, s.movieOut(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (s *state) handleListMovies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.listMovies()
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"movies": out})
}

func (s *state) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.ToLower(q.Get("q"))
	genre := q.Get("genre")
	yearMin, _ := strconv.Atoi(q.Get("year_min"))
	yearMax, _ := strconv.Atoi(q.Get("year_max"))
	ratingMin, _ := strconv.ParseFloat(q.Get("rating_min"), 64)

	s.mu.Lock()
	all := s.listMovies()
	s.mu.Unlock()

	out := make([]movieOut, 0, len(all))
	for _, m := range all {
		if query != "" && !strings.Contains(strings.ToLower(m.Title), query) &&
			!strings.Contains(strings.ToLower(m.Description), query) {
			continue
		}
		if genre != "" && m.Genre != genre {
			continue
		}
		if yearMin > 0 && m.Year < yearMin {
			continue
		}
		if yearMax > 0 && m.Year > yearMax {
			continue
		}
		if ratingMin > 0 && (m.AverageRating == nil || *m.AverageRating < ratingMin) {
			continue
		}
		out = append(out, m)
	}

	switch q.Get("sort") {
	case "year":
		sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	case "rating":
		sort.Slice(out, func(i, j int) bool {
			vi, vj := 0.0, 0.0
			if out[i].AverageRating != nil {
				vi = *out[i].AverageRating
			}
			if out[j].AverageRating != nil {
				vj = *out[j].AverageRating
			}
			return vi > vj
		})
	default:
		// listMovies already sorts by title
	}
	respond(w, http.StatusOK, map[string]any{"movies": out})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func (s *state) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	viewer := s.sessionUser(r)

	s.mu.Lock()
	m, found := s.movies[id]
	if !found {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	out := struct {
		movieOut
		UserRating   *int   `json:"user_rating,omitempty"`
		UserRatingID *int64 `json:"user_rating_id,omitempty"`
	}{movieOut: s.movieOut(m)}
	if viewer != nil {
		for _, rt := range s.ratings {
			if rt.MovieID == id && rt.UserID == viewer.ID {
				score := rt.Score
				rid := rt.RatingID
				out.UserRating = &score
				out.UserRatingID = &rid
				break
			}
		}
	}
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *state) handleMovieRatings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	s.mu.Lock()
	out := make([]*rating, 0)
	for _, rt := range s.ratings {
		if rt.MovieID == id {
			out = append(out, rt)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RatingID < out[j].RatingID })
	respond(w, http.StatusOK, map[string]any{"ratings": out})
}

func (s *state) userRatings(userID int64) []*rating {
	out := make([]*rating, 0)
	for _, rt := range s.ratings {
		if rt.UserID == userID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RatingID < out[j].RatingID })
	return out
}

func (s *state) handleMyRatings(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	s.mu.Lock()
	mine := s.userRatings(u.ID)
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"ratings": mine, "total_ratings": len(mine)})
}

func (s *state) handleMyRatingDetails(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	type detail struct {
		RatingID  int64    `json:"rating_id"`
		Score     int      `json:"score"`
		CreatedAt string   `json:"created_at"`
		Movie     movieOut `json:"movie"`
	}
	s.mu.Lock()
	mine := s.userRatings(u.ID)
	out := make([]detail, 0, len(mine))
	for _, rt := range mine {
		m, found := s.movies[rt.MovieID]
		if !found {
			continue
		}
		out = append(out, detail{RatingID: rt.RatingID, Score: rt.Score, CreatedAt: rt.CreatedAt, Movie: s.movieOut(m)})
	}
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"ratings": out})
}

func (s *state) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	movieID, ok := pathID(r, "movieID")
	if !ok {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	s.mu.Lock()
	if _, found := s.movies[movieID]; !found {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	// One rating per user per movie: a repeat create becomes an update.
	for _, rt := range s.ratings {
		if rt.MovieID == movieID && rt.UserID == u.ID {
			rt.Score = req.Rating
			out := *rt
			s.mu.Unlock()
			respond(w, http.StatusOK, map[string]any{"rating": out})
			return
		}
	}
	rt := &rating{
		RatingID:  s.nextID,
		MovieID:   movieID,
		UserID:    u.ID,
		Score:     req.Rating,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.nextID++
	s.ratings[rt.RatingID] = rt
	out := *rt
	s.mu.Unlock()
	respond(w, http.StatusCreated, map[string]any{"rating": out})
}

func (s *state) handleEditRating(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "rating not found")
		return
	}
	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	s.mu.Lock()
	rt, found := s.ratings[id]
	if !found || rt.UserID != u.ID {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "rating not found")
		return
	}
	rt.Score = req.Rating
	out := *rt
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"rating": out})
}

func (s *state) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "rating not found")
		return
	}

	s.mu.Lock()
	rt, found := s.ratings[id]
	if !found || rt.UserID != u.ID {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "rating not found")
		return
	}
	delete(s.ratings, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *state) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	type item struct {
		ID             int64    `json:"id"`
		PredictedScore float64  `json:"predicted_score"`
		Movie          movieOut `json:"movie"`
	}

	s.mu.Lock()
	mine := s.userRatings(u.ID)
	rated := make(map[int64]bool, len(mine))
	var sum int
	for _, rt := range mine {
		rated[rt.MovieID] = true
		sum += rt.Score
	}

	// With history: unrated movies scored around the user's own mean.
	// Without: top movies by global average, same payload shape.
	out := make([]item, 0)
	if len(mine) > 0 {
		mean := float64(sum) / float64(len(mine))
		for _, m := range s.listMovies() {
			if rated[m.ID] {
				continue
			}
			predicted := mean
			if m.AverageRating != nil {
				predicted = (mean + *m.AverageRating) / 2
			}
			if predicted > 5 {
				predicted = 5
			}
			out = append(out, item{ID: m.ID, PredictedScore: predicted, Movie: m})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PredictedScore > out[j].PredictedScore })
	} else {
		for _, m := range s.listMovies() {
			score := 0.0
			if m.AverageRating != nil {
				score = *m.AverageRating
			}
			out = append(out, item{ID: m.ID, PredictedScore: score, Movie: m})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PredictedScore > out[j].PredictedScore })
	}
	s.mu.Unlock()

	if len(out) > 10 {
		out = out[:10]
	}
	respond(w, http.StatusOK, map[string]any{"recommendations": out})
}

func (s *state) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	respond(w, http.StatusOK, u)
}

func (s *state) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "username and email are required")
		return
	}

	s.mu.Lock()
	u.Username = req.Username
	u.Email = req.Email
	if req.Password != "" {
		u.Password = req.Password
	}
	out := *u
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *state) requireAdmin(w http.ResponseWriter, r *http.Request) *user {
	u := s.requireUser(w, r)
	if u == nil {
		return nil
	}
	if !u.IsAdmin {
		respondError(w, http.StatusForbidden, "admin access required")
		return nil
	}
	return u
}

type movieInput struct {
	Title       string `json:"title"`
	Year        int    `json:"year"`
	Genre       string `json:"genre"`
	Director    string `json:"director"`
	Description string `json:"description"`
	PosterURL   string `json:"poster_url"`
}

func (in movieInput) validate() string {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Genre) == "" {
		return "title and genre are required"
	}
	if in.Year < 1888 || in.Year > 2100 {
		return "year must be between 1888 and 2100"
	}
	return ""
}

func (s *state) handleAdminAdd(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	var in movieInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg := in.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	s.mu.Lock()
	m := &movie{
		ID:          s.nextID,
		Title:       strings.TrimSpace(in.Title),
		Year:        in.Year,
		Genre:       strings.TrimSpace(in.Genre),
		Director:    strings.TrimSpace(in.Director),
		Description: strings.TrimSpace(in.Description),
		PosterURL:   strings.TrimSpace(in.PosterURL),
	}
	s.nextID++
	s.movies[m.ID] = m
	out := s.movieOut(m)
	s.mu.Unlock()
	respond(w, http.StatusCreated, out)
}

func (s *state) handleAdminEdit(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	var in movieInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg := in.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	s.mu.Lock()
	m, found := s.movies[id]
	if !found {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	m.Title = strings.TrimSpace(in.Title)
	m.Year = in.Year
	m.Genre = strings.TrimSpace(in.Genre)
	m.Director = strings.TrimSpace(in.Director)
	m.Description = strings.TrimSpace(in.Description)
	m.PosterURL = strings.TrimSpace(in.PosterURL)
	out := s.movieOut(m)
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *state) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}

	s.mu.Lock()
	if _, found := s.movies[id]; !found {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	delete(s.movies, id)
	for rid, rt := range s.ratings {
		if rt.MovieID == id {
			delete(s.ratings, rid)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
