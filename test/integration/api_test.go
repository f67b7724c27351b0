package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/embeddings"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/batchops"
	"github.com/Ramsey-B/clover/pkg/routes/duplicategroup"
	"github.com/Ramsey-B/clover/pkg/scoring"
)

const testToken = "integration-token"

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// In-memory repositories. The matching batch runs on a background goroutine,
// so every fake is guarded by a mutex.

type memProgramRepo struct {
	mu          sync.Mutex
	programs    map[string]*models.SupportProgram
	assignments map[string]string
}

func newMemProgramRepo(programs ...models.SupportProgram) *memProgramRepo {
	r := &memProgramRepo{
		programs:    make(map[string]*models.SupportProgram),
		assignments: make(map[string]string),
	}
	for i := range programs {
		p := programs[i]
		r.programs[p.ID] = &p
	}
	return r
}

func (r *memProgramRepo) ListLive(_ context.Context) ([]models.SupportProgram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SupportProgram
	for _, p := range r.programs {
		if p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProgramRepo) ListNeedingEmbedding(_ context.Context, limit int) ([]models.SupportProgram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SupportProgram
	for _, p := range r.programs {
		if p.NeedsEmbedding && p.DeletedAt == nil {
			out = append(out, *p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memProgramRepo) ClearNeedsEmbedding(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.programs[id]; ok {
		p.NeedsEmbedding = false
	}
	return nil
}

func (r *memProgramRepo) ListByGroup(_ context.Context, groupID string) ([]models.SupportProgram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SupportProgram
	for id, gid := range r.assignments {
		if gid == groupID {
			out = append(out, *r.programs[id])
		}
	}
	return out, nil
}

func (r *memProgramRepo) AssignGroup(_ context.Context, groupID string, memberIDs []string, canonicalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, gid := range r.assignments {
		if gid == groupID {
			delete(r.assignments, id)
		}
	}
	for _, id := range memberIDs {
		r.assignments[id] = groupID
	}
	if p, ok := r.programs[canonicalID]; ok {
		p.IsCanonical = true
	}
	return nil
}

func (r *memProgramRepo) CountLive(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.programs {
		if p.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

type groupKey struct {
	name    string
	year    int
	hasYear bool
}

type memGroupRepo struct {
	mu    sync.Mutex
	byID  map[string]*models.DuplicateGroup
	byKey map[groupKey]string
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{
		byID:  make(map[string]*models.DuplicateGroup),
		byKey: make(map[groupKey]string),
	}
}

func keyOf(name string, year *int) groupKey {
	k := groupKey{name: name}
	if year != nil {
		k.year = *year
		k.hasYear = true
	}
	return k
}

func (r *memGroupRepo) Create(_ context.Context, group *models.DuplicateGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := *group
	r.byID[g.ID] = &g
	r.byKey[keyOf(g.NormalizedName, g.ProjectYear)] = g.ID
	return nil
}

func (r *memGroupRepo) Update(_ context.Context, group *models.DuplicateGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := *group
	r.byID[g.ID] = &g
	return nil
}

func (r *memGroupRepo) Get(_ context.Context, id string) (*models.DuplicateGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return nil, httperror.NewHTTPError(404, "group not found")
	}
	out := *g
	return &out, nil
}

func (r *memGroupRepo) GetByKey(_ context.Context, normalizedName string, projectYear *int) (*models.DuplicateGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[keyOf(normalizedName, projectYear)]
	if !ok {
		return nil, nil
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *memGroupRepo) List(_ context.Context, status models.ReviewStatus, page, perPage int) ([]models.DuplicateGroup, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DuplicateGroup
	for _, g := range r.byID {
		if status == "" || g.ReviewStatus == status {
			out = append(out, *g)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memGroupRepo) CountsByStatus(_ context.Context) (map[models.ReviewStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.ReviewStatus]int64)
	for _, g := range r.byID {
		counts[g.ReviewStatus]++
	}
	return counts, nil
}

func (r *memGroupRepo) SetReviewStatus(_ context.Context, id string, status models.ReviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok {
		return httperror.NewHTTPError(404, "group not found")
	}
	g.ReviewStatus = status
	return nil
}

func (r *memGroupRepo) ReassignCanonical(_ context.Context, groupID, programID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[groupID]
	if !ok {
		return httperror.NewHTTPError(404, "group not found")
	}
	g.CanonicalProjectID = programID
	return nil
}

func (r *memGroupRepo) Dissolve(_ context.Context, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[groupID]; !ok {
		return httperror.NewHTTPError(404, "group not found")
	}
	g := r.byID[groupID]
	delete(r.byKey, keyOf(g.NormalizedName, g.ProjectYear))
	delete(r.byID, groupID)
	return nil
}

type memCompanyRepo struct {
	mu        sync.Mutex
	companies []models.Company
	members   map[string]bool
}

func (r *memCompanyRepo) ListActive(_ context.Context) ([]models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Company, len(r.companies))
	copy(out, r.companies)
	return out, nil
}

func (r *memCompanyRepo) HasMember(_ context.Context, companyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[companyID], nil
}

func (r *memCompanyRepo) CountAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.companies)), nil
}

type memPreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]*models.MatchPreference
}

func (r *memPreferenceRepo) GetLatest(_ context.Context, companyID string) (*models.MatchPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefs[companyID], nil
}

func (r *memPreferenceRepo) CountCompaniesWithPreferences(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.prefs)), nil
}

type memResultRepo struct {
	mu       sync.Mutex
	inserted []models.MatchingResult
}

func (r *memResultRepo) InsertBatch(_ context.Context, results []models.MatchingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, results...)
	return nil
}

func (r *memResultRepo) CountAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.inserted)), nil
}

func (r *memResultRepo) CountSince(_ context.Context, _ int) (int64, error) {
	return r.CountAll(context.Background())
}

func (r *memResultRepo) results() []models.MatchingResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MatchingResult, len(r.inserted))
	copy(out, r.inserted)
	return out
}

type memEmbeddingRepo struct {
	mu      sync.Mutex
	records map[string]*models.EmbeddingRecord
}

func (r *memEmbeddingRepo) Upsert(_ context.Context, record *models.EmbeddingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = make(map[string]*models.EmbeddingRecord)
	}
	copied := *record
	r.records[record.SourceType+"/"+record.SourceID] = &copied
	return nil
}

func (r *memEmbeddingRepo) Get(_ context.Context, sourceType, sourceID string) (*models.EmbeddingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[sourceType+"/"+sourceID]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (r *memEmbeddingRepo) CountBySourceType(_ context.Context, sourceType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key := range r.records {
		if len(key) > len(sourceType) && key[:len(sourceType)] == sourceType {
			n++
		}
	}
	return n, nil
}

func (r *memEmbeddingRepo) CosineSimilarity(_ context.Context, _, _, _, _ string) (float64, bool, error) {
	return 0, false, nil
}

type memRunRepo struct {
	mu   sync.Mutex
	runs map[string]*models.BatchRun
}

func (r *memRunRepo) Create(_ context.Context, run *models.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]*models.BatchRun)
	}
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *memRunRepo) Finish(_ context.Context, run *models.BatchRun) error {
	return r.Create(context.Background(), run)
}

func (r *memRunRepo) Get(_ context.Context, id string) (*models.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, httperror.NewHTTPError(404, "batch run not found")
	}
	copied := *run
	return &copied, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// testApp wires the full API surface the way cmd/api does, with the
// persistence layer swapped for the in-memory fakes above.
type testApp struct {
	e        *echo.Echo
	programs *memProgramRepo
	groups   *memGroupRepo
	results  *memResultRepo
	runs     *memRunRepo
}

func newTestApp(programs *memProgramRepo, companies *memCompanyRepo, prefs *memPreferenceRepo) *testApp {
	log := testLogger()
	emitter := events.NewEmitter(nil, log)

	groups := newMemGroupRepo()
	store := &memEmbeddingRepo{}
	results := &memResultRepo{}
	runs := &memRunRepo{}

	groupSvc := grouping.NewService(log, programs, groups, emitter, grouping.DefaultConfig())
	embedSvc := embeddings.NewService(log, programs, store, stubEmbedder{})
	scoreSvc := scoring.NewService(log, companies, prefs, programs, results, store, scoring.DefaultWeights())
	worker := batch.NewWorker(log, runs, emitter)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(log)
	e.Use(middleware.Context())

	api := e.Group("/api/v1", middleware.Bearer(testToken))
	duplicategroup.NewHandler(groupSvc, log).RegisterRoutes(api.Group("/duplicate-groups"))
	batchops.NewHandler(embedSvc, scoreSvc, companies, runs, worker, batch.Config{BatchSize: 10}, log).
		RegisterRoutes(api)

	return &testApp{e: e, programs: programs, groups: groups, results: results, runs: runs}
}

func (a *testApp) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+testToken)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func yearPtr(y int) *int { return &y }

func activeProgram(id, name, organizer string, year *int) models.SupportProgram {
	now := time.Now().UTC()
	return models.SupportProgram{
		ID:             id,
		Name:           name,
		Organizer:      organizer,
		Category:       "기술",
		Status:         models.ProgramStatusActive,
		ProjectYear:    year,
		NeedsEmbedding: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAuthenticationGate(t *testing.T) {
	programs := newMemProgramRepo(
		activeProgram("p1", "[2024년] 창업도약패키지", "중소벤처기업부", yearPtr(2024)),
		activeProgram("p2", "２０２４년 창업도약패키지", "중소벤처기업부", yearPtr(2024)),
	)
	app := newTestApp(programs, &memCompanyRepo{}, &memPreferenceRepo{})

	// No token: rejected before the grouper runs, so no group appears.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, app.groups.byID)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer wrong-token")
	rec = httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, app.groups.byID)

	rec2 := app.request(t, http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestReviewWorkflow(t *testing.T) {
	programs := newMemProgramRepo(
		activeProgram("p1", "[2024년] 수출바우처 사업", "중소벤처기업부", yearPtr(2024)),
		activeProgram("p2", "２０２４년 수출바우처　사업", "중소벤처기업부", yearPtr(2024)),
		activeProgram("p3", "청년창업 지원사업", "서울특별시", yearPtr(2024)),
	)
	app := newTestApp(programs, &memCompanyRepo{}, &memPreferenceRepo{})

	rec := app.request(t, http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[grouping.Summary](t, rec)
	assert.Equal(t, 3, summary.ProgramsScanned)
	assert.Equal(t, 1, summary.GroupsCreated)

	rec = app.request(t, http.MethodGet, "/api/v1/duplicate-groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.GroupListPage](t, rec)
	require.Len(t, page.Items, 1)
	group := page.Items[0]
	assert.Equal(t, 2, group.SourceCount)

	t.Run("ConfirmSticks", func(t *testing.T) {
		rec := app.request(t, http.MethodPatch, "/api/v1/duplicate-groups/"+group.ID,
			map[string]any{"review_status": "confirmed"})
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decode[models.DuplicateGroup](t, rec)
		assert.Equal(t, models.ReviewStatusConfirmed, updated.ReviewStatus)

		// A rerun over the unchanged catalog must not demote the decision.
		rec = app.request(t, http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.request(t, http.MethodGet, "/api/v1/duplicate-groups?status=confirmed", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[models.GroupListPage](t, rec)
		require.Len(t, page.Items, 1)
		assert.Equal(t, models.ReviewStatusConfirmed, page.Items[0].ReviewStatus)
	})

	t.Run("RejectSuppresses", func(t *testing.T) {
		rec := app.request(t, http.MethodPatch, "/api/v1/duplicate-groups/"+group.ID,
			map[string]any{"review_status": "rejected"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.request(t, http.MethodPost, "/api/v1/duplicate-groups/regroup", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		summary := decode[grouping.Summary](t, rec)
		assert.Equal(t, 1, summary.GroupsSkipped)

		got, err := app.groups.Get(context.Background(), group.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusRejected, got.ReviewStatus)
	})

	t.Run("DissolveRemovesGroup", func(t *testing.T) {
		rec := app.request(t, http.MethodDelete, "/api/v1/duplicate-groups/"+group.ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.request(t, http.MethodDelete, "/api/v1/duplicate-groups/"+group.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMatchingPipeline(t *testing.T) {
	programs := newMemProgramRepo(
		activeProgram("p1", "기술개발 지원사업", "중소벤처기업부", yearPtr(2024)),
		activeProgram("p2", "수출바우처 지원사업", "산업통상자원부", yearPtr(2024)),
	)
	companies := &memCompanyRepo{
		companies: []models.Company{{ID: "c1", Name: "클로버테크"}},
		members:   map[string]bool{"c1": true},
	}
	prefs := &memPreferenceRepo{prefs: map[string]*models.MatchPreference{
		"c1": {
			CompanyID:       "c1",
			Categories:      []string{"기술"},
			ExcludeKeywords: []string{"수출"},
		},
	}}
	app := newTestApp(programs, companies, prefs)

	// Two programs plus the company profile backfill.
	rec := app.request(t, http.MethodPost, "/api/v1/embeddings/generate", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	embedSummary := decode[batch.Summary](t, rec)
	assert.Equal(t, 3, embedSummary.Processed)
	assert.Equal(t, 3, embedSummary.SuccessCount)

	rec = app.request(t, http.MethodPost, "/api/v1/matching/batch", map[string]any{})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[batchops.RunMatchingResponse](t, rec)
	require.True(t, resp.Accepted)
	require.NotEmpty(t, resp.RunID)

	run := waitForRun(t, app, resp.RunID)
	assert.Equal(t, models.BatchStatusCompleted, run.Status)
	assert.Equal(t, 1, run.SuccessCount)
	assert.Equal(t, 0, run.ErrorCount)

	// The excluded keyword program must not survive the hard filter.
	results := app.results.results()
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ProjectID)

	rec = app.request(t, http.MethodGet, "/api/v1/matching/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func waitForRun(t *testing.T, app *testApp, id string) *models.BatchRun {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := app.request(t, http.MethodGet, "/api/v1/runs/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		run := decode[models.BatchRun](t, rec)
		if run.Status != models.BatchStatusRunning {
			return &run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch run never finished")
	return nil
}
