package meeting

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/internal/domain/repositories"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/storage"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/minutes"
)

type fakeRepo struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]entities.Meeting
	filters  repositories.MeetingFilters
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{meetings: map[uuid.UUID]entities.Meeting{}}
}

func clone(m entities.Meeting) *entities.Meeting {
	if m.Minutes != nil {
		mins := *m.Minutes
		m.Minutes = &mins
	}
	return &m
}

func (r *fakeRepo) Create(_ context.Context, m *entities.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[m.ID] = *clone(*m)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (r *fakeRepo) Update(_ context.Context, m *entities.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[m.ID] = *clone(*m)
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.meetings, id)
	return nil
}

func (r *fakeRepo) List(_ context.Context, f repositories.MeetingFilters) ([]*entities.Meeting, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = f
	var out []*entities.Meeting
	for _, m := range r.meetings {
		out = append(out, clone(m))
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) FindStaleProcessing(_ context.Context, before time.Time) ([]*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Meeting
	for _, m := range r.meetings {
		if m.IsStale(before) {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (r *fakeRepo) FindWithAudioBefore(_ context.Context, before time.Time) ([]*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Meeting
	for _, m := range r.meetings {
		if m.HasAudio() && m.CreatedAt.Before(before) && m.Status != entities.MeetingStatusProcessing {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (r *fakeRepo) ClearAudio(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if m, ok := r.meetings[id]; ok {
			m.AudioKey = nil
			r.meetings[id] = m
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) get(t *testing.T, id uuid.UUID) *entities.Meeting {
	t.Helper()
	m, _ := r.FindByID(context.Background(), id)
	if m == nil {
		t.Fatalf("meeting %s missing", id)
	}
	return m
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeProcessor struct {
	mu      sync.Mutex
	keys    []string
	produce func(rec minutes.Audio) (*entities.Minutes, error)
}

func (p *fakeProcessor) ProduceMinutesFromAudio(_ context.Context, rec minutes.Audio, _ []string, _ string, apiKey string) (*entities.Minutes, error) {
	p.mu.Lock()
	p.keys = append(p.keys, apiKey)
	p.mu.Unlock()
	if p.produce != nil {
		return p.produce(rec)
	}
	return &entities.Minutes{ExecutiveSummary: "ok", FullTranscript: string(rec.Data)}, nil
}

func (p *fakeProcessor) RefineMinutes(_ context.Context, existing *entities.Minutes, instruction, _ string, _ string) (*entities.Minutes, error) {
	refined := *existing
	refined.ExecutiveSummary = instruction
	return &refined, nil
}

func (p *fakeProcessor) RegenerateFlowchart(_ context.Context, transcript, _ string, _ string) (*entities.FlowchartGraph, string, error) {
	return &entities.FlowchartGraph{}, "graph TD\n    %% " + transcript, nil
}

type fixture struct {
	svc   *Service
	repo  *fakeRepo
	store *fakeStore
	proc  *fakeProcessor
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{repo: newFakeRepo(), store: newFakeStore(), proc: &fakeProcessor{}}
	f.svc = NewService(f.repo, f.store, nil, f.proc, cfg, nil)
	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	if err := f.svc.StartWorkerPool(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { f.svc.StopWorkerPool() })
}

func waitStatus(t *testing.T, repo *fakeRepo, id uuid.UUID, want entities.MeetingStatus) *entities.Meeting {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m := repo.get(t, id); m.Status == want {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("meeting never reached %s (now %s)", want, repo.get(t, id).Status)
	return nil
}

var (
	company = uuid.New()
	owner   = entities.Actor{UserID: uuid.New(), CompanyID: company, Role: entities.RoleUser}
	peer    = entities.Actor{UserID: uuid.New(), CompanyID: company, Role: entities.RoleUser}
	admin   = entities.Actor{UserID: uuid.New(), CompanyID: company, Role: entities.RoleCompanyAdmin}
	outside = entities.Actor{UserID: uuid.New(), CompanyID: uuid.New(), Role: entities.RoleCompanyAdmin}
)

func upload(data string) CreateInput {
	return CreateInput{
		Title:        "Weekly sync",
		Participants: []string{"Ada", "Linus"},
		Language:     "en",
		Audio:        bytes.NewReader([]byte(data)),
		AudioSize:    int64(len(data)),
		AudioMIME:    "audio/webm",
	}
}

func TestCreate_ProcessesInBackground(t *testing.T) {
	f := newFixture(t, Config{Workers: 2})
	f.run(t)

	m, err := f.svc.Create(context.Background(), owner, upload("hello"), "user-key")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if m.Status != entities.MeetingStatusProcessing || m.Attempts != 1 {
		t.Fatalf("unexpected meeting after create: %s attempts=%d", m.Status, m.Attempts)
	}
	if f.store.count() != 1 {
		t.Fatalf("recording not stored")
	}

	done := waitStatus(t, f.repo, m.ID, entities.MeetingStatusProcessed)
	if done.Minutes == nil || done.Minutes.FullTranscript != "hello" {
		t.Fatalf("unexpected minutes %+v", done.Minutes)
	}
	if done.ProcessedAt == nil {
		t.Fatalf("processed_at not set")
	}
	if f.proc.keys[0] != "user-key" {
		t.Fatalf("pipeline got key %q", f.proc.keys[0])
	}
}

func TestCreate_MissingCredential(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.svc.Create(context.Background(), owner, upload("hello"), " ")
	if !errors.Is(err, ucerrors.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if f.store.count() != 0 {
		t.Fatalf("recording stored without credential")
	}
}

func TestCreate_DefaultKey(t *testing.T) {
	f := newFixture(t, Config{DefaultAPIKey: "server-key"})
	f.run(t)

	m, err := f.svc.Create(context.Background(), owner, upload("hi"), "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	waitStatus(t, f.repo, m.ID, entities.MeetingStatusProcessed)
	if f.proc.keys[0] != "server-key" {
		t.Fatalf("pipeline got key %q", f.proc.keys[0])
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, Config{})

	in := upload("")
	if _, err := f.svc.Create(context.Background(), owner, in, "k"); !errors.Is(err, ucerrors.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}

	in = upload("x")
	in.Title = "  "
	if _, err := f.svc.Create(context.Background(), owner, in, "k"); !errors.Is(err, ucerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	in = upload("x")
	in.Visibility = "public"
	if _, err := f.svc.Create(context.Background(), owner, in, "k"); !errors.Is(err, ucerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for visibility, got %v", err)
	}
}

func TestCreate_QueueFull(t *testing.T) {
	f := newFixture(t, Config{QueueSize: 1})

	if _, err := f.svc.Create(context.Background(), owner, upload("a"), "k"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	m, err := f.svc.Create(context.Background(), owner, upload("b"), "k")
	if !errors.Is(err, ucerrors.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := f.repo.get(t, m.ID); got.Status != entities.MeetingStatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
}

func TestProcess_ExtractionFailureKeepsTranscript(t *testing.T) {
	f := newFixture(t, Config{})
	f.proc.produce = func(minutes.Audio) (*entities.Minutes, error) {
		return nil, &ucerrors.ExtractionError{Transcript: "partial words", Err: ucerrors.ErrMalformedResponse}
	}
	f.run(t)

	m, err := f.svc.Create(context.Background(), owner, upload("audio"), "k")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	failed := waitStatus(t, f.repo, m.ID, entities.MeetingStatusError)
	if failed.Minutes == nil || failed.Minutes.FullTranscript != "partial words" {
		t.Fatalf("partial transcript not kept: %+v", failed.Minutes)
	}
	if failed.LastError == nil || *failed.LastError == "" {
		t.Fatalf("last error not recorded")
	}
}

func TestProcess_PanicMarksError(t *testing.T) {
	f := newFixture(t, Config{})
	f.proc.produce = func(minutes.Audio) (*entities.Minutes, error) {
		panic("pipeline exploded")
	}
	f.run(t)

	m, err := f.svc.Create(context.Background(), owner, upload("audio"), "k")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	waitStatus(t, f.repo, m.ID, entities.MeetingStatusError)
}

func TestRetry(t *testing.T) {
	f := newFixture(t, Config{})
	calls := 0
	f.proc.produce = func(rec minutes.Audio) (*entities.Minutes, error) {
		calls++
		if calls == 1 {
			return nil, ucerrors.ErrRemoteExhausted
		}
		return &entities.Minutes{ExecutiveSummary: "second time"}, nil
	}
	f.run(t)

	m, _ := f.svc.Create(context.Background(), owner, upload("audio"), "k")
	waitStatus(t, f.repo, m.ID, entities.MeetingStatusError)

	if _, err := f.svc.Retry(context.Background(), peer, m.ID, "k"); !errors.Is(err, ucerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Retry(context.Background(), owner, m.ID, ""); !errors.Is(err, ucerrors.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}

	retried, err := f.svc.Retry(context.Background(), owner, m.ID, "k")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", retried.Attempts)
	}

	done := waitStatus(t, f.repo, m.ID, entities.MeetingStatusProcessed)
	if done.Minutes.ExecutiveSummary != "second time" || done.LastError != nil {
		t.Fatalf("unexpected meeting after retry: %+v", done)
	}

	if _, err := f.svc.Retry(context.Background(), owner, m.ID, "k"); !errors.Is(err, ucerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on processed meeting, got %v", err)
	}
}

func TestRetry_AudioGone(t *testing.T) {
	f := newFixture(t, Config{})
	m := entities.NewMeeting(owner, "old", nil, "en", entities.VisibilityPrivate)
	m.Status = entities.MeetingStatusError
	f.repo.Create(context.Background(), m)

	if _, err := f.svc.Retry(context.Background(), owner, m.ID, "k"); !errors.Is(err, ucerrors.ErrAudioMissing) {
		t.Fatalf("expected ErrAudioMissing, got %v", err)
	}
}

func processedMeeting(t *testing.T, f *fixture, visibility entities.Visibility) *entities.Meeting {
	t.Helper()
	m := entities.NewMeeting(owner, "done", []string{"Ada"}, "en", visibility)
	key := "recordings/" + m.ID.String() + ".webm"
	m.AudioKey = &key
	f.store.objects[key] = []byte("audio")
	m.Status = entities.MeetingStatusProcessed
	m.Minutes = &entities.Minutes{ExecutiveSummary: "summary", FullTranscript: "we agreed", Flowchart: "graph TD"}
	f.repo.Create(context.Background(), m)
	return m
}

func TestRefine(t *testing.T) {
	f := newFixture(t, Config{})
	m := processedMeeting(t, f, entities.VisibilityPrivate)

	refined, err := f.svc.Refine(context.Background(), owner, m.ID, "shorter", "k")
	if err != nil {
		t.Fatalf("refine failed: %v", err)
	}
	if refined.Minutes.ExecutiveSummary != "shorter" || refined.Minutes.FullTranscript != "we agreed" {
		t.Fatalf("unexpected minutes %+v", refined.Minutes)
	}
	if f.repo.get(t, m.ID).Minutes.ExecutiveSummary != "shorter" {
		t.Fatalf("refined minutes not saved")
	}

	pending := entities.NewMeeting(owner, "p", nil, "en", "")
	f.repo.Create(context.Background(), pending)
	if _, err := f.svc.Refine(context.Background(), owner, pending.ID, "x", "k"); !errors.Is(err, ucerrors.ErrNoMinutes) {
		t.Fatalf("expected ErrNoMinutes, got %v", err)
	}
}

func TestRegenerateFlowchart(t *testing.T) {
	f := newFixture(t, Config{})
	m := processedMeeting(t, f, entities.VisibilityPrivate)

	updated, err := f.svc.RegenerateFlowchart(context.Background(), admin, m.ID, "k")
	if err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if updated.Minutes.Flowchart != "graph TD\n    %% we agreed" {
		t.Fatalf("unexpected flowchart %q", updated.Minutes.Flowchart)
	}
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t, Config{})
	private := processedMeeting(t, f, entities.VisibilityPrivate)
	shared := processedMeeting(t, f, entities.VisibilityCompany)

	if _, err := f.svc.Get(context.Background(), peer, private.ID); !errors.Is(err, ucerrors.ErrMeetingNotFound) {
		t.Fatalf("peer should not see private meeting, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), admin, private.ID); err != nil {
		t.Fatalf("admin should see company meeting: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), peer, shared.ID); err != nil {
		t.Fatalf("peer should see company-visible meeting: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), outside, shared.ID); !errors.Is(err, ucerrors.ErrMeetingNotFound) {
		t.Fatalf("other company should not see meeting, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), owner, uuid.New()); !errors.Is(err, ucerrors.ErrMeetingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestShare(t *testing.T) {
	f := newFixture(t, Config{})
	m := processedMeeting(t, f, entities.VisibilityPrivate)

	if _, err := f.svc.Share(context.Background(), peer, m.ID, peer.UserID); !errors.Is(err, ucerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	shared, err := f.svc.Share(context.Background(), owner, m.ID, peer.UserID)
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	if shared.Visibility != entities.VisibilityShared {
		t.Fatalf("expected shared visibility, got %s", shared.Visibility)
	}
	if _, err := f.svc.Get(context.Background(), peer, m.ID); err != nil {
		t.Fatalf("peer should see shared meeting: %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t, Config{})

	if _, _, err := f.svc.List(context.Background(), owner, ListInput{Limit: 500}); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if f.repo.filters.ViewerID != owner.UserID || f.repo.filters.Limit != 20 {
		t.Fatalf("unexpected user filters %+v", f.repo.filters)
	}

	f.svc.List(context.Background(), admin, ListInput{})
	if f.repo.filters.ViewerID != uuid.Nil || f.repo.filters.AllCompanies {
		t.Fatalf("unexpected admin filters %+v", f.repo.filters)
	}

	f.svc.List(context.Background(), entities.Actor{UserID: uuid.New(), Role: entities.RoleGeneralAdmin}, ListInput{})
	if !f.repo.filters.AllCompanies {
		t.Fatalf("general admin should list all companies")
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t, Config{})
	m := processedMeeting(t, f, entities.VisibilityCompany)

	if err := f.svc.Delete(context.Background(), peer, m.ID); !errors.Is(err, ucerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), owner, m.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if f.store.count() != 0 {
		t.Fatalf("recording not deleted")
	}
	if got, _ := f.repo.FindByID(context.Background(), m.ID); got != nil {
		t.Fatalf("meeting not deleted")
	}
}

func TestCleanupAudio(t *testing.T) {
	f := newFixture(t, Config{})
	old := processedMeeting(t, f, entities.VisibilityPrivate)
	stored := f.repo.get(t, old.ID)
	stored.CreatedAt = time.Now().AddDate(0, 0, -40)
	f.repo.Update(context.Background(), stored)
	fresh := processedMeeting(t, f, entities.VisibilityPrivate)

	if _, err := f.svc.CleanupAudio(context.Background(), owner, 30); !errors.Is(err, ucerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.CleanupAudio(context.Background(), admin, 0); !errors.Is(err, ucerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if n, _ := f.svc.CleanupAudio(context.Background(), outside, 30); n != 0 {
		t.Fatalf("admin of another company cleared %d recordings", n)
	}

	n, err := f.svc.CleanupAudio(context.Background(), admin, 30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cleared, got %d", n)
	}
	if f.repo.get(t, old.ID).HasAudio() || !f.repo.get(t, fresh.ID).HasAudio() {
		t.Fatalf("wrong recordings cleared")
	}
}

func TestSweepStale(t *testing.T) {
	f := newFixture(t, Config{StaleAfter: time.Hour})
	m := entities.NewMeeting(owner, "stuck", nil, "en", "")
	m.MarkAsProcessing()
	started := time.Now().Add(-2 * time.Hour)
	m.ProcessingStartedAt = &started
	f.repo.Create(context.Background(), m)

	n, err := f.svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 || f.repo.get(t, m.ID).Status != entities.MeetingStatusError {
		t.Fatalf("stale meeting not failed (swept %d)", n)
	}
}

// scanRaceRepo runs afterScan once the stale scan has returned its snapshot
type scanRaceRepo struct {
	*fakeRepo
	afterScan func()
}

func (r *scanRaceRepo) FindStaleProcessing(ctx context.Context, before time.Time) ([]*entities.Meeting, error) {
	out, err := r.fakeRepo.FindStaleProcessing(ctx, before)
	r.afterScan()
	return out, err
}

func TestSweepStale_SkipsMeetingFinishedAfterScan(t *testing.T) {
	repo := &scanRaceRepo{fakeRepo: newFakeRepo()}
	svc := NewService(repo, newFakeStore(), nil, &fakeProcessor{}, Config{StaleAfter: time.Hour}, nil)

	m := entities.NewMeeting(owner, "slow", nil, "en", "")
	m.MarkAsProcessing()
	started := time.Now().Add(-2 * time.Hour)
	m.ProcessingStartedAt = &started
	repo.Create(context.Background(), m)

	repo.afterScan = func() {
		done := repo.get(t, m.ID)
		if err := done.MarkAsProcessed(&entities.Minutes{ExecutiveSummary: "finished"}); err != nil {
			t.Fatalf("mark processed: %v", err)
		}
		repo.Update(context.Background(), done)
	}

	n, err := svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	got := repo.get(t, m.ID)
	if n != 0 || got.Status != entities.MeetingStatusProcessed {
		t.Fatalf("finished meeting overwritten: swept %d, status %s", n, got.Status)
	}
	if got.Minutes == nil || got.Minutes.ExecutiveSummary != "finished" {
		t.Fatalf("minutes lost: %+v", got.Minutes)
	}
}

func TestWorkerPool_StartStop(t *testing.T) {
	f := newFixture(t, Config{})
	if err := f.svc.StopWorkerPool(); err == nil {
		t.Fatalf("expected error stopping idle pool")
	}
	if err := f.svc.StartWorkerPool(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.svc.StartWorkerPool(context.Background()); err == nil {
		t.Fatalf("expected error starting twice")
	}
	if err := f.svc.StopWorkerPool(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
