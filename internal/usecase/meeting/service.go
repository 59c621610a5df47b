// Package meeting runs the lifecycle of a recorded meeting: upload, background
// processing into minutes, refinement, sharing and audio retention.
package meeting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/internal/domain/repositories"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/storage"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/minutes"
)

// Processor is the part of the minutes pipeline the service drives
type Processor interface {
	ProduceMinutesFromAudio(ctx context.Context, rec minutes.Audio, participants []string, language, apiKey string) (*entities.Minutes, error)
	RefineMinutes(ctx context.Context, existing *entities.Minutes, instruction, language, apiKey string) (*entities.Minutes, error)
	RegenerateFlowchart(ctx context.Context, transcript, language, apiKey string) (*entities.FlowchartGraph, string, error)
}

// Config tunes the service and its background workers
type Config struct {
	Workers            int
	QueueSize          int
	StaleAfter         time.Duration
	SweepInterval      time.Duration
	AudioRetentionDays int
	StoragePrefix      string
	// DefaultAPIKey is used when a request carries no key of its own
	DefaultAPIKey string
	LockTTL       time.Duration
	JobTimeout    time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = c.StaleAfter
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	if c.StoragePrefix == "" {
		c.StoragePrefix = "recordings"
	}
}

// CreateInput describes a new recording upload
type CreateInput struct {
	Title        string
	Participants []string
	Language     string
	Visibility   entities.Visibility
	Audio        io.Reader
	AudioSize    int64
	AudioMIME    string
}

// ListInput pages through visible meetings
type ListInput struct {
	Status *entities.MeetingStatus
	Limit  int
	Offset int
}

type job struct {
	meetingID uuid.UUID
	apiKey    string
}

// Service implements meeting use cases
type Service struct {
	repo      repositories.MeetingRepository
	store     storage.ObjectStore
	locker    cache.Locker
	processor Processor
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	queue               chan job
	workerStopChan      chan struct{}
	workerCancel        context.CancelFunc
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService creates a meeting service. Jobs may be enqueued before the
// worker pool starts; they wait in the queue.
func NewService(
	repo repositories.MeetingRepository,
	store storage.ObjectStore,
	locker cache.Locker,
	processor Processor,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.setDefaults()
	if locker == nil {
		locker = cache.NewMemoryLocker(cache.NewMemoryStore())
	}
	return &Service{
		repo:      repo,
		store:     store,
		locker:    locker,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		queue:     make(chan job, cfg.QueueSize),
	}
}

func (s *Service) apiKey(requestKey string) (string, error) {
	if key := strings.TrimSpace(requestKey); key != "" {
		return key, nil
	}
	if s.cfg.DefaultAPIKey != "" {
		return s.cfg.DefaultAPIKey, nil
	}
	return "", ucerrors.ErrMissingCredential
}

// Create stores the recording, persists the meeting and queues it for
// processing. The returned meeting is in the processing state.
func (s *Service) Create(ctx context.Context, actor entities.Actor, in CreateInput, apiKey string) (*entities.Meeting, error) {
	key, err := s.apiKey(apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ucerrors.ErrInvalidInput)
	}
	if in.Visibility != "" && !in.Visibility.IsValid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", ucerrors.ErrInvalidInput, in.Visibility)
	}
	if in.Audio == nil || in.AudioSize <= 0 {
		return nil, ucerrors.ErrEmptyAudio
	}

	m := entities.NewMeeting(actor, in.Title, in.Participants, in.Language, in.Visibility)

	audioKey := storage.RecordingKey(s.cfg.StoragePrefix, m.ID, in.AudioMIME)
	if err := s.store.Save(ctx, audioKey, in.Audio, in.AudioSize, in.AudioMIME); err != nil {
		return nil, fmt.Errorf("%w: save recording: %w", ucerrors.ErrStorage, err)
	}
	m.AudioKey = &audioKey
	m.AudioSize = in.AudioSize
	m.AudioMIME = in.AudioMIME

	if err := s.repo.Create(ctx, m); err != nil {
		if delErr := s.store.Delete(ctx, audioKey); delErr != nil && s.logger != nil {
			s.logger.Warn("⚠️ Failed to remove orphaned recording", zap.String("key", audioKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("🎙️ Meeting created",
			zap.String("meeting_id", m.ID.String()),
			zap.Int64("audio_size", m.AudioSize),
			zap.String("language", m.Language),
		)
	}

	if err := s.begin(ctx, m); err != nil {
		return m, err
	}
	if err := s.enqueue(ctx, m, key); err != nil {
		return m, err
	}
	return m, nil
}

// begin moves the meeting to processing and persists it
func (s *Service) begin(ctx context.Context, m *entities.Meeting) error {
	if err := m.MarkAsProcessing(); err != nil {
		return fmt.Errorf("%w: %v", ucerrors.ErrInvalidTransition, err)
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	return nil
}

// enqueue hands the meeting to the workers. A full queue fails the attempt so
// it can be retried later.
func (s *Service) enqueue(ctx context.Context, m *entities.Meeting, apiKey string) error {
	select {
	case s.queue <- job{meetingID: m.ID, apiKey: apiKey}:
		return nil
	default:
	}

	if s.logger != nil {
		s.logger.Warn("⚠️ Processing queue full", zap.String("meeting_id", m.ID.String()))
	}
	if err := m.MarkAsFailed(ucerrors.ErrQueueFull.Error(), ""); err == nil {
		if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("failed to update meeting: %w", err)
		}
	}
	return ucerrors.ErrQueueFull
}

// Retry re-runs the pipeline from the stored audio of a failed meeting
func (s *Service) Retry(ctx context.Context, actor entities.Actor, id uuid.UUID, apiKey string) (*entities.Meeting, error) {
	key, err := s.apiKey(apiKey)
	if err != nil {
		return nil, err
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanManage(actor) {
		return nil, ucerrors.ErrForbidden
	}
	if m.Status != entities.MeetingStatusError {
		return nil, fmt.Errorf("%w: meeting is %s", ucerrors.ErrInvalidTransition, m.Status)
	}
	if !m.HasAudio() {
		return nil, ucerrors.ErrAudioMissing
	}

	// the lock only guards the state change; the worker takes its own
	release, err := s.lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	err = s.begin(ctx, m)
	release()
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, m, key); err != nil {
		return m, err
	}
	return m, nil
}

// Refine edits the minutes of a processed meeting following the instruction
func (s *Service) Refine(ctx context.Context, actor entities.Actor, id uuid.UUID, instruction, apiKey string) (*entities.Meeting, error) {
	key, err := s.apiKey(apiKey)
	if err != nil {
		return nil, err
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanManage(actor) {
		return nil, ucerrors.ErrForbidden
	}
	if !m.IsProcessed() || m.Minutes == nil {
		return nil, ucerrors.ErrNoMinutes
	}

	release, err := s.lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	refined, err := s.processor.RefineMinutes(ctx, m.Minutes, instruction, m.Language, key)
	if err != nil {
		return nil, err
	}

	m.Minutes = refined
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}
	return m, nil
}

// RegenerateFlowchart rebuilds the diagram of a processed meeting from its
// transcript
func (s *Service) RegenerateFlowchart(ctx context.Context, actor entities.Actor, id uuid.UUID, apiKey string) (*entities.Meeting, error) {
	key, err := s.apiKey(apiKey)
	if err != nil {
		return nil, err
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanManage(actor) {
		return nil, ucerrors.ErrForbidden
	}
	if !m.IsProcessed() || m.Minutes == nil || strings.TrimSpace(m.Minutes.FullTranscript) == "" {
		return nil, ucerrors.ErrNoMinutes
	}

	release, err := s.lock(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	_, text, err := s.processor.RegenerateFlowchart(ctx, m.Minutes.FullTranscript, m.Language, key)
	if err != nil {
		return nil, err
	}

	m.Minutes.Flowchart = text
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}
	return m, nil
}

// Get returns a meeting the actor may view
func (s *Service) Get(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Meeting, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanView(actor) {
		// hidden meetings look missing
		return nil, ucerrors.ErrMeetingNotFound
	}
	return m, nil
}

// List returns the meetings visible to the actor. Admins see every meeting
// of their company; a general admin sees all companies.
func (s *Service) List(ctx context.Context, actor entities.Actor, in ListInput) ([]*entities.Meeting, int64, error) {
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Offset < 0 {
		in.Offset = 0
	}

	filters := repositories.MeetingFilters{
		CompanyID: actor.CompanyID,
		Status:    in.Status,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	switch {
	case actor.Role == entities.RoleGeneralAdmin:
		filters.AllCompanies = true
	case actor.IsAdminOf(actor.CompanyID):
	default:
		filters.ViewerID = actor.UserID
	}

	meetings, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meetings: %w", err)
	}
	return meetings, total, nil
}

// Share grants a user of the same company read access
func (s *Service) Share(ctx context.Context, actor entities.Actor, id, userID uuid.UUID) (*entities.Meeting, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ucerrors.ErrInvalidInput)
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.CanManage(actor) {
		return nil, ucerrors.ErrForbidden
	}

	m.ShareWith(userID)
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}
	return m, nil
}

// Delete removes a meeting and its stored recording
func (s *Service) Delete(ctx context.Context, actor entities.Actor, id uuid.UUID) error {
	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !m.CanManage(actor) {
		return ucerrors.ErrForbidden
	}

	release, err := s.lock(ctx, m.ID)
	if err != nil {
		return err
	}
	defer release()

	if m.HasAudio() {
		if err := s.store.Delete(ctx, *m.AudioKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("failed to delete recording: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("🗑️ Meeting deleted", zap.String("meeting_id", m.ID.String()))
	}
	return nil
}

// CleanupAudio deletes recordings older than days. Company admins only touch
// their own company.
func (s *Service) CleanupAudio(ctx context.Context, actor entities.Actor, days int) (int64, error) {
	if actor.Role != entities.RoleGeneralAdmin && actor.Role != entities.RoleCompanyAdmin {
		return 0, ucerrors.ErrForbidden
	}
	if days < 1 {
		return 0, fmt.Errorf("%w: days must be at least 1", ucerrors.ErrInvalidInput)
	}

	scope := func(m *entities.Meeting) bool { return actor.IsAdminOf(m.CompanyID) }
	return s.cleanupAudioBefore(ctx, s.now().AddDate(0, 0, -days), scope)
}

func (s *Service) cleanupAudioBefore(ctx context.Context, cutoff time.Time, include func(*entities.Meeting) bool) (int64, error) {
	meetings, err := s.repo.FindWithAudioBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find recordings: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(meetings))
	for _, m := range meetings {
		if !m.HasAudio() || (include != nil && !include(m)) {
			continue
		}
		if err := s.store.Delete(ctx, *m.AudioKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			if s.logger != nil {
				s.logger.Warn("⚠️ Failed to delete recording",
					zap.String("meeting_id", m.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cleared, err := s.repo.ClearAudio(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to clear audio keys: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("🧹 Recordings removed",
			zap.Int64("count", cleared),
			zap.Time("cutoff", cutoff),
		)
	}
	return cleared, nil
}

// SweepStale fails meetings that have been processing longer than the stale
// window and are not held by a live worker
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	stale, err := s.repo.FindStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale meetings: %w", err)
	}

	swept := 0
	for _, m := range stale {
		ok, err := s.sweepOne(ctx, m.ID, cutoff)
		if err != nil {
			return swept, err
		}
		if ok {
			swept++
		}
	}

	if swept > 0 && s.logger != nil {
		s.logger.Warn("🧟 Stale meetings marked as failed", zap.Int("count", swept))
	}
	return swept, nil
}

// sweepOne fails a stale meeting under its lock. The row is reloaded after
// locking since a worker may have finished it since the scan.
func (s *Service) sweepOne(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return false, nil
	}
	defer release()

	m, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ucerrors.ErrMeetingNotFound) {
			return false, nil
		}
		return false, err
	}
	if !m.IsStale(cutoff) {
		return false, nil
	}
	if err := m.MarkAsFailed("processing timed out", ""); err != nil {
		return false, nil
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return false, fmt.Errorf("failed to update meeting: %w", err)
	}
	return true, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	if m == nil {
		return nil, ucerrors.ErrMeetingNotFound
	}
	return m, nil
}

// lock takes the per-meeting lock and returns its release func
func (s *Service) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := cache.MeetingLockKey(id)
	token, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ucerrors.ErrMeetingBusy
		}
		return nil, fmt.Errorf("%w: %w", ucerrors.ErrLockUnavailable, err)
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil && s.logger != nil {
			s.logger.Warn("⚠️ Failed to release meeting lock", zap.String("meeting_id", id.String()), zap.Error(err))
		}
	}, nil
}

func (s *Service) readAudio(ctx context.Context, m *entities.Meeting) ([]byte, error) {
	if !m.HasAudio() {
		return nil, ucerrors.ErrAudioMissing
	}
	rc, err := s.store.Open(ctx, *m.AudioKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ucerrors.ErrAudioMissing
		}
		return nil, fmt.Errorf("%w: open recording: %w", ucerrors.ErrStorage, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if m.AudioSize > 0 {
		buf.Grow(int(m.AudioSize))
	}
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("%w: read recording: %w", ucerrors.ErrStorage, err)
	}
	return buf.Bytes(), nil
}
