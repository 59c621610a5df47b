package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/internal/usecase/minutes"
	"github.com/johnquangdev/meeting-minutes/pkg/jobcontext"
)

// StartWorkerPool starts the processing workers, the stale sweeper and, when
// a retention period is configured, the audio retention worker
func (s *Service) StartWorkerPool(ctx context.Context) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})
	s.workerCancel = cancel

	if s.logger != nil {
		s.logger.Info("🚀 Starting meeting worker pool",
			zap.Int("worker_count", s.cfg.Workers),
			zap.Int("queue_size", s.cfg.QueueSize),
		)
	}

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWg.Add(1)
		go s.processWorker(ctx, i)
	}

	s.workerWg.Add(1)
	go s.staleSweepWorker(ctx)

	if s.cfg.AudioRetentionDays > 0 {
		s.workerWg.Add(1)
		go s.retentionWorker(ctx)
	}

	return nil
}

// StopWorkerPool cancels in-flight jobs and waits for all workers to exit
func (s *Service) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool not running")
	}

	if s.logger != nil {
		s.logger.Info("🛑 Stopping meeting worker pool...")
	}

	close(s.workerStopChan)
	s.workerCancel()
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false

	if s.logger != nil {
		s.logger.Info("✅ Meeting worker pool stopped")
	}
	return nil
}

func (s *Service) processWorker(ctx context.Context, workerID int) {
	defer s.workerWg.Done()

	if s.logger != nil {
		s.logger.Info("👷 Worker started", zap.Int("worker_id", workerID))
	}

	for {
		select {
		case <-s.workerStopChan:
			if s.logger != nil {
				s.logger.Info("👷 Worker stopping", zap.Int("worker_id", workerID))
			}
			return

		case j := <-s.queue:
			jobCtx, cancel := jobcontext.JobBegin(ctx, j.meetingID, jobcontext.JobTypeProcess, workerID, s.cfg.JobTimeout)
			err := jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
				return s.process(ctx, j)
			})
			md := jobcontext.GetJobMetadata(jobCtx)
			cancel()

			if s.logger == nil {
				continue
			}
			if err != nil {
				s.logger.Error("❌ Meeting job failed",
					zap.String("meeting_id", j.meetingID.String()),
					zap.Int("worker_id", workerID),
					zap.Duration("elapsed", md.Elapsed),
					zap.Error(err),
				)
				continue
			}
			s.logger.Info("✅ Meeting job finished",
				zap.String("meeting_id", j.meetingID.String()),
				zap.Int("worker_id", workerID),
				zap.Duration("elapsed", md.Elapsed),
			)
		}
	}
}

// process runs the pipeline for one queued meeting and stores the outcome
func (s *Service) process(ctx context.Context, j job) (err error) {
	release, err := s.lock(ctx, j.meetingID)
	if err != nil {
		if errors.Is(err, ucerrors.ErrMeetingBusy) {
			if s.logger != nil {
				s.logger.Info("⏭️ Meeting already held by another worker", zap.String("meeting_id", j.meetingID.String()))
			}
			return nil
		}
		return err
	}
	defer release()

	m, err := s.load(ctx, j.meetingID)
	if err != nil {
		return err
	}
	if m.Status != entities.MeetingStatusProcessing {
		if s.logger != nil {
			s.logger.Info("⏭️ Meeting no longer processing",
				zap.String("meeting_id", m.ID.String()),
				zap.String("status", string(m.Status)),
			)
		}
		return nil
	}

	// a panic in the pipeline must still leave the meeting in error
	defer func() {
		if p := recover(); p != nil {
			err = s.fail(ctx, m, fmt.Errorf("panic recovered: %v", p))
		}
	}()

	data, err := s.readAudio(ctx, m)
	if err != nil {
		return s.fail(ctx, m, err)
	}

	if s.logger != nil {
		s.logger.Info("🤖 Producing minutes",
			zap.String("meeting_id", m.ID.String()),
			zap.Int("audio_bytes", len(data)),
			zap.Int("attempt", m.Attempts),
		)
	}

	result, err := s.processor.ProduceMinutesFromAudio(ctx, minutes.Audio{Data: data, MIMEType: m.AudioMIME}, m.Participants, m.Language, j.apiKey)
	if err != nil {
		return s.fail(ctx, m, err)
	}

	if err := m.MarkAsProcessed(result); err != nil {
		return err
	}
	if err := s.repo.Update(context.WithoutCancel(ctx), m); err != nil {
		return fmt.Errorf("failed to save minutes: %w", err)
	}
	return nil
}

// fail records cause on the meeting, keeping any partial transcript, and
// returns cause
func (s *Service) fail(ctx context.Context, m *entities.Meeting, cause error) error {
	partial, _ := ucerrors.PartialTranscript(cause)
	if err := m.MarkAsFailed(cause.Error(), partial); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.repo.Update(context.WithoutCancel(ctx), m); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to update meeting: %w", err))
	}
	return cause
}

func (s *Service) staleSweepWorker(ctx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return
		case <-ticker.C:
			if _, err := s.SweepStale(ctx); err != nil && s.logger != nil {
				s.logger.Error("❌ Stale sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) retentionWorker(ctx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return
		case <-ticker.C:
			cutoff := s.now().AddDate(0, 0, -s.cfg.AudioRetentionDays)
			if _, err := s.cleanupAudioBefore(ctx, cutoff, nil); err != nil && s.logger != nil {
				s.logger.Error("❌ Audio retention failed", zap.Error(err))
			}
		}
	}
}
