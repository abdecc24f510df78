package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// DefaultSubmitWorkers сколько активов сохраняется параллельно
const DefaultSubmitWorkers = 4

// SessionView снимок сессии для отображения
type SessionView struct {
	ID           uuid.UUID           `json:"id"`
	Step         entity.Step         `json:"step"`
	LocationID   string              `json:"location_id"`
	StatusTarget entity.StatusTarget `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	Items        []entity.ScanEvent  `json:"items"`
	Pending      []string            `json:"pending"`
	Duplicates   int                 `json:"duplicates"`
}

// SessionService ведёт сценарий «локация, статус, сканирование» и партию кодов.
type SessionService struct {
	repo     port.SessionRepository
	assets   port.AssetRepository
	feedback port.Feedback
	scanning port.ScanActivator
	log      logrus.FieldLogger

	// SubmitWorkers ограничение параллельных вызовов при отправке
	SubmitWorkers int

	locks sync.Map // ownerID -> *sync.Mutex
}

// NewSessionService создаёт сервис. assets, feedback и scanning могут быть nil.
func NewSessionService(repo port.SessionRepository, assets port.AssetRepository, feedback port.Feedback, scanning port.ScanActivator, log logrus.FieldLogger) *SessionService {
	return &SessionService{
		repo:          repo,
		assets:        assets,
		feedback:      feedback,
		scanning:      scanning,
		log:           log,
		SubmitWorkers: DefaultSubmitWorkers,
	}
}

// lock сериализует изменения одной сессии
func (s *SessionService) lock(ownerID int64) func() {
	v, _ := s.locks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SessionService) Get(ctx context.Context, ownerID int64) (*entity.ScanSession, error) {
	return s.repo.Get(ctx, ownerID)
}

// View возвращает согласованный снимок сессии
func (s *SessionService) View(ctx context.Context, ownerID int64) (SessionView, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		ID:           session.ID,
		Step:         session.Step,
		LocationID:   session.LocationID,
		StatusTarget: session.StatusTarget,
		StartedAt:    session.StartedAt,
		Items:        session.Items(),
		Pending:      session.Pending(),
		Duplicates:   session.Duplicates,
	}, nil
}

// SelectLocation выбирает локацию и открывает шаг выбора статуса.
// Смена локации во время сканирования останавливает захват, партия сохраняется.
func (s *SessionService) SelectLocation(ctx context.Context, ownerID int64, locationID string) (*entity.ScanSession, error) {
	if locationID == "" {
		return nil, ErrLocationRequired
	}
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Step == entity.StepScan {
		s.deactivate(ownerID)
	}
	session.LocationID = locationID
	session.Step = entity.StepSelectStatus
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SelectStatus выбирает целевой статус партии. Доступно только после выбора локации.
func (s *SessionService) SelectStatus(ctx context.Context, ownerID int64, status entity.StatusTarget) (*entity.ScanSession, error) {
	if status == entity.StatusNone {
		return nil, ErrStatusRequired
	}
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if session.LocationID == "" {
		return nil, fmt.Errorf("%w: %w", ErrStepLocked, ErrLocationRequired)
	}
	session.StatusTarget = status
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// StartScan переходит к сканированию и включает конвейер распознавания.
func (s *SessionService) StartScan(ctx context.Context, ownerID int64) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if session.LocationID == "" {
		return nil, fmt.Errorf("%w: %w", ErrStepLocked, ErrLocationRequired)
	}
	if session.StatusTarget == entity.StatusNone {
		return nil, fmt.Errorf("%w: %w", ErrStepLocked, ErrStatusRequired)
	}
	// конвейер мог остановиться сам (сбой бэкенда), тогда запускаем его снова
	resume := session.Step == entity.StepScan
	if resume && (s.scanning == nil || s.scanning.Active(ownerID)) {
		return session, nil
	}

	if s.scanning != nil {
		onRecognized := func(ev entity.ScanEvent) {
			if _, err := s.AddIfAbsent(context.Background(), ownerID, ev); err != nil && !errors.Is(err, ErrNotScanning) {
				s.log.WithError(err).WithField("code", ev.Code).Debug("scan event is not added")
			}
		}
		if err := s.scanning.Activate(ctx, ownerID, onRecognized); err != nil {
			return nil, fmt.Errorf("activate scanning: %w", err)
		}
	}

	if resume {
		s.log.WithFields(logrus.Fields{"owner": ownerID, "session": session.ID}).Info("scanning resumed")
		return session, nil
	}

	session.Step = entity.StepScan
	session.StartedAt = time.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		s.deactivate(ownerID)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"owner": ownerID, "session": session.ID}).Info("scanning started")
	return session, nil
}

// AddIfAbsent добавляет код в партию. Повтор возвращает AlreadyPresent, а актив,
// числящийся за клиентом при статусе «полный», ждёт подтверждения.
func (s *SessionService) AddIfAbsent(ctx context.Context, ownerID int64, ev entity.ScanEvent) (entity.AddOutcome, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if session.Step != entity.StepScan {
		return "", ErrNotScanning
	}

	if session.Contains(ev.Code) {
		outcome := session.Add(ev)
		s.saveQuietly(ctx, session)
		s.notify(ctx, ownerID, entity.FeedbackDuplicate, ev.Code, fmt.Sprintf("Код %s уже в списке", ev.Code))
		return outcome, nil
	}

	if session.StatusTarget == entity.StatusFull && s.assets != nil {
		asset, err := s.assets.Lookup(ctx, ev.Code)
		if err != nil {
			s.notify(ctx, ownerID, entity.FeedbackError, ev.Code, fmt.Sprintf("Не удалось найти %s: %v", ev.Code, err))
			return "", fmt.Errorf("lookup %s: %w", ev.Code, err)
		}
		if asset.AssignedToCustomer() {
			session.Hold(ev)
			s.saveQuietly(ctx, session)
			s.notify(ctx, ownerID, entity.FeedbackConfirmation, ev.Code,
				fmt.Sprintf("%s числится за клиентом %s. Подтвердите: /confirm %s", ev.Code, asset.CustomerName, ev.Code))
			return entity.RequiresConfirmation, nil
		}
	}

	outcome := session.Add(ev)
	if err := s.repo.Save(ctx, session); err != nil {
		return "", err
	}
	s.notify(ctx, ownerID, entity.FeedbackAdmitted, ev.Code, fmt.Sprintf("Добавлен %s (всего %d)", ev.Code, session.Len()))
	return outcome, nil
}

// Confirm принудительно добавляет код, ожидающий подтверждения
func (s *SessionService) Confirm(ctx context.Context, ownerID int64, code string) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ev, ok := session.TakePending(code)
	if !ok {
		return nil, ErrNoPendingConfirmation
	}
	session.Add(ev)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Reject отбрасывает код, ожидающий подтверждения
func (s *SessionService) Reject(ctx context.Context, ownerID int64, code string) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, ok := session.TakePending(code); !ok {
		return nil, ErrNoPendingConfirmation
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RemoveItem удаляет код из партии
func (s *SessionService) RemoveItem(ctx context.Context, ownerID int64, code string) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !session.Remove(code) {
		return nil, ErrItemNotFound
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Clear очищает партию, шаг сценария не меняется
func (s *SessionService) Clear(ctx context.Context, ownerID int64) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	session.Clear()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Submit сохраняет каждый актив партии. Ошибка одного актива не прерывает остальные.
// Успешные коды уходят из партии, неудачные остаются для повтора. Если партия
// опустела, сессия завершается и сбрасывается.
func (s *SessionService) Submit(ctx context.Context, ownerID int64) (entity.SubmitSummary, error) {
	unlock := s.lock(ownerID)
	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		unlock()
		return entity.SubmitSummary{}, err
	}
	if session.LocationID == "" {
		unlock()
		return entity.SubmitSummary{}, ErrLocationRequired
	}
	if session.StatusTarget == entity.StatusNone {
		unlock()
		return entity.SubmitSummary{}, ErrStatusRequired
	}
	items := session.Items()
	status, location, sessionID := session.StatusTarget, session.LocationID, session.ID
	unlock()

	// сетевые вызовы идут без блокировки, сканирование продолжается
	errs := s.persist(ctx, items, status, location)

	defer s.lock(ownerID)()
	session, err = s.repo.Get(ctx, ownerID)
	if err != nil {
		return entity.SubmitSummary{}, err
	}

	summary := entity.SubmitSummary{Duplicates: session.Duplicates}
	for i, ev := range items {
		if errs[i] != nil {
			summary.Failed = append(summary.Failed, entity.ItemFailure{Code: ev.Code, Reason: errs[i].Error()})
			continue
		}
		summary.Added++
		if session.ID == sessionID {
			session.Remove(ev.Code)
		}
	}

	log := s.log.WithFields(logrus.Fields{"owner": ownerID, "session": sessionID})
	if len(summary.Failed) == 0 && session.Len() == 0 && len(session.Pending()) == 0 {
		s.deactivate(ownerID)
		session.Reset()
		log.WithField("added", summary.Added).Info("session submitted")
	} else {
		log.WithFields(logrus.Fields{"added": summary.Added, "failed": len(summary.Failed)}).Warn("session submitted partially")
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return summary, err
	}
	return summary, nil
}

// persist вызывает внешнее сохранение для каждого актива. errs[i] соответствует items[i].
func (s *SessionService) persist(ctx context.Context, items []entity.ScanEvent, status entity.StatusTarget, location string) []error {
	errs := make([]error, len(items))
	if s.assets == nil {
		for i := range errs {
			errs[i] = errors.New("asset repository is not configured")
		}
		return errs
	}

	var g errgroup.Group
	if s.SubmitWorkers > 0 {
		g.SetLimit(s.SubmitWorkers)
	}
	for i, ev := range items {
		g.Go(func() error {
			errs[i] = s.assets.UpdateStatus(ctx, ev.Code, status, location)
			// ошибка остаётся в errs, группа не отменяется
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Reset останавливает сканирование и начинает сценарий заново
func (s *SessionService) Reset(ctx context.Context, ownerID int64) (*entity.ScanSession, error) {
	defer s.lock(ownerID)()

	s.deactivate(ownerID)
	session, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	session.Reset()
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) deactivate(ownerID int64) {
	if s.scanning != nil {
		s.scanning.Deactivate(ownerID)
	}
}

func (s *SessionService) saveQuietly(ctx context.Context, session *entity.ScanSession) {
	if err := s.repo.Save(ctx, session); err != nil {
		s.log.WithError(err).WithField("owner", session.OwnerID).Warn("save session")
	}
}

func (s *SessionService) notify(ctx context.Context, ownerID int64, kind entity.FeedbackKind, code, msg string) {
	if s.feedback == nil {
		return
	}
	s.feedback.Notify(ctx, entity.Feedback{OwnerID: ownerID, Kind: kind, Code: code, Message: msg})
}
