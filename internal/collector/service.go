package collector

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/internal/openf1"
	"github.com/apexf1/pitwall/internal/storage/sqlite"
	"github.com/apexf1/pitwall/pkg/logger"
)

// Service runs the fetch-and-reconcile pipeline: it collects laps,
// stints, weather and positions for a session, joins them into the two
// persisted datasets, and keeps the database within the retention
// window. Every operation takes the session key explicitly; there is no
// ambient "current session" state.
type Service struct {
	client    *openf1.Client
	store     *sqlite.Storage
	training  *sqlite.TrainingStorage
	telemetry *sqlite.TelemetryStorage
	sessions  *sqlite.SessionStorage
	cfg       config.CollectorConfig
	logger    *logger.Logger

	// In-memory datasets keyed by session; a new session key simply gets
	// a new entry
	mu    sync.Mutex
	cache map[int]*sessionData
}

type sessionData struct {
	drivers   []openf1.Driver
	training  []sqlite.TrainingRow
	telemetry []sqlite.TelemetryRow
}

// NewService creates the collection pipeline service
func NewService(
	client *openf1.Client,
	store *sqlite.Storage,
	training *sqlite.TrainingStorage,
	telemetry *sqlite.TelemetryStorage,
	sessions *sqlite.SessionStorage,
	cfg config.CollectorConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		client:    client,
		store:     store,
		training:  training,
		telemetry: telemetry,
		sessions:  sessions,
		cfg:       cfg,
		logger:    log.Named("collector"),
		cache:     make(map[int]*sessionData),
	}
}

// SeasonYear returns the championship year to query for a given instant.
// The season starts in startMonth, so earlier months map to the previous
// year's championship.
func SeasonYear(now time.Time, startMonth time.Month) int {
	if now.Month() >= startMonth {
		return now.Year()
	}
	return now.Year() - 1
}

func (s *Service) seasonYear() int {
	return SeasonYear(time.Now().UTC(), time.Month(s.cfg.SeasonStartMonth))
}

// TrainingData returns the per-lap training dataset for a session. If the
// database already holds rows for the session they are reused as-is;
// otherwise the full pipeline runs and the result is appended. The
// returned flag reports whether the rows are durably stored — when the
// database is unreachable the data is fetched anyway and the caller must
// treat it as ephemeral.
func (s *Service) TrainingData(ctx context.Context, sessionKey int) ([]sqlite.TrainingRow, bool, error) {
	if !s.store.TestConnection() {
		s.logger.Warn("Database unavailable, falling back to API-only fetch",
			logger.Int("session_key", sessionKey))
		rows, err := s.fetchTrainingData(ctx, sessionKey)
		return rows, false, err
	}

	has, err := s.training.HasSession(sessionKey)
	if err != nil {
		s.logger.Warn("Failed to check database for session", logger.Error(err))
	} else if has {
		s.logger.Info("Session found in database", logger.Int("session_key", sessionKey))
		rows, err := s.training.RowsForSession(sessionKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load training rows: %w", err)
		}
		return rows, true, nil
	}

	s.logger.Info("Session not found in database, collecting",
		logger.Int("session_key", sessionKey))
	rows, err := s.fetchTrainingData(ctx, sessionKey)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.training.SaveRows(rows, sqlite.SaveAppend); err != nil {
		s.logger.Error("Failed to persist training rows", logger.Error(err))
		return rows, false, nil
	}
	return rows, true, nil
}

// Telemetry returns the high-frequency replay dataset for a session,
// with the same check-DB-else-fetch workflow as TrainingData
func (s *Service) Telemetry(ctx context.Context, sessionKey int) ([]sqlite.TelemetryRow, bool, error) {
	if !s.store.TestConnection() {
		s.logger.Warn("Database unavailable, falling back to API-only fetch",
			logger.Int("session_key", sessionKey))
		rows, err := s.fetchTelemetry(ctx, sessionKey)
		return rows, false, err
	}

	has, err := s.telemetry.HasSession(sessionKey)
	if err != nil {
		s.logger.Warn("Failed to check database for session", logger.Error(err))
	} else if has {
		s.logger.Info("Session found in database", logger.Int("session_key", sessionKey))
		rows, err := s.telemetry.RowsForSession(sessionKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load telemetry rows: %w", err)
		}
		return rows, true, nil
	}

	s.logger.Info("Session not found in database, collecting",
		logger.Int("session_key", sessionKey))
	rows, err := s.fetchTelemetry(ctx, sessionKey)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.telemetry.SaveRows(rows, sqlite.SaveAppend); err != nil {
		s.logger.Error("Failed to persist telemetry rows", logger.Error(err))
		return rows, false, nil
	}
	return rows, true, nil
}

// Drivers returns the session's driver entries, cached per session key
func (s *Service) Drivers(ctx context.Context, sessionKey int) ([]openf1.Driver, error) {
	if entry := s.cached(sessionKey); entry.drivers != nil {
		return entry.drivers, nil
	}

	drivers, err := s.client.Drivers(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drivers: %w", err)
	}
	if len(drivers) == 0 {
		s.logger.Warn("No drivers found for session", logger.Int("session_key", sessionKey))
		return nil, nil
	}

	s.update(sessionKey, func(entry *sessionData) { entry.drivers = drivers })
	return drivers, nil
}

// fetchTrainingData runs the lap/stint/weather pipeline for one session
func (s *Service) fetchTrainingData(ctx context.Context, sessionKey int) ([]sqlite.TrainingRow, error) {
	if entry := s.cached(sessionKey); entry.training != nil {
		return entry.training, nil
	}

	drivers, err := s.Drivers(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, nil
	}

	stints, err := s.client.Stints(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("Failed to fetch stints, laps get no tyre info", logger.Error(err))
		stints = nil
	}

	weather, err := s.client.Weather(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("Failed to fetch weather, laps get no weather info", logger.Error(err))
		weather = nil
	}

	s.logger.Info("Starting lap data collection",
		logger.Int("session_key", sessionKey),
		logger.Int("drivers", len(drivers)))
	laps := s.collectLaps(ctx, sessionKey, drivers)
	if len(laps) == 0 {
		s.logger.Warn("No lap data collected", logger.Int("session_key", sessionKey))
		return nil, nil
	}

	rows := s.buildTrainingRows(sessionKey, laps, stints, weather)
	s.update(sessionKey, func(entry *sessionData) { entry.training = rows })

	s.logger.Info("Training dataset ready",
		logger.Int("session_key", sessionKey),
		logger.Int("rows", len(rows)))
	return rows, nil
}

// fetchTelemetry runs the location pipeline for one session: per-driver
// lap spans, windowed location fetches, lap assignment
func (s *Service) fetchTelemetry(ctx context.Context, sessionKey int) ([]sqlite.TelemetryRow, error) {
	if entry := s.cached(sessionKey); entry.telemetry != nil {
		return entry.telemetry, nil
	}

	drivers, err := s.Drivers(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		all []sqlite.TelemetryRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, driver := range drivers {
		g.Go(func() error {
			laps := s.driverLaps(gctx, sessionKey, driver)
			if len(laps) == 0 {
				return nil
			}
			samples := s.driverLocations(gctx, sessionKey, driver.DriverNumber, laps)
			rows := assignToLaps(sessionKey, driver, laps, samples)
			s.logger.Debug("Finished driver locations",
				logger.String("driver", driver.NameAcronym),
				logger.Int("samples", len(rows)))
			mu.Lock()
			all = append(all, rows...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(all) == 0 {
		s.logger.Warn("No location data collected", logger.Int("session_key", sessionKey))
		return nil, nil
	}

	slices.SortStableFunc(all, func(a, b sqlite.TelemetryRow) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	s.update(sessionKey, func(entry *sessionData) { entry.telemetry = all })

	s.logger.Info("Telemetry dataset ready",
		logger.Int("session_key", sessionKey),
		logger.Int("rows", len(all)))
	return all, nil
}

// RaceCalendar returns the current season's races sorted by start date,
// falling back to cached metadata when the API is unreachable
func (s *Service) RaceCalendar(ctx context.Context) ([]sqlite.SessionRow, error) {
	year := s.seasonYear()

	sessions, err := s.client.Sessions(ctx, year, "Race")
	if err != nil || len(sessions) == 0 {
		if err != nil {
			s.logger.Warn("Failed to fetch session list, using cached calendar", logger.Error(err))
		}
		return s.sessions.SessionsByYear(year)
	}

	rows := lo.Map(sessions, func(session openf1.Session, _ int) sqlite.SessionRow {
		return sqlite.SessionRow{
			SessionKey:  session.SessionKey,
			MeetingKey:  session.MeetingKey,
			Year:        session.Year,
			SessionName: session.SessionName,
			SessionType: session.SessionType,
			CountryName: session.CountryName,
			Location:    session.Location,
			DateStart:   session.DateStart.Time,
		}
	})
	slices.SortFunc(rows, func(a, b sqlite.SessionRow) int {
		return a.DateStart.Compare(b.DateStart)
	})

	if err := s.sessions.SaveSessions(rows); err != nil {
		s.logger.Warn("Failed to cache session metadata", logger.Error(err))
	}
	return rows, nil
}

// UpdateRecentSessions collects the most recent races of the season and
// prunes telemetry outside the retention window. It returns true only
// when every session was collected and persisted and the sweep
// succeeded. Note the candidate set comes from the current season's
// session list only.
func (s *Service) UpdateRecentSessions(ctx context.Context) bool {
	calendar, err := s.RaceCalendar(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch session list", logger.Error(err))
		return false
	}
	if len(calendar) == 0 {
		s.logger.Warn("No sessions found")
		return false
	}

	recent := calendar
	if len(recent) > s.cfg.RetainSessions {
		recent = recent[len(recent)-s.cfg.RetainSessions:]
	}

	allOK := true
	for _, session := range recent {
		if _, persisted, err := s.TrainingData(ctx, session.SessionKey); err != nil || !persisted {
			allOK = false
			s.logger.Warn("Issue processing session training data",
				logger.Int("session_key", session.SessionKey),
				logger.Error(err))
		}
		if _, persisted, err := s.Telemetry(ctx, session.SessionKey); err != nil || !persisted {
			allOK = false
			s.logger.Warn("Issue processing session telemetry",
				logger.Int("session_key", session.SessionKey),
				logger.Error(err))
		}
	}

	keys := lo.Map(recent, func(session sqlite.SessionRow, _ int) int {
		return session.SessionKey
	})
	if err := s.telemetry.DeleteSessionsNotIn(keys); err != nil {
		s.logger.Error("Failed to clean up old sessions", logger.Error(err))
		allOK = false
	}

	return allOK
}

// cached returns a snapshot of the session's cache entry
func (s *Service) cached(sessionKey int) sessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.cache[sessionKey]; ok {
		return *entry
	}
	return sessionData{}
}

// update mutates the session's cache entry under the lock
func (s *Service) update(sessionKey int, fn func(*sessionData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[sessionKey]
	if !ok {
		entry = &sessionData{}
		s.cache[sessionKey] = entry
	}
	fn(entry)
}
