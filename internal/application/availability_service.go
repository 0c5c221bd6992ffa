package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/cache"
	"github.com/example/group-availability/internal/slotgrid"
)

// AvailabilityRepository captures the availability persistence operations.
type AvailabilityRepository interface {
	// UpsertAvailability stores the record. When limit is positive, a new
	// participant is refused with persistence.ErrLimitExceeded once the room
	// holds limit participants; the check and the write are atomic.
	UpsertAvailability(ctx context.Context, record AvailabilityRecord, limit int) (AvailabilityRecord, error)
	GetAvailability(ctx context.Context, roomID, participantName string) (AvailabilityRecord, error)
	ListAvailability(ctx context.Context, roomID string) ([]AvailabilityRecord, error)
}

// DefaultHeatmapTimeout bounds one shared heat-map computation.
const DefaultHeatmapTimeout = 30 * time.Second

// AvailabilityOption configures an AvailabilityService.
type AvailabilityOption func(*AvailabilityService)

// WithMaxParticipants limits the number of distinct participants per room.
// Zero or a negative value leaves rooms unbounded.
func WithMaxParticipants(limit int) AvailabilityOption {
	return func(s *AvailabilityService) {
		if limit < 0 {
			limit = 0
		}
		s.maxParticipants = limit
	}
}

// WithHeatmapCache sets the store used for computed heat-maps.
func WithHeatmapCache(store cache.Store) AvailabilityOption {
	return func(s *AvailabilityService) {
		if store != nil {
			s.cache = store
		}
	}
}

// AvailabilityService stores participant grids and aggregates them per room.
type AvailabilityService struct {
	rooms           RoomRepository
	records         AvailabilityRepository
	cache           cache.Store
	now             func() time.Time
	logger          *slog.Logger
	maxParticipants int
	computeTimeout  time.Duration

	flight singleflight.Group
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(rooms RoomRepository, records AvailabilityRepository, now func() time.Time, opts ...AvailabilityOption) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(rooms, records, now, nil, opts...)
}

// NewAvailabilityServiceWithLogger constructs an availability service with a specified logger.
func NewAvailabilityServiceWithLogger(rooms RoomRepository, records AvailabilityRepository, now func() time.Time, logger *slog.Logger, opts ...AvailabilityOption) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	s := &AvailabilityService{
		rooms:   rooms,
		records: records,
		cache:          cache.Noop{},
		now:            now,
		logger:         defaultLogger(logger),
		computeTimeout: DefaultHeatmapTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// SubmitAvailability validates and upserts a participant's grid, replacing any
// previous submission under the same name.
func (s *AvailabilityService) SubmitAvailability(ctx context.Context, params SubmitAvailabilityParams) (participant Participant, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}

	roomID := strings.TrimSpace(params.RoomID)
	name := strings.TrimSpace(params.ParticipantName)

	logger := s.loggerWith(ctx, "SubmitAvailability",
		"room_id", roomID,
		"participant", name,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "availability submitted", "slots", participant.Grid.Count())
	}()

	grid, vErr := validateSubmission(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureRoom(ctx, roomID); err != nil {
		return
	}

	now := s.now().UTC()
	var stored AvailabilityRecord
	stored, err = s.records.UpsertAvailability(ctx, AvailabilityRecord{
		RoomID:          roomID,
		ParticipantName: name,
		Encoded:         slotgrid.Encode(grid),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, s.maxParticipants)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.invalidate(ctx, roomID)

	participant = Participant{
		RoomID:    roomID,
		Name:      name,
		Grid:      grid,
		Encoded:   stored.Encoded,
		Submitted: true,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	return
}

// GetParticipant returns the participant's stored grid. A participant who has
// never submitted gets an empty grid with Submitted=false.
func (s *AvailabilityService) GetParticipant(ctx context.Context, roomID, name string) (Participant, error) {
	if s == nil {
		return Participant{}, fmt.Errorf("AvailabilityService is nil")
	}

	roomID = strings.TrimSpace(roomID)
	name = strings.TrimSpace(name)
	logger := s.loggerWith(ctx, "GetParticipant", "room_id", roomID, "participant", name)

	if err := s.ensureRoom(ctx, roomID); err != nil {
		return Participant{}, err
	}

	empty := slotgrid.Empty()
	record, err := s.records.GetAvailability(ctx, roomID, name)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return Participant{
				RoomID:  roomID,
				Name:    name,
				Grid:    empty,
				Encoded: slotgrid.Encode(empty),
			}, nil
		}
		logger.ErrorContext(ctx, "failed to load availability", "error", err, "error_kind", ErrorKind(err))
		return Participant{}, err
	}

	return s.toParticipant(ctx, logger, record), nil
}

// ListParticipants returns every stored participant of a room ordered by name.
func (s *AvailabilityService) ListParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}

	roomID = strings.TrimSpace(roomID)
	logger := s.loggerWith(ctx, "ListParticipants", "room_id", roomID)

	if err := s.ensureRoom(ctx, roomID); err != nil {
		return nil, err
	}

	records, err := s.records.ListAvailability(ctx, roomID)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to list availability", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	participants := make([]Participant, 0, len(records))
	for _, record := range records {
		participants = append(participants, s.toParticipant(ctx, logger, record))
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Name < participants[j].Name
	})

	logger.DebugContext(ctx, "participants listed", "result_count", len(participants))
	return participants, nil
}

// Heatmap aggregates every participant of the room. Results are cached until
// the next submission to the room or the cache TTL, whichever comes first, and
// concurrent computations for the same room are coalesced.
func (s *AvailabilityService) Heatmap(ctx context.Context, roomID string) (Heatmap, error) {
	if s == nil {
		return Heatmap{}, fmt.Errorf("AvailabilityService is nil")
	}

	roomID = strings.TrimSpace(roomID)
	logger := s.loggerWith(ctx, "Heatmap", "room_id", roomID)

	if err := s.ensureRoom(ctx, roomID); err != nil {
		return Heatmap{}, err
	}

	generation, cacheable := s.heatmapGeneration(ctx, logger, roomID)
	key := heatmapCacheKey(roomID, generation)
	if cacheable {
		if cached, ok := s.cachedHeatmap(ctx, logger, key); ok {
			return cached, nil
		}
	}

	// The computation is shared by every waiting request, so it must not end
	// with the request that happened to start it. Keying it by generation keeps
	// requests that arrive after a submission from joining an older read.
	results := s.flight.DoChan(key, func() (any, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.computeTimeout)
		defer cancel()
		heatmap, err := s.computeHeatmap(computeCtx, logger, roomID)
		if err == nil && cacheable {
			s.storeHeatmap(computeCtx, logger, key, heatmap)
		}
		return heatmap, err
	})

	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "heatmap request abandoned", "error", ctx.Err())
		return Heatmap{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			logger.ErrorContext(ctx, "failed to compute heatmap", "error", res.Err, "error_kind", ErrorKind(res.Err))
			return Heatmap{}, res.Err
		}
		if res.Shared {
			logger.DebugContext(ctx, "heatmap computation shared")
		}
		return res.Val.(Heatmap), nil
	}
}

func (s *AvailabilityService) computeHeatmap(ctx context.Context, logger *slog.Logger, roomID string) (Heatmap, error) {
	records, err := s.records.ListAvailability(ctx, roomID)
	if err != nil {
		return Heatmap{}, mapRepoError(err)
	}

	input := make([]aggregate.Record, 0, len(records))
	for _, record := range records {
		input = append(input, aggregate.Record{Name: record.ParticipantName, Encoded: record.Encoded})
	}

	result := aggregate.Aggregate(input)
	if len(result.Skipped) > 0 {
		logger.WarnContext(ctx, "skipped malformed availability records",
			"skipped_records", result.Skipped,
			"error_kind", ErrorKind(slotgrid.ErrMalformedEncoding),
		)
	}

	heatmap := Heatmap{
		RoomID:        roomID,
		Respondents:   result.Respondents,
		Attendance:    result.Attendance,
		Attendees:     result.Attendees,
		Skipped:       result.Skipped,
		MaxAttendance: aggregate.MaxAttendance(result.Attendance),
		Fingerprint:   Fingerprint(input),
	}

	logger.DebugContext(ctx, "heatmap computed",
		"respondents", heatmap.Respondents,
		"max_attendance", heatmap.MaxAttendance,
	)
	return heatmap, nil
}

// Fingerprint hashes the record set with BLAKE2b-256. It does not depend on
// record order.
func Fingerprint(records []aggregate.Record) string {
	sorted := make([]aggregate.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name == sorted[j].Name {
			return sorted[i].Encoded < sorted[j].Encoded
		}
		return sorted[i].Name < sorted[j].Name
	})

	h, _ := blake2b.New256(nil)
	for _, record := range sorted {
		h.Write([]byte(record.Name))
		h.Write([]byte{0})
		h.Write([]byte(record.Encoded))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// A submission bumps the room's generation, so a heat-map computed from an
// older read is stored under a key no reader asks for again. The counter lives
// in the cache backend, which makes this hold across processes sharing Redis.
func heatmapGenerationKey(roomID string) string {
	return "heatmap-gen:" + roomID
}

func heatmapCacheKey(roomID string, generation int64) string {
	return "heatmap:" + roomID + ":" + strconv.FormatInt(generation, 10)
}

func (s *AvailabilityService) heatmapGeneration(ctx context.Context, logger *slog.Logger, roomID string) (int64, bool) {
	generation, err := s.cache.Generation(ctx, heatmapGenerationKey(roomID))
	if err != nil {
		logger.WarnContext(ctx, "heatmap generation read failed", "error", err)
		return 0, false
	}
	return generation, true
}

func (s *AvailabilityService) cachedHeatmap(ctx context.Context, logger *slog.Logger, key string) (Heatmap, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "heatmap cache read failed", "error", err)
		return Heatmap{}, false
	}
	if !ok {
		return Heatmap{}, false
	}

	var heatmap Heatmap
	if err := json.Unmarshal(raw, &heatmap); err != nil {
		logger.WarnContext(ctx, "discarding undecodable heatmap cache entry", "error", err)
		return Heatmap{}, false
	}
	logger.DebugContext(ctx, "heatmap cache hit")
	return heatmap, true
}

func (s *AvailabilityService) storeHeatmap(ctx context.Context, logger *slog.Logger, key string, heatmap Heatmap) {
	raw, err := json.Marshal(heatmap)
	if err != nil {
		logger.WarnContext(ctx, "failed to encode heatmap for cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		logger.WarnContext(ctx, "heatmap cache write failed", "error", err)
	}
}

func (s *AvailabilityService) invalidate(ctx context.Context, roomID string) {
	logger := s.loggerWith(ctx, "invalidate", "room_id", roomID)
	generation, err := s.cache.Bump(ctx, heatmapGenerationKey(roomID))
	if err != nil {
		logger.WarnContext(ctx, "heatmap cache invalidation failed", "error", err)
		return
	}
	// The superseded entry would expire anyway; dropping it frees the slot.
	if err := s.cache.Delete(ctx, heatmapCacheKey(roomID, generation-1)); err != nil {
		logger.WarnContext(ctx, "stale heatmap cache delete failed", "error", err)
	}
}

func (s *AvailabilityService) ensureRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrNotFound
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *AvailabilityService) toParticipant(ctx context.Context, logger *slog.Logger, record AvailabilityRecord) Participant {
	grid, err := slotgrid.DecodeOrEmpty(record.Encoded)
	if err != nil {
		logger.WarnContext(ctx, "stored availability is malformed",
			"participant", record.ParticipantName,
			"error", err,
			"error_kind", ErrorKind(err),
		)
	}
	return Participant{
		RoomID:    record.RoomID,
		Name:      record.ParticipantName,
		Grid:      grid,
		Encoded:   record.Encoded,
		Submitted: true,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func validateSubmission(params SubmitAvailabilityParams) (slotgrid.WeekGrid, *ValidationError) {
	vErr := &ValidationError{}

	validateName(vErr, "participant_name", params.ParticipantName)

	grid, err := slotgrid.Decode(strings.TrimSpace(params.Encoded))
	switch {
	case err != nil:
		vErr.add("schedule_encoding", "schedule encoding is malformed")
		vErr.Cause = err
	case !grid.IsBinary():
		vErr.add("schedule_encoding", "schedule values must be 0 or 1")
	}

	return grid, vErr
}
