package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zensyncgo/internal/roomstate"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RoomDTO struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"              example:"meditation"`
	Name             string    `json:"name"`
	CreatorID        string    `json:"creator_id"`
	DurationMinutes  int       `json:"duration_minutes"`
	Goal             string    `json:"goal,omitempty"`
	PlaylistID       string    `json:"playlist_id,omitempty"`
	PlaylistName     string    `json:"playlist_name,omitempty"`
	IsPublic         bool      `json:"is_public"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"        example:"2025-07-27T16:05:05Z"`
}

type CreateRoomInput struct {
	Name            string
	CreatorID       string
	DurationMinutes int
	Goal            string
	PlaylistID      string
	PlaylistName    string
	IsPublic        bool
}

// RoomRef identifies a room across both kinds.
type RoomRef struct {
	Kind roomstate.Kind
	ID   string
}

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrInvalidRoom      = errors.New("invalid room")
	ErrPlaylistRequired = fmt.Errorf("%w: music rooms need playlist_id and playlist_name", ErrInvalidRoom)
)

type IRoomService interface {
	CreateRoom(ctx context.Context, kind roomstate.Kind, in CreateRoomInput) (*RoomDTO, error)
	ListRooms(ctx context.Context, kind roomstate.Kind, publicOnly bool, limit, offset int) ([]RoomDTO, error)
	GetRoom(ctx context.Context, kind roomstate.Kind, id string) (*RoomDTO, error)
	JoinRoom(ctx context.Context, kind roomstate.Kind, id, userID string) error
	LeaveRoom(ctx context.Context, kind roomstate.Kind, id, userID string) error
	GetRoomDuration(ctx context.Context, kind roomstate.Kind, id string) (int, error)
	RoomExists(ctx context.Context, kind roomstate.Kind, id string) (bool, error)
	DeleteStaleRooms(ctx context.Context, olderThan time.Time) ([]RoomRef, error)
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type roomService struct {
	rdc      redis.Cmdable
	db       *sql.DB
	cacheTTL time.Duration
}

var _ IRoomService = (*roomService)(nil)

func NewRoomService(rdc redis.Cmdable, db *sql.DB, cacheTTL time.Duration) IRoomService {
	return &roomService{
		rdc:      rdc,
		db:       db,
		cacheTTL: cacheTTL,
	}
}

// DurationKey caches a room's countdown length in seconds.
func DurationKey(kind roomstate.Kind, id string) string {
	return "room:" + kind.String() + ":" + id + ":duration"
}

// parseID rejects ids that cannot name a row; they are reported as not found.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func (svc *roomService) CreateRoom(ctx context.Context, kind roomstate.Kind, in CreateRoomInput) (*RoomDTO, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case !kind.Valid():
		return nil, roomstate.ErrInvalidKind
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRoom)
	case in.DurationMinutes < 0:
		return nil, fmt.Errorf("%w: duration_minutes must be >= 0", ErrInvalidRoom)
	case kind == roomstate.Music && (strings.TrimSpace(in.PlaylistID) == "" || strings.TrimSpace(in.PlaylistName) == ""):
		return nil, ErrPlaylistRequired
	}

	const ins = `
	  INSERT INTO rooms (kind, name, creator_id, duration_minutes,
	                     goal, playlist_id, playlist_name, is_public)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	    RETURNING id, created_at`

	var (
		id        int64
		createdAt time.Time
	)
	err := svc.db.QueryRowContext(ctx, ins,
		kind.String(),
		in.Name,
		in.CreatorID,
		in.DurationMinutes,
		nullable(in.Goal),
		nullable(in.PlaylistID),
		nullable(in.PlaylistName),
		in.IsPublic,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return &RoomDTO{
		ID:              strconv.FormatInt(id, 10),
		Kind:            kind.String(),
		Name:            in.Name,
		CreatorID:       in.CreatorID,
		DurationMinutes: in.DurationMinutes,
		Goal:            nullable(in.Goal).String,
		PlaylistID:      nullable(in.PlaylistID).String,
		PlaylistName:    nullable(in.PlaylistName).String,
		IsPublic:        in.IsPublic,
		CreatedAt:       createdAt.UTC(),
	}, nil
}

const selectRoom = `
	SELECT r.id, r.kind, r.name, r.creator_id, r.duration_minutes,
	       coalesce(r.goal,''), coalesce(r.playlist_id,''), coalesce(r.playlist_name,''),
	       r.is_public, r.created_at, count(p.user_id)
	  FROM rooms r
	  LEFT JOIN room_participants p ON p.room_id = r.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (RoomDTO, error) {
	var (
		dto RoomDTO
		id  int64
	)
	err := row.Scan(&id, &dto.Kind, &dto.Name, &dto.CreatorID, &dto.DurationMinutes,
		&dto.Goal, &dto.PlaylistID, &dto.PlaylistName,
		&dto.IsPublic, &dto.CreatedAt, &dto.ParticipantCount)
	dto.ID = strconv.FormatInt(id, 10)
	dto.CreatedAt = dto.CreatedAt.UTC()
	return dto, err
}

func (svc *roomService) ListRooms(ctx context.Context, kind roomstate.Kind,
	publicOnly bool, limit, offset int) ([]RoomDTO, error) {

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	q := selectRoom + " WHERE r.kind = $1"
	if publicOnly {
		q += " AND r.is_public"
	}
	q += " GROUP BY r.id ORDER BY r.created_at DESC, r.id DESC LIMIT $2 OFFSET $3"

	rows, err := svc.db.QueryContext(ctx, q, kind.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoomDTO, 0, limit)
	for rows.Next() {
		dto, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, dto)
	}
	return list, rows.Err()
}

func (svc *roomService) GetRoom(ctx context.Context, kind roomstate.Kind, id string) (*RoomDTO, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	row := svc.db.QueryRowContext(ctx,
		selectRoom+" WHERE r.kind = $1 AND r.id = $2 GROUP BY r.id", kind.String(), n)
	dto, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &dto, nil
}

// JoinRoom records userID as a persisted participant; joining twice is a no-op.
func (svc *roomService) JoinRoom(ctx context.Context, kind roomstate.Kind, id, userID string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrRoomNotFound
	}
	const ins = `
	  INSERT INTO room_participants (room_id, user_id)
	       SELECT id, $3 FROM rooms WHERE id = $1 AND kind = $2
	  ON CONFLICT DO NOTHING`
	res, err := svc.db.ExecContext(ctx, ins, n, kind.String(), userID)
	if err != nil {
		return err
	}
	return svc.requireAffectedOrExists(ctx, res, kind, n)
}

func (svc *roomService) LeaveRoom(ctx context.Context, kind roomstate.Kind, id, userID string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrRoomNotFound
	}
	const del = `
	  DELETE FROM room_participants p
	        USING rooms r
	        WHERE p.room_id = r.id AND r.id = $1 AND r.kind = $2 AND p.user_id = $3`
	res, err := svc.db.ExecContext(ctx, del, n, kind.String(), userID)
	if err != nil {
		return err
	}
	return svc.requireAffectedOrExists(ctx, res, kind, n)
}

// requireAffectedOrExists turns a zero-row write into ErrRoomNotFound unless
// the room exists (the write was then simply idempotent).
func (svc *roomService) requireAffectedOrExists(ctx context.Context, res sql.Result, kind roomstate.Kind, id int64) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	ok, err := svc.existsSQL(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}

func (svc *roomService) existsSQL(ctx context.Context, kind roomstate.Kind, id int64) (bool, error) {
	var ok bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1 AND kind = $2)`, id, kind.String()).Scan(&ok)
	return ok, err
}

// GetRoomDuration returns the configured countdown in seconds. Cache failures
// fall through to Postgres.
func (svc *roomService) GetRoomDuration(ctx context.Context, kind roomstate.Kind, id string) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, ErrRoomNotFound
	}
	key := DurationKey(kind, id)

	secs, err := svc.rdc.Get(ctx, key).Int()
	switch {
	case err == nil:
		return secs, nil
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("rooms.cache_get", zap.String("key", key), zap.Error(err))
	}

	var minutes int
	err = svc.db.QueryRowContext(ctx,
		`SELECT duration_minutes FROM rooms WHERE id = $1 AND kind = $2`, n, kind.String()).Scan(&minutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}
	secs = minutes * 60

	if svc.cacheTTL > 0 {
		if err := svc.rdc.Set(ctx, key, secs, svc.cacheTTL).Err(); err != nil {
			zap.L().Warn("rooms.cache_set", zap.String("key", key), zap.Error(err))
		}
	}
	return secs, nil
}

// RoomExists short-circuits on a cached duration.
func (svc *roomService) RoomExists(ctx context.Context, kind roomstate.Kind, id string) (bool, error) {
	n, ok := parseID(id)
	if !ok {
		return false, nil
	}
	key := DurationKey(kind, id)
	hits, err := svc.rdc.Exists(ctx, key).Result()
	if err != nil {
		zap.L().Warn("rooms.cache_exists", zap.String("key", key), zap.Error(err))
	} else if hits > 0 {
		return true, nil
	}
	return svc.existsSQL(ctx, kind, n)
}

// DeleteStaleRooms removes rooms created before olderThan that have no
// persisted participants and drops their cache entries.
func (svc *roomService) DeleteStaleRooms(ctx context.Context, olderThan time.Time) ([]RoomRef, error) {
	const del = `
	  DELETE FROM rooms r
	        WHERE r.created_at < $1
	          AND NOT EXISTS (SELECT 1 FROM room_participants p WHERE p.room_id = r.id)
	    RETURNING r.id, r.kind`

	rows, err := svc.db.QueryContext(ctx, del, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		refs []RoomRef
		keys []string
	)
	for rows.Next() {
		var (
			id   int64
			kind string
		)
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		k, err := roomstate.ParseKind(kind)
		if err != nil {
			continue
		}
		ref := RoomRef{Kind: k, ID: strconv.FormatInt(id, 10)}
		refs = append(refs, ref)
		keys = append(keys, DurationKey(ref.Kind, ref.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(keys) > 0 {
		if err := svc.rdc.Del(ctx, keys...).Err(); err != nil {
			zap.L().Warn("rooms.cache_del", zap.Int("keys", len(keys)), zap.Error(err))
		}
	}
	return refs, nil
}
