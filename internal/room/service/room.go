package service

import (
	"context"
	"errors"
	"sync"

	roomerrors "hostel/internal/room/errors"
	"hostel/internal/room/repository"
	"hostel/pkg/config"
	apperrors "hostel/pkg/errors"
	"hostel/pkg/model"
)

// OccupancyCounter reports how many active bookings hold a bed in a room.
// Satisfied by the booking repository.
type OccupancyCounter interface {
	CountActiveByRoom(ctx context.Context, roomID string) (int64, error)
}

type RoomService interface {
	GetRoom(ctx context.Context, id string) (*model.RoomDetail, error)
	ListRooms(ctx context.Context, filter repository.RoomFilter, limit int, offset int64) ([]*model.RoomDetail, int64, error)
	ListHostels(ctx context.Context) ([]*model.Hostel, error)
}

type roomService struct {
	rooms     repository.RoomRepository
	hostels   repository.HostelRepository
	occupancy OccupancyCounter
	cfg       *config.Config
}

func NewRoomService(
	rooms repository.RoomRepository,
	hostels repository.HostelRepository,
	occupancy OccupancyCounter,
	cfg *config.Config,
) RoomService {
	return &roomService{
		rooms:     rooms,
		hostels:   hostels,
		occupancy: occupancy,
		cfg:       cfg,
	}
}

func (s *roomService) GetRoom(ctx context.Context, id string) (*model.RoomDetail, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		return nil, translateRoomError(err, id)
	}

	return s.detail(ctx, room)
}

func (s *roomService) ListRooms(ctx context.Context, filter repository.RoomFilter, limit int, offset int64) ([]*model.RoomDetail, int64, error) {
	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.rooms.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", errCount)
			errCount = apperrors.Internal("Failed to count rooms", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		rooms, errFind = s.rooms.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list rooms", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve rooms", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	details := make([]*model.RoomDetail, 0, len(rooms))
	for _, room := range rooms {
		detail, err := s.detail(ctx, room)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, detail)
	}

	return details, count, nil
}

func (s *roomService) ListHostels(ctx context.Context) ([]*model.Hostel, error) {
	hostels, err := s.hostels.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list hostels", "error", err)
		return nil, apperrors.Internal("Failed to retrieve hostels", err)
	}
	return hostels, nil
}

func (s *roomService) detail(ctx context.Context, room *model.Room) (*model.RoomDetail, error) {
	hostel, err := s.hostels.FindByID(ctx, room.HostelID)
	if err != nil {
		if errors.Is(err, roomerrors.ErrHostelNotFound) {
			return nil, apperrors.NotFoundWithID("Hostel", room.HostelID)
		}
		return nil, apperrors.Internal("Failed to retrieve hostel", err)
	}

	occupied, err := s.occupancy.CountActiveByRoom(ctx, room.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to count room occupancy", err)
	}

	return &model.RoomDetail{
		Room:     *room,
		Hostel:   *hostel,
		Occupied: occupied,
	}, nil
}

func translateRoomError(err error, id string) error {
	if errors.Is(err, roomerrors.ErrRoomNotFound) {
		return apperrors.NotFoundWithID("Room", id)
	}
	if errors.Is(err, roomerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid room ID format")
	}
	return apperrors.Internal("Failed to retrieve room", err)
}
