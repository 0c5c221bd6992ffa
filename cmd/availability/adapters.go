package main

import (
	"context"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/persistence"
)

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	stored, err := a.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	model, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(model), nil
}

type availabilityRepositoryAdapter struct {
	repo persistence.AvailabilityRepository
}

func newAvailabilityRepositoryAdapter(repo persistence.AvailabilityRepository) *availabilityRepositoryAdapter {
	return &availabilityRepositoryAdapter{repo: repo}
}

func (a *availabilityRepositoryAdapter) UpsertAvailability(ctx context.Context, record application.AvailabilityRecord, limit int) (application.AvailabilityRecord, error) {
	stored, err := a.repo.UpsertAvailabilityWithin(ctx, toPersistenceAvailability(record), limit)
	if err != nil {
		return application.AvailabilityRecord{}, err
	}
	return toApplicationAvailability(stored), nil
}

func (a *availabilityRepositoryAdapter) GetAvailability(ctx context.Context, roomID, participantName string) (application.AvailabilityRecord, error) {
	model, err := a.repo.GetAvailability(ctx, roomID, participantName)
	if err != nil {
		return application.AvailabilityRecord{}, err
	}
	return toApplicationAvailability(model), nil
}

func (a *availabilityRepositoryAdapter) ListAvailability(ctx context.Context, roomID string) ([]application.AvailabilityRecord, error) {
	models, err := a.repo.ListAvailability(ctx, roomID)
	if err != nil {
		return nil, err
	}
	records := make([]application.AvailabilityRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationAvailability(model))
	}
	return records, nil
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		Name:      model.Name,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
	}
}

func toApplicationAvailability(model persistence.Availability) application.AvailabilityRecord {
	return application.AvailabilityRecord{
		RoomID:          model.RoomID,
		ParticipantName: model.ParticipantName,
		Encoded:         model.ScheduleEncoding,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceAvailability(record application.AvailabilityRecord) persistence.Availability {
	return persistence.Availability{
		RoomID:           record.RoomID,
		ParticipantName:  record.ParticipantName,
		ScheduleEncoding: record.Encoded,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}
