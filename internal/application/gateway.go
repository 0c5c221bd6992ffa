package application

import (
	"context"

	"github.com/example/group-availability/internal/aggregate"
)

// Gateway exposes an AvailabilityService through the two calls an editing
// session needs, for use in-process without the HTTP client.
type Gateway struct {
	service *AvailabilityService
}

// NewGateway wraps the service.
func NewGateway(service *AvailabilityService) *Gateway {
	return &Gateway{service: service}
}

// FetchAllAvailability returns every stored record of the room.
func (g *Gateway) FetchAllAvailability(ctx context.Context, roomID string) ([]aggregate.Record, error) {
	participants, err := g.service.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	records := make([]aggregate.Record, 0, len(participants))
	for _, p := range participants {
		records = append(records, aggregate.Record{Name: p.Name, Encoded: p.Encoded})
	}
	return records, nil
}

// UpsertAvailability saves one participant's encoded grid.
func (g *Gateway) UpsertAvailability(ctx context.Context, roomID, name, encoded string) error {
	_, err := g.service.SubmitAvailability(ctx, SubmitAvailabilityParams{
		RoomID:          roomID,
		ParticipantName: name,
		Encoded:         encoded,
	})
	return err
}
