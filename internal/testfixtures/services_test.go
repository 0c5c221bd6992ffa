package testfixtures

import (
	"context"
	"testing"
)

func TestServiceFactoryMemoryServices(t *testing.T) {
	factory := NewServiceFactory()
	services := factory.NewMemoryServices()
	ctx := context.Background()

	room, err := services.Rooms.CreateRoom(ctx, NewRoomFixture().Input())
	if err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}
	if room.ID != "room-1" {
		t.Fatalf("expected generated ID room-1, got %q", room.ID)
	}
	if !room.CreatedAt.Equal(ReferenceTime()) {
		t.Fatalf("expected timestamp %v, got %v", ReferenceTime(), room.CreatedAt)
	}

	fixture := NewAvailabilityFixture(room.ID, WithParticipantName("Alice"), WithCells(Span(2, 18, 21)...))
	if _, err := services.Availability.SubmitAvailability(ctx, fixture.Submit()); err != nil {
		t.Fatalf("SubmitAvailability returned error: %v", err)
	}

	heatmap, err := services.Availability.Heatmap(ctx, room.ID)
	if err != nil {
		t.Fatalf("Heatmap returned error: %v", err)
	}
	if heatmap.MaxAttendance != 1 || heatmap.Attendance[2][20] != 1 {
		t.Fatalf("unexpected heatmap %#v", heatmap.Attendance[2])
	}
}

func TestSQLiteHarnessSeeds(t *testing.T) {
	harness := NewSQLiteHarness(t)
	room := NewRoomFixture()
	harness.SeedRoom(t, room)
	harness.SeedAvailability(t, NewAvailabilityFixture(room.ID, WithRawEncoding("broken")))

	records, err := harness.Availability.ListAvailability(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("ListAvailability returned error: %v", err)
	}
	if len(records) != 1 || records[0].ScheduleEncoding != "broken" {
		t.Fatalf("unexpected records %#v", records)
	}
}
