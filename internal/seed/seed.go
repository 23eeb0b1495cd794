package seed

import (
	"context"
	"fmt"

	roomrepo "hostel/internal/room/repository"
	"hostel/pkg/config"
	"hostel/pkg/model"
)

type hostelSpec struct {
	name        string
	gender      string
	class       string
	description string
	roomCount   int
	price       int64
}

// Per-class hostel splits mirror the campus layout: a named block holds one
// room class, so "Zanner Type 1" and "Zanner" are separate hostels sharing
// a building.
var hostelSpecs = []hostelSpec{
	{"Zanner Type 1", model.GenderMale, model.RoomClassType1, "Ethernet ports, decent bed structure, TV, no bathroom", 2, 28000},
	{"Zanner", model.GenderMale, model.RoomClassRegular, "Standard room with beds and wardrobe", 18, 24000},
	{"Johnson", model.GenderMale, model.RoomClassRegular, "Standard room with beds and wardrobe", 20, 24000},
	{"Cashman Ensuite", model.GenderMale, model.RoomClassEnsuite, "Bathroom, TV", 1, 28000},
	{"Cashman", model.GenderMale, model.RoomClassRegular, "Standard room with beds and wardrobe", 19, 24000},
	{"Crawford Type 1", model.GenderFemale, model.RoomClassType1, "Type 1 Ensuite - Private Bathroom + Toilet, TV, ethernet port, good bed structure", 2, 35000},
	{"Crawford Ensuite", model.GenderFemale, model.RoomClassEnsuite, "Ensuite with bathroom and TV", 5, 28000},
	{"Crawford Regular", model.GenderFemale, model.RoomClassRegular, "Standard room with beds and wardrobe", 53, 24000},
}

const roomCapacity = 2

// Run creates the hostels and their rooms. It is not idempotent; run it
// once against an empty database after migrations.
func Run(ctx context.Context, hostelRepo roomrepo.HostelRepository, roomRepo roomrepo.RoomRepository, cfg *config.Config) error {
	var hostels, rooms int

	for _, spec := range hostelSpecs {
		hostel := &model.Hostel{
			Name:        spec.name,
			Gender:      spec.gender,
			Class:       spec.class,
			Description: spec.description,
		}
		if err := hostelRepo.Create(ctx, hostel); err != nil {
			return fmt.Errorf("failed to seed hostel %s: %w", spec.name, err)
		}
		hostels++

		for i := 1; i <= spec.roomCount; i++ {
			room := &model.Room{
				HostelID:    hostel.ID,
				Number:      fmt.Sprintf("%02d", i),
				Capacity:    roomCapacity,
				Price:       spec.price,
				IsVacant:    true,
				Description: spec.description,
			}
			if err := roomRepo.Create(ctx, room); err != nil {
				return fmt.Errorf("failed to seed room %s in %s: %w", room.Number, spec.name, err)
			}
			rooms++
		}
	}

	cfg.Log.Info("Seed complete", "hostels", hostels, "rooms", rooms)
	return nil
}
