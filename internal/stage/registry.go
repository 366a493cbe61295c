package stage

import "sort"

// registry indexes live users and rooms by ID. It carries no lock of its own;
// every method is called with the server state lock held.
type registry struct {
	users map[string]*User
	rooms map[string]*Room
}

func newRegistry() *registry {
	return &registry{
		users: make(map[string]*User),
		rooms: make(map[string]*Room),
	}
}

func (r *registry) addUser(u *User) {
	r.users[u.ID] = u
}

func (r *registry) removeUser(id string) {
	delete(r.users, id)
}

func (r *registry) user(id string) *User {
	if id == "" {
		return nil
	}
	return r.users[id]
}

func (r *registry) addRoom(room *Room) {
	r.rooms[room.ID] = room
}

func (r *registry) removeRoom(id string) {
	delete(r.rooms, id)
}

func (r *registry) room(id string) *Room {
	if id == "" {
		return nil
	}
	return r.rooms[id]
}

// publicSummaries returns the listable rooms, oldest first so the listing is
// stable across broadcasts.
func (r *registry) publicSummaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.IsPublic {
			out = append(out, room.summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
