package model

// MemberStatus is the standing of a member in the member directory.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
	MemberInactive  MemberStatus = "inactive"
)

// Member is the slice of the member directory this service needs: an
// identifier and whether the member may book.
type Member struct {
	ID          uint64       // members.id
	Status      MemberStatus // members.status
	DisplayName string       // members.display_name
}

// CanBook reports whether the member is allowed to request bookings.
func (m Member) CanBook() bool { return m.Status == MemberActive }
