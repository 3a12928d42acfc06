package model

import "time"

// Attendance is the immutable outcome of a seat-holding booking once the
// session happened: the member either checked in or did not show up.
//
// Fields:
//  BookingID   – booking the record belongs to (one record per booking).
//  SessionID   – session attended.
//  MemberID    – member the outcome is about.
//  Outcome     – checked_in or no_show.
//  CheckedInAt – time of check-in; nil for no-shows.
//  RecordedAt  – when the record was written.
type Attendance struct {
	BookingID   uint64       // attendance.booking_id
	SessionID   uint64       // attendance.session_id
	MemberID    uint64       // attendance.member_id
	Outcome     BookingState // attendance.outcome
	CheckedInAt *time.Time   // attendance.checked_in_at (nullable)
	RecordedAt  time.Time    // attendance.recorded_at
}
