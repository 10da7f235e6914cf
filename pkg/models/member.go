package models

import "time"

// MembershipType is the kind of club membership held.
type MembershipType string

const (
	MembershipClub            MembershipType = "club"
	MembershipClubAffiliation MembershipType = "club+affiliation"
	// MembershipAdmin only appears on synthetic records built for administrators.
	MembershipAdmin MembershipType = "Admin"
)

// Valid reports whether t can be chosen on an application form.
func (t MembershipType) Valid() bool {
	return t == MembershipClub || t == MembershipClubAffiliation
}

// MembershipStatus tracks whether a membership is currently usable.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPending   MembershipStatus = "pending"
	MembershipExpired   MembershipStatus = "expired"
	MembershipSuspended MembershipStatus = "suspended"
)

// Valid reports whether s is a known membership status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipPending, MembershipExpired, MembershipSuspended:
		return true
	}
	return false
}

// ApplicationStatus is the review state of a membership application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Member is a club member record. Email is logically unique, case-insensitive.
type Member struct {
	ID                    string            `json:"id" db:"id"`
	Email                 string            `json:"email" db:"email"`
	FirstName             string            `json:"first_name" db:"first_name"`
	Surname               string            `json:"surname" db:"surname"`
	Phone                 string            `json:"phone,omitempty" db:"phone"`
	DateOfBirth           string            `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Address               string            `json:"address,omitempty" db:"address"`
	Postcode              string            `json:"postcode,omitempty" db:"postcode"`
	EmergencyContactName  string            `json:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactPhone string            `json:"emergency_contact_phone,omitempty" db:"emergency_contact_phone"`
	MembershipType        MembershipType    `json:"membership_type" db:"membership_type"`
	MembershipStatus      MembershipStatus  `json:"membership_status" db:"membership_status"`
	MembershipExpiry      *Date             `json:"membership_expiry,omitempty" db:"membership_expiry"`
	PaymentStatus         string            `json:"payment_status,omitempty" db:"payment_status"`
	SignatureURL          string            `json:"signature_url,omitempty" db:"signature_url"`
	PhotoConsent          bool              `json:"photo_consent" db:"photo_consent"`
	NewsletterOptIn       bool              `json:"newsletter_opt_in" db:"newsletter_opt_in"`
	DirectoryOptOut       bool              `json:"directory_opt_out" db:"directory_opt_out"`
	PendingUpdate         bool              `json:"pending_update" db:"pending_update"`
	Status                ApplicationStatus `json:"status" db:"status"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`

	// Synthetic marks a placeholder built for an administrator without a member row.
	Synthetic bool `json:"synthetic,omitempty" db:"-"`
}

// Usable reports whether the membership grants access to member-only features.
func (m *Member) Usable() bool {
	return m.MembershipStatus == MembershipActive
}

// MemberDirectoryEntry is the slim projection returned by the member directory.
type MemberDirectoryEntry struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Surname   string `json:"surname"`
}

// MemberApplicationRequest is the payload of a membership application form.
type MemberApplicationRequest struct {
	FirstName             string         `json:"first_name"`
	Surname               string         `json:"surname"`
	Phone                 string         `json:"phone"`
	DateOfBirth           string         `json:"date_of_birth"`
	Address               string         `json:"address"`
	Postcode              string         `json:"postcode"`
	EmergencyContactName  string         `json:"emergency_contact_name"`
	EmergencyContactPhone string         `json:"emergency_contact_phone"`
	MembershipType        MembershipType `json:"membership_type"`
	SignatureURL          string         `json:"signature_url"`
	PhotoConsent          bool           `json:"photo_consent"`
	NewsletterOptIn       bool           `json:"newsletter_opt_in"`
	DirectoryOptOut       bool           `json:"directory_opt_out"`
}

// ProfileEditableFields are the columns a member may change on their own record.
var ProfileEditableFields = []string{
	"first_name", "surname", "phone", "date_of_birth", "address", "postcode",
	"emergency_contact_name", "emergency_contact_phone", "signature_url",
	"photo_consent", "newsletter_opt_in", "directory_opt_out",
}

// AdminEditableFields are the columns an administrator may write directly.
var AdminEditableFields = append([]string{
	"membership_type", "membership_status", "membership_expiry", "payment_status", "status", "pending_update",
}, ProfileEditableFields...)
