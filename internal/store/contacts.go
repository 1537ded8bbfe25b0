package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Contact is a row in the contacts table.
type Contact struct {
	ID                int64
	Phone             string
	WhatsAppID        sql.NullString
	Name              sql.NullString
	ProfilePictureURL sql.NullString
	IsBusiness        bool
	BusinessName      sql.NullString
}

// ContactParams describes a contact to create or update. Phone is required;
// WhatsAppID is derived from Phone when empty. String fields are only written
// when non-empty, and IsBusiness only when non-nil, so repeated upserts never
// erase previously known data.
type ContactParams struct {
	Phone             string
	WhatsAppID        string
	Name              string
	ProfilePictureURL string
	IsBusiness        *bool
	BusinessName      string
}

// WhatsAppIDForPhone returns the canonical private-chat identifier for a
// bare phone number.
func WhatsAppIDForPhone(phone string) string {
	return phone + "@c.us"
}

// PhoneForWhatsAppID strips the private-chat suffix from a WhatsApp identifier.
func PhoneForWhatsAppID(waID string) string {
	return strings.TrimSuffix(waID, "@c.us")
}

// UpsertContact creates or updates a contact and returns its row ID.
// Lookup tries the phone number first, then the WhatsApp ID; the phone number
// is authoritative, so a row found by phone keeps its phone even when the
// caller passed a different WhatsApp ID.
func (s *Store) UpsertContact(p ContactParams) (int64, error) {
	if p.Phone == "" {
		return 0, fmt.Errorf("upsert contact: phone number is required")
	}
	waID := p.WhatsAppID
	if waID == "" {
		waID = WhatsAppIDForPhone(p.Phone)
	}

	var id int64
	err := s.db.QueryRow(
		"SELECT contact_id FROM contacts WHERE phone_number = ?", p.Phone,
	).Scan(&id)
	if err == sql.ErrNoRows {
		err = s.db.QueryRow(
			"SELECT contact_id FROM contacts WHERE whatsapp_id = ?", waID,
		).Scan(&id)
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup contact: %w", err)
	}

	if err == sql.ErrNoRows {
		isBusiness := 0
		if p.IsBusiness != nil && *p.IsBusiness {
			isBusiness = 1
		}
		res, err := s.db.Exec(`
			INSERT INTO contacts (phone_number, whatsapp_id, name, profile_picture_url, is_business, business_name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Phone, waID, nullString(p.Name), nullString(p.ProfilePictureURL),
			isBusiness, nullString(p.BusinessName))
		if err != nil {
			return 0, fmt.Errorf("insert contact: %w", err)
		}
		return res.LastInsertId()
	}

	sets := []string{"updated_at = datetime('now')"}
	args := []interface{}{}
	if p.Name != "" {
		sets = append(sets, "name = ?")
		args = append(args, p.Name)
	}
	if p.ProfilePictureURL != "" {
		sets = append(sets, "profile_picture_url = ?")
		args = append(args, p.ProfilePictureURL)
	}
	if p.IsBusiness != nil {
		sets = append(sets, "is_business = ?")
		args = append(args, boolToInt(*p.IsBusiness))
	}
	if p.BusinessName != "" {
		sets = append(sets, "business_name = ?")
		args = append(args, p.BusinessName)
	}
	sets = append(sets, "whatsapp_id = COALESCE(whatsapp_id, ?)")
	args = append(args, waID, id)

	query := "UPDATE contacts SET " + strings.Join(sets, ", ") + " WHERE contact_id = ?"
	if _, err := s.db.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("update contact: %w", err)
	}
	return id, nil
}

// GetContactByPhone returns the contact with the given phone number, or nil.
func (s *Store) GetContactByPhone(phone string) (*Contact, error) {
	return s.getContact("phone_number = ?", phone)
}

// GetContactByWhatsAppID returns the contact with the given WhatsApp ID, or nil.
func (s *Store) GetContactByWhatsAppID(waID string) (*Contact, error) {
	return s.getContact("whatsapp_id = ?", waID)
}

func (s *Store) getContact(where string, arg interface{}) (*Contact, error) {
	c := &Contact{}
	var isBusiness int
	err := s.db.QueryRow(`
		SELECT contact_id, phone_number, whatsapp_id, name, profile_picture_url, is_business, business_name
		FROM contacts WHERE `+where, arg,
	).Scan(&c.ID, &c.Phone, &c.WhatsAppID, &c.Name, &c.ProfilePictureURL, &isBusiness, &c.BusinessName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	c.IsBusiness = isBusiness != 0
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
