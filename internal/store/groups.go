package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Group is a row in the groups table.
type Group struct {
	ID              int64
	WhatsAppGroupID string
	Name            sql.NullString
	Description     sql.NullString
	PictureURL      sql.NullString
}

// GroupParams describes a group to create or update. WhatsAppGroupID is
// required; the remaining fields are only written when non-empty.
type GroupParams struct {
	WhatsAppGroupID string
	Name            string
	Description     string
	PictureURL      string
}

// UpsertGroup creates or updates a group and returns its row ID.
func (s *Store) UpsertGroup(p GroupParams) (int64, error) {
	if p.WhatsAppGroupID == "" {
		return 0, fmt.Errorf("upsert group: whatsapp group id is required")
	}

	var id int64
	err := s.db.QueryRow(
		"SELECT group_id FROM groups WHERE whatsapp_group_id = ?", p.WhatsAppGroupID,
	).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup group: %w", err)
	}

	if err == sql.ErrNoRows {
		res, err := s.db.Exec(`
			INSERT INTO groups (whatsapp_group_id, group_name, group_description, group_picture_url)
			VALUES (?, ?, ?, ?)`,
			p.WhatsAppGroupID, nullString(p.Name), nullString(p.Description), nullString(p.PictureURL))
		if err != nil {
			return 0, fmt.Errorf("insert group: %w", err)
		}
		return res.LastInsertId()
	}

	sets := []string{"updated_at = datetime('now')"}
	args := []interface{}{}
	if p.Name != "" {
		sets = append(sets, "group_name = ?")
		args = append(args, p.Name)
	}
	if p.Description != "" {
		sets = append(sets, "group_description = ?")
		args = append(args, p.Description)
	}
	if p.PictureURL != "" {
		sets = append(sets, "group_picture_url = ?")
		args = append(args, p.PictureURL)
	}
	args = append(args, id)

	query := "UPDATE groups SET " + strings.Join(sets, ", ") + " WHERE group_id = ?"
	if _, err := s.db.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("update group: %w", err)
	}
	return id, nil
}

// GetGroupByWhatsAppID returns the group with the given WhatsApp group ID, or nil.
func (s *Store) GetGroupByWhatsAppID(waGroupID string) (*Group, error) {
	g := &Group{}
	err := s.db.QueryRow(`
		SELECT group_id, whatsapp_group_id, group_name, group_description, group_picture_url
		FROM groups WHERE whatsapp_group_id = ?`, waGroupID,
	).Scan(&g.ID, &g.WhatsAppGroupID, &g.Name, &g.Description, &g.PictureURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// AddGroupMember records a contact's membership in a group. Adding an
// existing member updates the role.
func (s *Store) AddGroupMember(groupID, contactID int64, role string) error {
	if role == "" {
		role = "member"
	}
	_, err := s.db.Exec(`
		INSERT INTO group_members (group_id, contact_id, role, joined_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(group_id, contact_id) DO UPDATE SET role = excluded.role`,
		groupID, contactID, role)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// GroupMemberContactIDs returns the contact IDs of all members of a group.
func (s *Store) GroupMemberContactIDs(groupID int64) ([]int64, error) {
	rows, err := s.db.Query(
		"SELECT contact_id FROM group_members WHERE group_id = ? ORDER BY contact_id", groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
