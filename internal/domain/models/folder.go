package models

import "encoding/json"

// Folder is a user-owned organizational node. Folders nest through ParentID
// and carry loose references to the chats and files filed under them.
type Folder struct {
	ID        string         `json:"id" db:"id"`
	ParentID  *string        `json:"parent_id" db:"parent_id"` // NULL = root level
	UserID    string         `json:"user_id" db:"user_id"`
	Name      string         `json:"name" db:"name"`
	Items     *FolderItems   `json:"items,omitempty" db:"items"`
	Meta      map[string]any `json:"meta,omitempty" db:"meta"`
	CreatedAt int64          `json:"created_at" db:"created_at"` // Unix seconds
	UpdatedAt int64          `json:"updated_at" db:"updated_at"` // Unix seconds
}

// FolderItems lists what is filed under a folder. The ids are references only;
// the chats and files themselves live elsewhere and may be deleted out from
// under us. Keys we don't model are kept in Extra so a payload written by
// another client survives a round trip through this service.
type FolderItems struct {
	ChatIDs []string `json:"chat_ids,omitempty"`
	FileIDs []string `json:"file_ids,omitempty"`

	// Extra holds unrecognized top-level keys from the stored payload.
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known id lists and stashes every other key in Extra.
func (i *FolderItems) UnmarshalJSON(data []byte) error {
	type alias FolderItems
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "chat_ids")
	delete(raw, "file_ids")
	if len(raw) > 0 {
		known.Extra = make(map[string]any, len(raw))
		for key, value := range raw {
			var decoded any
			if err := json.Unmarshal(value, &decoded); err != nil {
				return err
			}
			known.Extra[key] = decoded
		}
	}

	*i = FolderItems(known)
	return nil
}

// MarshalJSON writes Extra keys back alongside the known id lists.
func (i FolderItems) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Extra)+2)
	for key, value := range i.Extra {
		out[key] = value
	}
	if i.ChatIDs != nil {
		out["chat_ids"] = i.ChatIDs
	}
	if i.FileIDs != nil {
		out["file_ids"] = i.FileIDs
	}
	return json.Marshal(out)
}

// FolderTreeNode represents a folder in the tree with nested children
type FolderTreeNode struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	ParentID  *string           `json:"parent_id"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
	Children  []*FolderTreeNode `json:"children"` // Pointers for proper nesting
}
