package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultSpecialUserColor = "#ffffff"

// SpecialUser is the extra display metadata granted to an account by the
// server operator (staff badges, name colour).
type SpecialUser struct {
	AccountID int32  `yaml:"account_id"`
	Name      string `yaml:"name"`  // badge/title shown next to the player name
	Color     string `yaml:"color"` // "#rrggbb", defaults to white
}

// SpecialUserTable indexes special users by account ID.
type SpecialUserTable struct {
	byAccount map[int32]SpecialUser
}

// LoadSpecialUserTable loads special users from a YAML file.
func LoadSpecialUserTable(path string) (*SpecialUserTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read special users: %w", err)
	}
	return ParseSpecialUserTable(raw)
}

// ParseSpecialUserTable parses the YAML document
//
//	special_users:
//	  - account_id: 71
//	    name: Owner
//	    color: "#ff0000"
func ParseSpecialUserTable(raw []byte) (*SpecialUserTable, error) {
	var file struct {
		SpecialUsers []SpecialUser `yaml:"special_users"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse special users: %w", err)
	}

	t := &SpecialUserTable{byAccount: make(map[int32]SpecialUser, len(file.SpecialUsers))}
	for _, su := range file.SpecialUsers {
		if su.AccountID <= 0 {
			return nil, fmt.Errorf("special user %q: invalid account_id %d", su.Name, su.AccountID)
		}
		if _, dup := t.byAccount[su.AccountID]; dup {
			return nil, fmt.Errorf("special user %d listed twice", su.AccountID)
		}
		if su.Color == "" {
			su.Color = defaultSpecialUserColor
		}
		t.byAccount[su.AccountID] = su
	}
	return t, nil
}

// Map returns a copy of the table keyed by account ID.
func (t *SpecialUserTable) Map() map[int32]SpecialUser {
	out := make(map[int32]SpecialUser, len(t.byAccount))
	for id, su := range t.byAccount {
		out[id] = su
	}
	return out
}

// Count returns the number of special users.
func (t *SpecialUserTable) Count() int {
	return len(t.byAccount)
}
