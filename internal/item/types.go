package item

import "fmt"

// Key is the content signature of an item type as reported by a listing.
type Key struct {
	Name string `json:"name"`
	NBT  string `json:"nbt,omitempty"`
}

// IsZero reports whether the key describes no item.
func (k Key) IsZero() bool {
	return k.Name == "" && k.NBT == ""
}

// String returns "name" or "name#nbt".
func (k Key) String() string {
	if k.NBT == "" {
		return k.Name
	}
	return k.Name + "#" + k.NBT
}

// Detail is the queried metadata for an item type.
type Detail struct {
	Label   string `json:"label"`
	Name    string `json:"name"`
	MaxSize int    `json:"max_size"`
}

// StackLimit returns the maximum stack size, never less than one.
func (d *Detail) StackLimit() int {
	if d == nil || d.MaxSize < 1 {
		return 1
	}
	return d.MaxSize
}

// DetailStack is a quantity of one item type together with its metadata.
type DetailStack struct {
	Key    Key     `json:"key"`
	Detail *Detail `json:"detail"`
	Size   int     `json:"size"`
}

// String renders the stack as "64x Iron Ingot".
func (s DetailStack) String() string {
	label := s.Key.String()
	if s.Detail != nil && s.Detail.Label != "" {
		label = s.Detail.Label
	}
	return fmt.Sprintf("%dx %s", s.Size, label)
}
