// Package salon holds the static reference data the booking flow validates
// against: the staff roster, the service catalog and the business-hours grid.
package salon

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Staff is a stylist customers can be booked with.
type Staff struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Bio         string `json:"bio,omitempty"`
	PortraitURL string `json:"portrait_url,omitempty"`
}

// Category groups services under a display heading.
type Category struct {
	Name     string   `json:"name"`
	Services []string `json:"services"`
}

// Directory is the salon's roster and catalog. It is read-only after load.
type Directory struct {
	Staff      []Staff    `json:"staff"`
	Categories []Category `json:"categories"`
}

// DefaultDirectory returns the roster and menu used when no data file is configured.
func DefaultDirectory() *Directory {
	return &Directory{
		Staff: []Staff{
			{ID: "amy", Name: "Amy", Title: "Senior Nail Artist", Bio: "Ten years of gel and hand-painted art."},
			{ID: "bella", Name: "Bella", Title: "Nail Technician", Bio: "Classic manicures and spa pedicures."},
			{ID: "chloe", Name: "Chloe", Title: "Junior Nail Technician", Bio: "Removals, repairs and quick refreshes."},
		},
		Categories: []Category{
			{Name: "Manicure", Services: []string{"Classic Manicure", "Gel Manicure", "French Manicure"}},
			{Name: "Pedicure", Services: []string{"Classic Pedicure", "Gel Pedicure", "Spa Pedicure"}},
			{Name: "Nail Care", Services: []string{"Nail Art", "Gel Removal", "Nail Repair"}},
		},
	}
}

// LoadDirectory reads a JSON directory file. An empty path yields the default directory.
func LoadDirectory(path string) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDirectory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("salon: read directory: %w", err)
	}
	var dir Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("salon: decode directory: %w", err)
	}
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	return &dir, nil
}

// Validate rejects directories the booking flow cannot work with.
func (d *Directory) Validate() error {
	if len(d.Staff) == 0 {
		return fmt.Errorf("salon: directory has no staff")
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("salon: directory has no services")
	}
	seen := make(map[string]struct{}, len(d.Staff))
	for _, s := range d.Staff {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("salon: staff %q has no id", s.Name)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("salon: duplicate staff id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// StaffIDs returns every staff id in roster order.
func (d *Directory) StaffIDs() []string {
	ids := make([]string, 0, len(d.Staff))
	for _, s := range d.Staff {
		ids = append(ids, s.ID)
	}
	return ids
}

// StaffByID looks a stylist up by id.
func (d *Directory) StaffByID(id string) (Staff, bool) {
	for _, s := range d.Staff {
		if s.ID == id {
			return s, true
		}
	}
	return Staff{}, false
}

// FindStaff matches free text against staff ids and names, case-insensitively.
func (d *Directory) FindStaff(text string) (Staff, bool) {
	key := normalize(text)
	if key == "" {
		return Staff{}, false
	}
	for _, s := range d.Staff {
		if normalize(s.ID) == key || normalize(s.Name) == key {
			return s, true
		}
	}
	return Staff{}, false
}

// StaffList resolves ids to Staff records, keeping order and skipping unknown ids.
func (d *Directory) StaffList(ids []string) []Staff {
	out := make([]Staff, 0, len(ids))
	for _, id := range ids {
		if s, ok := d.StaffByID(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Category returns the named category.
func (d *Directory) Category(name string) (Category, bool) {
	key := normalize(name)
	for _, c := range d.Categories {
		if normalize(c.Name) == key {
			return c, true
		}
	}
	return Category{}, false
}

// FindService resolves a service name to its canonical spelling and category.
func (d *Directory) FindService(name string) (category, service string, ok bool) {
	key := normalize(name)
	if key == "" {
		return "", "", false
	}
	for _, c := range d.Categories {
		for _, s := range c.Services {
			if normalize(s) == key {
				return c.Name, s, true
			}
		}
	}
	return "", "", false
}

// CategoryNames lists the category headings in menu order.
func (d *Directory) CategoryNames() []string {
	out := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		out = append(out, c.Name)
	}
	return out
}

// Services flattens the catalog into one ordered list.
func (d *Directory) Services() []string {
	var out []string
	for _, c := range d.Categories {
		out = append(out, c.Services...)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
