package session

import (
	"time"

	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
)

// Step is the position of a session in the conversation.
type Step int

const (
	StepNew Step = iota
	StepAskFactory
	StepAskWarehouse
	StepAskModel
	StepAskColorName
	StepAskColorSizes
	StepAskShipDate
	StepAskEtaDate
	StepConfirm
	StepCommitted
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepNew:
		return "new"
	case StepAskFactory:
		return "ask_factory"
	case StepAskWarehouse:
		return "ask_warehouse"
	case StepAskModel:
		return "ask_model"
	case StepAskColorName:
		return "ask_color_name"
	case StepAskColorSizes:
		return "ask_color_sizes"
	case StepAskShipDate:
		return "ask_ship_date"
	case StepAskEtaDate:
		return "ask_eta_date"
	case StepConfirm:
		return "confirm"
	case StepCommitted:
		return "committed"
	case StepCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further input is accepted.
func (s Step) Terminal() bool {
	return s == StepCommitted || s == StepCancelled
}

// Bag is one physical bag of a color. Its ID is "{shipmentID}-{Number}".
type Bag struct {
	ID     string
	Number int
	Sizes  map[string]int
}

// Total is the sum of all size quantities.
func (b Bag) Total() int {
	t := 0
	for _, q := range b.Sizes {
		t += q
	}
	return t
}

func (b Bag) Empty() bool { return b.Total() == 0 }

func (b Bag) clone() Bag {
	c := b
	c.Sizes = make(map[string]int, len(b.Sizes))
	for k, v := range b.Sizes {
		c.Sizes[k] = v
	}
	return c
}

// Color groups the bags of one color of a model, in creation order.
type Color struct {
	Name string
	Bags []Bag
}

// Model groups colors in the order they were first entered.
type Model struct {
	Name   string
	Colors []Color
}

// Session is the in-progress shipment of one user. Models only ever hold colors
// with at least one non-empty bag; the color being edited lives in the Current
// fields until it is saved.
type Session struct {
	UserID   string
	Username string
	Step     Step
	// Seq increases with every prompt; menu selections carrying an older value are stale.
	Seq uint64
	// LastMessageID is the ID of the last text message applied to the session.
	LastMessageID string

	Factories   []directory.Factory
	Sheet       string
	FactoryName string
	Warehouses  []string
	Warehouse   string
	ShipmentID  string

	Models       []Model
	CurrentModel string
	CurrentColor string
	CurrentBags  []Bag
	BagIndex     int
	PendingSize  string

	ShipDate string
	EtaDate  string

	StartedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Factories = append([]directory.Factory(nil), s.Factories...)
	c.Warehouses = append([]string(nil), s.Warehouses...)
	c.Models = make([]Model, len(s.Models))
	for i, m := range s.Models {
		cm := Model{Name: m.Name, Colors: make([]Color, len(m.Colors))}
		for j, col := range m.Colors {
			cc := Color{Name: col.Name, Bags: make([]Bag, len(col.Bags))}
			for k, b := range col.Bags {
				cc.Bags[k] = b.clone()
			}
			cm.Colors[j] = cc
		}
		c.Models[i] = cm
	}
	c.CurrentBags = make([]Bag, len(s.CurrentBags))
	for i, b := range s.CurrentBags {
		c.CurrentBags[i] = b.clone()
	}
	return &c
}

// CurrentBag returns the bag being edited, or nil.
func (s *Session) CurrentBag() *Bag {
	if s.BagIndex < 0 || s.BagIndex >= len(s.CurrentBags) {
		return nil
	}
	return &s.CurrentBags[s.BagIndex]
}

func (s *Session) currentHasQuantities() bool {
	for _, b := range s.CurrentBags {
		if !b.Empty() {
			return true
		}
	}
	return false
}

// saveCurrentColor moves the non-empty bags of the color being edited into its
// model. It reports whether anything was saved.
func (s *Session) saveCurrentColor() bool {
	var keep []Bag
	for _, b := range s.CurrentBags {
		if !b.Empty() {
			keep = append(keep, b)
		}
	}
	color, model := s.CurrentColor, s.CurrentModel
	s.CurrentColor = ""
	s.CurrentBags = nil
	s.BagIndex = 0
	s.PendingSize = ""
	if len(keep) == 0 || color == "" || model == "" {
		return false
	}

	mi := -1
	for i := range s.Models {
		if s.Models[i].Name == model {
			mi = i
			break
		}
	}
	if mi < 0 {
		s.Models = append(s.Models, Model{Name: model})
		mi = len(s.Models) - 1
	}
	m := &s.Models[mi]
	for i := range m.Colors {
		if m.Colors[i].Name == color {
			m.Colors[i].Bags = append(m.Colors[i].Bags, keep...)
			return true
		}
	}
	m.Colors = append(m.Colors, Color{Name: color, Bags: keep})
	return true
}

// Totals counts saved bags and items.
func (s *Session) Totals() (bags, items int) {
	for _, m := range s.Models {
		for _, c := range m.Colors {
			for _, b := range c.Bags {
				if !b.Empty() {
					bags++
					items += b.Total()
				}
			}
		}
	}
	return bags, items
}

// Flatten produces one ledger record per non-empty bag, in model, color and bag
// order.
func (s *Session) Flatten(at time.Time) []ledger.Record {
	var out []ledger.Record
	for _, m := range s.Models {
		for _, c := range m.Colors {
			for _, b := range c.Bags {
				if b.Empty() {
					continue
				}
				sizes := make(map[string]int, len(b.Sizes))
				for l, q := range b.Sizes {
					if q > 0 {
						sizes[l] = q
					}
				}
				out = append(out, ledger.Record{
					Time:          at,
					UserID:        s.UserID,
					Username:      s.Username,
					ShipmentID:    s.ShipmentID,
					BagID:         b.ID,
					Warehouse:     s.Warehouse,
					Model:         m.Name,
					Color:         c.Name,
					ShipDate:      s.ShipDate,
					EtaDate:       s.EtaDate,
					Sizes:         sizes,
					TotalQuantity: b.Total(),
					Status:        ledger.StatusPending,
				})
			}
		}
	}
	return out
}
