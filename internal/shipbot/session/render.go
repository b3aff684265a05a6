package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
)

func option(label string, action Action, arg string) Option {
	return Option{Label: label, Action: action, Arg: arg}
}

var cancelOption = option("Cancel", ActionCancel, "")

// StartPrompt offers a fresh session.
func StartPrompt(text string) Prompt {
	return Prompt{Text: text, Options: []Option{option("New shipment", ActionStart, "")}}
}

// ExpiredPrompt answers input that has no live session behind it.
func ExpiredPrompt() Prompt {
	return StartPrompt("Your session has expired. Please start a new shipment.")
}

func (m *Machine) render(s *Session) Prompt {
	switch s.Step {
	case StepAskFactory:
		p := Prompt{Text: "Choose the factory for this shipment:"}
		for i, f := range s.Factories {
			p.Options = append(p.Options, option(f.Name, ActionSelectFactory, strconv.Itoa(i)))
		}
		p.Options = append(p.Options, cancelOption)
		return p

	case StepAskWarehouse:
		p := Prompt{Text: fmt.Sprintf("Factory: %s\nChoose the destination warehouse or type its name:", s.FactoryName)}
		for i, w := range s.Warehouses {
			p.Options = append(p.Options, option(w, ActionSelectWarehouse, strconv.Itoa(i)))
		}
		p.Options = append(p.Options, cancelOption)
		return p

	case StepAskModel:
		text := fmt.Sprintf("Warehouse: %s\nEnter the model name:", s.Warehouse)
		if len(s.Models) > 0 {
			text = fmt.Sprintf("Models so far: %d\nEnter the next model name:", len(s.Models))
		}
		return Prompt{Text: text, Options: []Option{cancelOption}}

	case StepAskColorName:
		p := Prompt{Text: fmt.Sprintf("Model: %s\nEnter a color:", s.CurrentModel)}
		if len(s.Models) > 0 {
			p.Options = append(p.Options, option("Finish model", ActionFinishModel, ""))
		}
		p.Options = append(p.Options, cancelOption)
		return p

	case StepAskColorSizes:
		return m.renderBag(s)

	case StepAskShipDate:
		return Prompt{Text: "Enter the ship date (DD/MM/YYYY):", Options: []Option{cancelOption}}

	case StepAskEtaDate:
		return Prompt{Text: "Enter the estimated arrival date (DD/MM/YYYY):", Options: []Option{cancelOption}}

	case StepConfirm:
		return Prompt{
			Text: Summary(s, m.sizes.Labels()) + "\n\nSave this shipment?",
			Options: []Option{
				option("Add model", ActionAddModel, ""),
				option("Finish", ActionFinish, ""),
				cancelOption,
			},
		}
	}
	return ExpiredPrompt()
}

func (m *Machine) renderBag(s *Session) Prompt {
	bag := s.CurrentBag()
	if bag == nil {
		return Prompt{Text: "No bag is open.", Options: []Option{cancelOption}}
	}
	if s.PendingSize != "" {
		return Prompt{
			Text:    fmt.Sprintf("Bag %s: enter the quantity for %s (0 clears it):", bag.ID, s.PendingSize),
			Options: []Option{cancelOption},
		}
	}

	labels := m.sizes.Labels()
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %s, color: %s\n", s.CurrentModel, s.CurrentColor)
	fmt.Fprintf(&b, "Bag %s (%d of %d)\n", bag.ID, s.BagIndex+1, len(s.CurrentBags))
	if sizes := parse.FormatSizes(bag.Sizes, labels); sizes != "" {
		fmt.Fprintf(&b, "Sizes: %s (total %d)\n", sizes, bag.Total())
	} else {
		b.WriteString("Sizes: none yet\n")
	}
	b.WriteString("\nType sizes like S-10 M-5, or pick a size to set it.")

	p := Prompt{Text: b.String()}
	for _, l := range labels {
		p.Options = append(p.Options, option(l, ActionSetSize, l))
	}
	if len(s.CurrentBags) > 1 {
		p.Options = append(p.Options, option("Previous bag", ActionPrevBag, ""), option("Next bag", ActionNextBag, ""))
	}
	p.Options = append(p.Options,
		option("Add bag", ActionAddBag, ""),
		option("Add color", ActionAddColor, ""),
		option("Finish model", ActionFinishModel, ""),
		cancelOption,
	)
	return p
}

// Summary renders the saved part of a session for confirmation.
func Summary(s *Session, labels []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shipment %s, factory %s\n", s.ShipmentID, s.FactoryName)
	fmt.Fprintf(&b, "Warehouse: %s\n", s.Warehouse)
	fmt.Fprintf(&b, "Ship date: %s\n", s.ShipDate)
	fmt.Fprintf(&b, "Arrival date: %s\n", s.EtaDate)
	for _, m := range s.Models {
		fmt.Fprintf(&b, "\n%s\n", m.Name)
		for _, c := range m.Colors {
			fmt.Fprintf(&b, "  %s\n", c.Name)
			for _, bag := range c.Bags {
				if bag.Empty() {
					continue
				}
				fmt.Fprintf(&b, "    %s: %s (%d)\n", bag.ID, parse.FormatSizes(bag.Sizes, labels), bag.Total())
			}
		}
	}
	bags, items := s.Totals()
	fmt.Fprintf(&b, "\nTotal: %d items in %d bags", items, bags)
	return b.String()
}

// CommitSummary is the outcome of writing a session to the ledger.
type CommitSummary struct {
	ShipmentID string
	Succeeded  int
	Failed     int
}

// SummaryPrompt tells the user how the commit went.
func SummaryPrompt(sum CommitSummary) Prompt {
	switch {
	case sum.Succeeded == 0 && sum.Failed == 0:
		return StartPrompt("Nothing to save: every bag was empty.")
	case sum.Failed == 0:
		return StartPrompt(fmt.Sprintf("Shipment %s saved: %d rows written.", sum.ShipmentID, sum.Succeeded))
	default:
		return StartPrompt(fmt.Sprintf(
			"Shipment %s was saved only in part: %d rows written, %d failed. Please contact support.",
			sum.ShipmentID, sum.Succeeded, sum.Failed))
	}
}

func withError(p Prompt, msg string) Prompt {
	p.Text = msg + "\n\n" + p.Text
	return p
}
