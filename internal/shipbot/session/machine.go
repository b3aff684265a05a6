package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
)

// Allocator issues shipment IDs and bag numbers.
type Allocator interface {
	NextShipmentID(ctx context.Context, sheet string) (string, error)
	NextBagNumber(ctx context.Context, sheet, shipmentID string) (int, error)
	Release(sheet, shipmentID string)
}

// Directory resolves factories and warehouses.
type Directory interface {
	UserFactories(ctx context.Context, userID string) ([]directory.Factory, error)
	Warehouses(ctx context.Context, factoryTab string) ([]string, error)
	Invalidate(userID string)
}

// Result is the outcome of one transition.
type Result struct {
	Session *Session
	Prompt  Prompt
	// Commit is set when the session reached StepCommitted and must be written.
	Commit bool
	// Drop is set when the session ended without a commit.
	Drop bool
}

// Machine implements the conversation transitions. It keeps no per-user state;
// every call works on the session it is given.
type Machine struct {
	alloc        Allocator
	dir          Directory
	sizes        *parse.SizeParser
	defaultSheet string
	now          func() time.Time
}

type MachineOption func(*Machine)

// WithDefaultSheet is used for users without any factory assignment.
func WithDefaultSheet(sheet string) MachineOption {
	return func(m *Machine) { m.defaultSheet = sheet }
}

func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

func NewMachine(alloc Allocator, dir Directory, sizes *parse.SizeParser, opts ...MachineOption) *Machine {
	m := &Machine{alloc: alloc, dir: dir, sizes: sizes, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SizeLabels returns the configured size labels in ledger order.
func (m *Machine) SizeLabels() []string {
	return m.sizes.Labels()
}

// Start opens a session for a user and presents the first question.
func (m *Machine) Start(ctx context.Context, userID, username string) Result {
	now := m.now()
	s := &Session{UserID: userID, Username: username, StartedAt: now, UpdatedAt: now}

	m.dir.Invalidate(userID)
	factories, err := m.dir.UserFactories(ctx, userID)
	if err != nil {
		logtrace.Logger(ctx).Error().Err(err).Str("user_id", userID).Msg("unable to load factory assignments")
	}
	switch {
	case len(factories) == 1:
		return m.present(ctx, m.selectFactory(ctx, s, factories[0]))
	case len(factories) > 1:
		s.Factories = factories
		s.Step = StepAskFactory
		return m.present(ctx, s)
	case m.defaultSheet != "":
		return m.present(ctx, m.selectFactory(ctx, s, directory.Factory{Name: m.defaultSheet, TabName: m.defaultSheet}))
	}
	s.Step = StepCancelled
	return Result{
		Session: s,
		Drop:    true,
		Prompt:  Prompt{Text: fmt.Sprintf("No factory is assigned to your account (ID %s). Ask an administrator to add you.", userID)},
	}
}

// Handle applies cmd to s. s is modified in place and returned in the result.
func (m *Machine) Handle(ctx context.Context, s *Session, cmd Command) Result {
	if s.Step.Terminal() {
		return m.stateError(ctx, s, ErrSessionExpired, "")
	}

	switch c := cmd.(type) {
	case Cancel:
		return m.cancel(s)
	case MenuSelection:
		if c.Seq != 0 && c.Seq != s.Seq {
			return m.stateError(ctx, s, ErrStaleSelection, "That menu is out of date, here is the current step.")
		}
		if c.Action == ActionCancel {
			return m.cancel(s)
		}
		// a menu press abandons a half-entered size quantity
		s.PendingSize = ""
	case TextInput:
	default:
		return m.stateError(ctx, s, ErrUnexpectedInput, "That action is not available right now.")
	}

	switch s.Step {
	case StepAskFactory:
		return m.onFactory(ctx, s, cmd)
	case StepAskWarehouse:
		return m.onWarehouse(ctx, s, cmd)
	case StepAskModel:
		return m.onModel(ctx, s, cmd)
	case StepAskColorName:
		return m.onColorName(ctx, s, cmd)
	case StepAskColorSizes:
		return m.onColorSizes(ctx, s, cmd)
	case StepAskShipDate:
		return m.onShipDate(ctx, s, cmd)
	case StepAskEtaDate:
		return m.onEtaDate(ctx, s, cmd)
	case StepConfirm:
		return m.onConfirm(ctx, s, cmd)
	}
	return m.stateError(ctx, s, ErrSessionExpired, "")
}

func (m *Machine) cancel(s *Session) Result {
	s.Step = StepCancelled
	return Result{Session: s, Drop: true, Prompt: StartPrompt("Shipment entry cancelled. Nothing was saved.")}
}

// present stamps a new sequence number on s and renders its current step.
func (m *Machine) present(ctx context.Context, s *Session) Result {
	return m.presentWith(ctx, s, "")
}

func (m *Machine) presentWith(_ context.Context, s *Session, notice string) Result {
	s.Seq++
	s.UpdatedAt = m.now()
	p := m.render(s)
	for i := range p.Options {
		p.Options[i].Seq = s.Seq
	}
	if notice != "" {
		p = withError(p, notice)
	}
	return Result{Session: s, Prompt: p}
}

// invalid re-presents the current step with an inline error.
func (m *Machine) invalid(ctx context.Context, s *Session, msg string) Result {
	logtrace.Logger(ctx).Debug().Err(ErrInvalidInput).Str("user_id", s.UserID).Stringer("step", s.Step).Str("reason", msg).Msg("input rejected")
	return m.presentWith(ctx, s, msg)
}

func (m *Machine) stateError(ctx context.Context, s *Session, err error, notice string) Result {
	logtrace.Logger(ctx).Info().Err(err).Str("user_id", s.UserID).Stringer("step", s.Step).Msg("unexpected input")
	if s.Step.Terminal() {
		return Result{Session: s, Drop: true, Prompt: ExpiredPrompt()}
	}
	if notice == "" {
		notice = "That action is not available right now."
	}
	return m.presentWith(ctx, s, notice)
}

func (m *Machine) selectFactory(ctx context.Context, s *Session, f directory.Factory) *Session {
	s.Sheet = f.TabName
	s.FactoryName = f.Name
	warehouses, err := m.dir.Warehouses(ctx, f.TabName)
	if err != nil || len(warehouses) == 0 {
		logtrace.Logger(ctx).Warn().Err(err).Str("factory", f.TabName).Msg("no warehouse list, using defaults")
		warehouses = directory.DefaultWarehouses
	}
	s.Warehouses = warehouses
	s.Step = StepAskWarehouse
	return s
}

func (m *Machine) onFactory(ctx context.Context, s *Session, cmd Command) Result {
	switch c := cmd.(type) {
	case MenuSelection:
		if c.Action != ActionSelectFactory {
			return m.stateError(ctx, s, ErrUnexpectedInput, "")
		}
		i, err := strconv.Atoi(c.Arg)
		if err != nil || i < 0 || i >= len(s.Factories) {
			return m.invalid(ctx, s, "Unknown factory, choose one from the list.")
		}
		return m.present(ctx, m.selectFactory(ctx, s, s.Factories[i]))
	case TextInput:
		for _, f := range s.Factories {
			if parse.SameName(f.Name, c.Text) || parse.SameName(f.TabName, c.Text) {
				return m.present(ctx, m.selectFactory(ctx, s, f))
			}
		}
		return m.invalid(ctx, s, "Unknown factory, choose one from the list.")
	}
	return m.stateError(ctx, s, ErrUnexpectedInput, "")
}

func (m *Machine) onWarehouse(ctx context.Context, s *Session, cmd Command) Result {
	var name string
	switch c := cmd.(type) {
	case MenuSelection:
		if c.Action != ActionSelectWarehouse {
			return m.stateError(ctx, s, ErrUnexpectedInput, "")
		}
		i, err := strconv.Atoi(c.Arg)
		if err != nil || i < 0 || i >= len(s.Warehouses) {
			return m.invalid(ctx, s, "Unknown warehouse, choose one from the list or type its name.")
		}
		name = s.Warehouses[i]
	case TextInput:
		name = parse.CleanName(c.Text)
		for _, w := range s.Warehouses {
			if parse.SameName(w, name) {
				name = w
				break
			}
		}
	}
	if name == "" {
		return m.invalid(ctx, s, "The warehouse name cannot be empty.")
	}
	s.Warehouse = name
	s.Step = StepAskModel
	return m.present(ctx, s)
}

func (m *Machine) onModel(ctx context.Context, s *Session, cmd Command) Result {
	c, ok := cmd.(TextInput)
	if !ok {
		return m.stateError(ctx, s, ErrUnexpectedInput, "")
	}
	name := parse.CleanName(c.Text)
	if name == "" {
		return m.invalid(ctx, s, "The model name cannot be empty.")
	}
	s.CurrentModel = name
	s.Step = StepAskColorName
	return m.present(ctx, s)
}

func (m *Machine) onColorName(ctx context.Context, s *Session, cmd Command) Result {
	switch c := cmd.(type) {
	case MenuSelection:
		if c.Action == ActionFinishModel && len(s.Models) > 0 {
			s.CurrentModel = ""
			return m.afterModels(ctx, s)
		}
		return m.stateError(ctx, s, ErrUnexpectedInput, "")
	case TextInput:
		name := parse.CleanName(c.Text)
		if name == "" {
			return m.invalid(ctx, s, "The color name cannot be empty.")
		}
		s.CurrentColor = name
		s.CurrentBags = nil
		if err := m.addBag(ctx, s); err != nil {
			s.CurrentColor = ""
			return m.invalid(ctx, s, "Could not open a bag, please try again.")
		}
		s.Step = StepAskColorSizes
		return m.present(ctx, s)
	}
	return m.stateError(ctx, s, ErrUnexpectedInput, "")
}

// addBag allocates the shipment ID on first use and opens a new bag.
func (m *Machine) addBag(ctx context.Context, s *Session) error {
	if s.ShipmentID == "" {
		id, err := m.alloc.NextShipmentID(ctx, s.Sheet)
		if err != nil {
			logtrace.Logger(ctx).Error().Err(err).Str("sheet", s.Sheet).Msg("shipment id allocation failed")
			return err
		}
		s.ShipmentID = id
	}
	n, err := m.alloc.NextBagNumber(ctx, s.Sheet, s.ShipmentID)
	if err != nil {
		logtrace.Logger(ctx).Error().Err(err).Str("shipment_id", s.ShipmentID).Msg("bag number allocation failed")
		return err
	}
	s.CurrentBags = append(s.CurrentBags, Bag{
		ID:     fmt.Sprintf("%s-%d", s.ShipmentID, n),
		Number: n,
		Sizes:  make(map[string]int),
	})
	s.BagIndex = len(s.CurrentBags) - 1
	s.PendingSize = ""
	return nil
}

func (m *Machine) onColorSizes(ctx context.Context, s *Session, cmd Command) Result {
	bag := s.CurrentBag()
	if bag == nil {
		return m.stateError(ctx, s, ErrUnexpectedInput, "")
	}

	switch c := cmd.(type) {
	case TextInput:
		if s.PendingSize != "" {
			qty, ok := parse.ParseQuantity(c.Text)
			if !ok {
				return m.invalid(ctx, s, fmt.Sprintf("The quantity for %s must be a whole number, 0 or more.", s.PendingSize))
			}
			if qty == 0 {
				delete(bag.Sizes, s.PendingSize)
			} else {
				bag.Sizes[s.PendingSize] = qty
			}
			s.PendingSize = ""
			return m.present(ctx, s)
		}
		sizes, errs := m.sizes.ParseSizeList(c.Text)
		if len(errs) > 0 {
			return m.invalid(ctx, s, "Could not read the sizes: "+errs.Error()+".")
		}
		for label, qty := range sizes {
			bag.Sizes[label] = qty
		}
		return m.present(ctx, s)

	case MenuSelection:
		switch c.Action {
		case ActionSetSize:
			label, ok := m.sizes.Canonical(c.Arg)
			if !ok {
				return m.invalid(ctx, s, "Unknown size "+strings.ToUpper(c.Arg)+".")
			}
			s.PendingSize = label
			return m.present(ctx, s)
		case ActionAddBag:
			if bag.Empty() {
				return m.invalid(ctx, s, "Fill the current bag before adding another one.")
			}
			if err := m.addBag(ctx, s); err != nil {
				return m.invalid(ctx, s, "Could not open a bag, please try again.")
			}
			return m.present(ctx, s)
		case ActionPrevBag:
			if s.BagIndex > 0 {
				s.BagIndex--
			}
			return m.present(ctx, s)
		case ActionNextBag:
			if s.BagIndex < len(s.CurrentBags)-1 {
				s.BagIndex++
			}
			return m.present(ctx, s)
		case ActionAddColor:
			s.saveCurrentColor()
			s.Step = StepAskColorName
			return m.present(ctx, s)
		case ActionFinishModel:
			if !s.currentHasQuantities() && len(s.Models) == 0 {
				return m.invalid(ctx, s, "Enter at least one quantity before finishing the model.")
			}
			s.saveCurrentColor()
			s.CurrentModel = ""
			return m.afterModels(ctx, s)
		}
	}
	return m.stateError(ctx, s, ErrUnexpectedInput, "")
}

// afterModels asks for whichever date is still missing, then confirms.
func (m *Machine) afterModels(ctx context.Context, s *Session) Result {
	switch {
	case s.ShipDate == "":
		s.Step = StepAskShipDate
	case s.EtaDate == "":
		s.Step = StepAskEtaDate
	default:
		s.Step = StepConfirm
	}
	return m.present(ctx, s)
}

const dateHint = "Enter the date as DD/MM/YYYY, for example 01/02/2024."

func (m *Machine) onShipDate(ctx context.Context, s *Session, cmd Command) Result {
	c, ok := cmd.(TextInput)
	if !ok {
		return m.stateError(ctx, s, ErrUnexpectedInput, "")
	}
	if !parse.ValidateDate(c.Text) {
		return m.invalid(ctx, s, dateHint)
	}
	s.ShipDate = parse.StandardizeDate(c.Text)
	return m.afterModels(ctx, s)
}

func (m *Machine) onEtaDate(ctx context.Context, s *Session, cmd Command) Result {
	c, ok := cmd.(TextInput)
	if !ok {
		return m.stateError(ctx, s, ErrUnexpectedInput, "")
	}
	if !parse.ValidateDate(c.Text) {
		return m.invalid(ctx, s, dateHint)
	}
	eta := parse.StandardizeDate(c.Text)
	if !parse.DateNotBefore(eta, s.ShipDate) {
		return m.invalid(ctx, s, "The arrival date cannot be before the ship date ("+s.ShipDate+").")
	}
	s.EtaDate = eta
	return m.afterModels(ctx, s)
}

func (m *Machine) onConfirm(ctx context.Context, s *Session, cmd Command) Result {
	c, ok := cmd.(MenuSelection)
	if !ok {
		return m.invalid(ctx, s, "Use the buttons below.")
	}
	switch c.Action {
	case ActionAddModel:
		s.Step = StepAskModel
		return m.present(ctx, s)
	case ActionFinish:
		s.Step = StepCommitted
		s.UpdatedAt = m.now()
		return Result{Session: s, Commit: true, Prompt: Prompt{Text: "Saving shipment " + s.ShipmentID + "..."}}
	}
	return m.stateError(ctx, s, ErrUnexpectedInput, "")
}
