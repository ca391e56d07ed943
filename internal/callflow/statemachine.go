package callflow

import (
	"context"
	"fmt"
	"strings"

	"voicebot-server/internal/nlu"
	"voicebot-server/internal/store"
)

// State is the conversation position within one call.
type State int

const (
	StateAwaitingItems State = iota
	StateAwaitingMode
	StateAwaitingConfirmation
	StateCorrecting
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateAwaitingItems:
		return "awaiting_items"
	case StateAwaitingMode:
		return "awaiting_mode"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateCorrecting:
		return "correcting"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// SettingsSource provides the live settings snapshot, fetched fresh at every
// decision point so operator changes take effect mid-service.
type SettingsSource interface {
	GetLiveSettings(ctx context.Context) (store.LiveSettings, error)
}

// StateMachine drives one call's conversation. It is not safe for concurrent
// use; the session's transcript-handling path is its single writer.
type StateMachine struct {
	rules    *Rules
	catalog  nlu.Catalog
	settings SettingsSource

	draft      Draft
	state      State
	retries    int
	lastPrompt string
}

func NewStateMachine(rules *Rules, catalog nlu.Catalog, settings SettingsSource) *StateMachine {
	return &StateMachine{
		rules:    rules,
		catalog:  catalog,
		settings: settings,
		state:    StateAwaitingItems,
	}
}

func (m *StateMachine) State() State {
	return m.state
}

// Draft exposes the accumulated order, read-only by convention.
func (m *StateMachine) Draft() *Draft {
	return &m.draft
}

// Retries returns how many confirmation attempts went unrecognized in a row.
// The abandonment policy on top of this counter lives with the caller.
func (m *StateMachine) Retries() int {
	return m.retries
}

// Begin runs the pre-first-utterance gate and returns the opening prompt.
// When the restaurant is closed (or the bot is switched off) the call is
// finalized before any item is ever awaited.
func (m *StateMachine) Begin(ctx context.Context) (string, error) {
	settings, err := m.settings.GetLiveSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read live settings: %w", err)
	}

	now := m.rules.Now()
	status, statusMessage := m.rules.TimeStatus(now)

	if !settings.BotEnabled {
		m.state = StateFinalized
		return "Onze telefonische bestelservice is op dit moment niet beschikbaar. Probeert u het later opnieuw.", nil
	}

	if status == TimeStatusClosed {
		m.state = StateFinalized
		return statusMessage, nil
	}

	greeting := m.rules.Greeting(now)
	if status == TimeStatusDeliveryCutoff {
		// Cutoff is informational; choosing delivery afterwards is still
		// accepted, matching the deployed behavior.
		return greeting + " " + statusMessage, nil
	}
	return greeting, nil
}

// HandleUtterance consumes one recognized utterance and returns what to say
// next. An empty reply means there is nothing to add (finalized call).
func (m *StateMachine) HandleUtterance(ctx context.Context, utterance string) (string, error) {
	switch m.state {
	case StateFinalized:
		return "", nil
	case StateAwaitingConfirmation:
		return m.handleConfirmation(ctx, utterance)
	default:
		return m.handleOrderInput(ctx, utterance)
	}
}

func (m *StateMachine) handleConfirmation(ctx context.Context, utterance string) (string, error) {
	switch nlu.DetectAffirmation(utterance) {
	case nlu.AffirmationYes:
		m.state = StateFinalized
		return "Dank u wel, de bestelling staat genoteerd. Tot zo!", nil
	case nlu.AffirmationNo:
		// The correcting hop lands straight back in item collection. The
		// lines stay in the draft; the caller replaces or extends them.
		m.state = StateAwaitingItems
		m.retries = 0
		return "Geen probleem. Wat wilt u wijzigen aan de bestelling?", nil
	default:
		m.retries++
		return m.lastPrompt, nil
	}
}

func (m *StateMachine) handleOrderInput(ctx context.Context, utterance string) (string, error) {
	items, unmatched := nlu.ExtractItems(utterance, m.catalog)
	m.draft.Merge(items)
	m.draft.SetMode(nlu.DetectFulfillmentMode(utterance))

	if !m.draft.HasLines() {
		if len(unmatched) > 0 {
			return fmt.Sprintf("Ik kon %s helaas niet op de kaart vinden. Wat wilt u bestellen?",
				strings.Join(unmatched, " en ")), nil
		}
		return "Wat wilt u bestellen?", nil
	}

	if m.draft.Mode() == nlu.ModeNone {
		m.state = StateAwaitingMode
		return "Wilt u de bestelling laten bezorgen, of komt u deze afhalen?", nil
	}

	return m.buildConfirmation(ctx)
}

// buildConfirmation computes the confirmation prompt, or bounces back to item
// collection when a category in the draft is blocked by the live settings.
// The block is re-checked on every attempt until the draft's categories
// change.
func (m *StateMachine) buildConfirmation(ctx context.Context) (string, error) {
	settings, err := m.settings.GetLiveSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read live settings: %w", err)
	}

	if blocked, ok := m.rules.CategoryBlocked(m.draft.Categories(), settings); ok {
		m.state = StateAwaitingItems
		return fmt.Sprintf("Helaas kunnen we op dit moment geen %s aanbieden. Wilt u iets anders kiezen?", blocked), nil
	}

	mode := m.draft.Mode()
	lines := m.draft.Lines()
	minutes := m.rules.EstimatedMinutes(mode, lines, settings)
	description, total := m.rules.Summarize(lines)

	m.state = StateAwaitingConfirmation
	m.retries = 0
	m.lastPrompt = fmt.Sprintf("Uw bestelling: %s, voor %s. Het totaal is %.2f euro. %s %s Klopt dat zo?",
		description,
		mode.String(),
		total,
		m.rules.PhraseForTime(mode, minutes),
		m.rules.PhraseForPayment(mode),
	)
	return m.lastPrompt, nil
}
