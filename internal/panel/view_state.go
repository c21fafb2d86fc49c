package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/storage"
)

const (
	errorMessageDecodeViewState = "panel: decode view state"
	errorMessageEncodeViewState = "panel: encode view state"
	errorMessageLoadViewState   = "panel: load view state"
	errorMessageSaveViewState   = "panel: save view state"
)

// viewStateChange marks the parts of a ViewState written since it was started or resumed.
type viewStateChange uint8

const (
	changeOrder viewStateChange = 1 << iota
	changeConfig
	changeConversations
	changeSelection

	changeAll = changeOrder | changeConfig | changeConversations | changeSelection
)

// ViewState is what one browser session has in view: the current order and
// configuration, and the conversation rows and selection last rendered.
type ViewState struct {
	ID                    string               `json:"-"`
	CurrentOrder          *model.Order         `json:"current_order,omitempty"`
	CurrentConfig         model.BotConfig      `json:"current_config,omitempty"`
	CurrentOrderID        int64                `json:"current_order_id,omitempty"`
	CurrentConversationID int64                `json:"current_conversation_id,omitempty"`
	Conversations         []model.Conversation `json:"conversations,omitempty"`
	UpdatedAt             time.Time            `json:"-"`

	changes   viewStateChange
	discarded bool
}

// SetCurrentOrder makes order the order in view.
func (state *ViewState) SetCurrentOrder(order model.Order) {
	state.CurrentOrder = &order
	state.CurrentOrderID = order.ID
	state.changes |= changeOrder
}

// SetCurrentConfig replaces the bot configuration in view.
func (state *ViewState) SetCurrentConfig(config model.BotConfig) {
	state.CurrentConfig = config
	state.changes |= changeConfig
}

// SetConversations replaces the cached conversation rows.
func (state *ViewState) SetConversations(conversations []model.Conversation) {
	state.Conversations = conversations
	state.changes |= changeConversations
}

// SelectConversation marks conversationID as the selected row.
func (state *ViewState) SelectConversation(conversationID int64) {
	state.CurrentConversationID = conversationID
	state.changes |= changeSelection
}

// Forget drops everything the state holds except its id.
func (state *ViewState) Forget() {
	*state = ViewState{ID: state.ID, changes: changeAll, discarded: state.discarded}
}

// Changed reports whether any part of the state was written since it was loaded.
func (state *ViewState) Changed() bool {
	return state.changes != 0
}

// Discarded reports whether the state was torn down and must not be saved again.
func (state *ViewState) Discarded() bool {
	return state.discarded
}

// mergeInto copies the written parts of state onto stored.
func (state *ViewState) mergeInto(stored *ViewState) {
	if state.changes&changeOrder != 0 {
		stored.CurrentOrder = state.CurrentOrder
		stored.CurrentOrderID = state.CurrentOrderID
	}
	if state.changes&changeConfig != 0 {
		stored.CurrentConfig = state.CurrentConfig
	}
	if state.changes&changeConversations != 0 {
		stored.Conversations = state.Conversations
	}
	if state.changes&changeSelection != 0 {
		stored.CurrentConversationID = state.CurrentConversationID
	}
}

// ViewStateRecords persists serialized view states.
type ViewStateRecords interface {
	Find(ctx context.Context, viewStateID string) (model.ViewStateRecord, error)
	Save(ctx context.Context, viewStateID string, payload string) error
	Delete(ctx context.Context, viewStateID string) error
}

// ViewStates constructs, restores, persists and discards view states.
type ViewStates struct {
	records ViewStateRecords
	newID   func() string
}

// NewViewStates builds ViewStates over records. newID defaults to storage.NewID.
func NewViewStates(records ViewStateRecords, newID func() string) *ViewStates {
	if newID == nil {
		newID = storage.NewID
	}
	return &ViewStates{records: records, newID: newID}
}

// Start returns an empty view state with a fresh id. It is saved on the next Save.
func (viewStates *ViewStates) Start() *ViewState {
	return &ViewState{ID: viewStates.newID(), changes: changeAll}
}

// Resume restores the view state with viewStateID. A blank or unknown id starts a new one;
// callers detect that by comparing the returned ID.
func (viewStates *ViewStates) Resume(ctx context.Context, viewStateID string) (*ViewState, error) {
	if strings.TrimSpace(viewStateID) == "" {
		return viewStates.Start(), nil
	}
	state, loadErr := viewStates.load(ctx, viewStateID)
	if loadErr != nil {
		return nil, loadErr
	}
	if state == nil {
		return viewStates.Start(), nil
	}
	return state, nil
}

// load returns the stored state with viewStateID, or nil when none is stored.
func (viewStates *ViewStates) load(ctx context.Context, viewStateID string) (*ViewState, error) {
	record, findErr := viewStates.records.Find(ctx, viewStateID)
	if errors.Is(findErr, storage.ErrViewStateNotFound) {
		return nil, nil
	}
	if findErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageLoadViewState, findErr)
	}
	state := &ViewState{}
	if decodeErr := json.Unmarshal([]byte(record.Payload), state); decodeErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageDecodeViewState, decodeErr)
	}
	state.ID = record.ID
	state.UpdatedAt = record.UpdatedAt
	return state, nil
}

// Save persists the parts of state written since it was loaded over the currently stored
// copy, so overlapping requests on one id only overwrite what each of them changed. An
// unchanged or discarded state is not written.
func (viewStates *ViewStates) Save(ctx context.Context, state *ViewState) error {
	if state.discarded || !state.Changed() {
		return nil
	}
	stored, loadErr := viewStates.load(ctx, state.ID)
	if loadErr != nil {
		return loadErr
	}
	if stored == nil {
		stored = &ViewState{}
	}
	state.mergeInto(stored)
	payload, encodeErr := json.Marshal(stored)
	if encodeErr != nil {
		return fmt.Errorf("%s: %w", errorMessageEncodeViewState, encodeErr)
	}
	if saveErr := viewStates.records.Save(ctx, state.ID, string(payload)); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveViewState, saveErr)
	}
	state.changes = 0
	return nil
}

// Discard tears state down: it is forgotten, marked discarded and its row deleted.
func (viewStates *ViewStates) Discard(ctx context.Context, state *ViewState) error {
	state.discarded = true
	state.Forget()
	if strings.TrimSpace(state.ID) == "" {
		return nil
	}
	return viewStates.records.Delete(ctx, state.ID)
}
