package panel

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

// ListState is the state of the conversation list pane.
type ListState string

// ThreadState is the state of the message thread pane.
type ThreadState string

// List pane states.
const (
	ListStateNoOrders ListState = "no_orders"
	ListStateEmpty    ListState = "empty"
	ListStateLoaded   ListState = "loaded"
	ListStateError    ListState = "error"
)

// Thread pane states.
const (
	ThreadStateMessages ThreadState = "messages"
	ThreadStateEmpty    ThreadState = "empty"
	ThreadStateError    ThreadState = "error"
)

// Status badge classes of a conversation row.
const (
	StatusClassActive  = "success"
	StatusClassPending = "pending"
)

const (
	missingContactName             = "Sem nome"
	botRoleLabel                   = "🤖 Bot"
	customerRoleLabel              = "👤 Cliente"
	noOrdersMessage                = "Nenhum pedido encontrado."
	noConversationsMessage         = "Nenhuma conversa encontrada."
	noConversationsHint            = "As conversas aparecerão aqui quando seus clientes enviarem mensagens."
	listFailedMessage              = "Erro ao carregar conversas."
	retryLabel                     = "Tentar Novamente"
	noMessagesMessage              = "Nenhuma mensagem nesta conversa."
	threadFailedMessage            = "Erro ao carregar mensagens."
	incompleteFilterPrompt         = "Por favor, selecione ambas as datas."
	logEventLoadConversations      = "load_conversations"
	logEventLoadConversationThread = "load_conversation_thread"
)

// ErrIncompleteDateFilter indicates a date filter was submitted without both bounds.
var ErrIncompleteDateFilter = errors.New("panel: both filter dates are required")

// ConversationRow is one rendered entry of the conversation list.
type ConversationRow struct {
	ID           int64
	Name         string
	MessageCount int
	Status       string
	StatusClass  string
	Number       string
	CreatedAt    string
	Active       bool
}

// DateFilter echoes the bounds a list was loaded with.
type DateFilter struct {
	Start   string
	End     string
	Summary string
}

// ConversationList is the view model of the conversation list pane.
type ConversationList struct {
	State      ListState
	Rows       []ConversationRow
	Filter     DateFilter
	Message    string
	Hint       string
	RetryLabel string
}

// MessageBubble is one rendered chat message.
type MessageBubble struct {
	FromBot   bool
	RoleLabel string
	Timestamp string
	Content   string
}

// ConversationThread is the view model of the message thread pane.
type ConversationThread struct {
	ConversationID int64
	State          ThreadState
	Title          string
	Subtitle       string
	Messages       []MessageBubble
	Message        string
}

// ConversationSelection is what selecting a row re-renders: the list with its new active
// row, and the selected thread.
type ConversationSelection struct {
	List   ConversationList
	Thread ConversationThread
}

// ConversationBrowser lists an order's conversations and shows their threads.
type ConversationBrowser struct {
	formatter Formatter
	logger    *zap.Logger
}

// NewConversationBrowser builds a ConversationBrowser.
func NewConversationBrowser(formatter Formatter, logger *zap.Logger) *ConversationBrowser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationBrowser{formatter: formatter, logger: logger}
}

// List loads the conversations of the current order, bounded by dateRange when both ends
// are set. Failures render the error state; ErrUnauthorized is also returned.
func (browser *ConversationBrowser) List(ctx context.Context, api API, state *ViewState, dateRange backend.DateRange) (ConversationList, error) {
	list := ConversationList{Filter: browser.filterOf(dateRange)}

	orders, ordersErr := api.Orders(ctx)
	if ordersErr != nil {
		return browser.failList(list, state, ordersErr)
	}
	if len(orders) == 0 {
		state.SetConversations(nil)
		list.State = ListStateNoOrders
		list.Message = noOrdersMessage
		return list, nil
	}

	state.SetCurrentOrder(orders[0])
	conversations, conversationsErr := api.Conversations(ctx, state.CurrentOrderID, dateRange)
	if conversationsErr != nil {
		return browser.failList(list, state, conversationsErr)
	}

	state.SetConversations(conversations)
	if len(conversations) == 0 {
		list.State = ListStateEmpty
		list.Message = noConversationsMessage
		list.Hint = noConversationsHint
		return list, nil
	}

	list.State = ListStateLoaded
	list.Rows = browser.rows(conversations, state.CurrentConversationID)
	return list, nil
}

// Filter reloads the list bounded by dateRange. An incomplete range makes no request and
// returns ErrIncompleteDateFilter with the prompt to show.
func (browser *ConversationBrowser) Filter(ctx context.Context, api API, state *ViewState, dateRange backend.DateRange) (ConversationList, string, error) {
	if !dateRange.Complete() {
		return browser.Cached(state), incompleteFilterPrompt, ErrIncompleteDateFilter
	}
	list, listErr := browser.List(ctx, api, state, dateRange)
	return list, "", listErr
}

// ClearFilter reloads the list without date bounds.
func (browser *ConversationBrowser) ClearFilter(ctx context.Context, api API, state *ViewState) (ConversationList, error) {
	return browser.List(ctx, api, state, backend.DateRange{})
}

// Cached re-renders the rows last loaded into state without a request.
func (browser *ConversationBrowser) Cached(state *ViewState) ConversationList {
	if len(state.Conversations) == 0 {
		return ConversationList{State: ListStateEmpty, Message: noConversationsMessage, Hint: noConversationsHint}
	}
	return ConversationList{
		State: ListStateLoaded,
		Rows:  browser.rows(state.Conversations, state.CurrentConversationID),
	}
}

// Select makes conversationID current, re-renders the cached rows with that row active and
// loads its thread with a single request.
func (browser *ConversationBrowser) Select(ctx context.Context, api API, state *ViewState, conversationID int64) (ConversationSelection, error) {
	state.SelectConversation(conversationID)
	thread, threadErr := browser.Thread(ctx, api, conversationID)
	return ConversationSelection{List: browser.Cached(state), Thread: thread}, threadErr
}

// Thread loads one conversation with its messages.
func (browser *ConversationBrowser) Thread(ctx context.Context, api API, conversationID int64) (ConversationThread, error) {
	thread := ConversationThread{ConversationID: conversationID}
	detail, detailErr := api.Conversation(ctx, conversationID)
	if detailErr != nil {
		browser.logger.Warn(logEventLoadConversationThread, zap.Int64("conversation_id", conversationID), zap.Error(detailErr))
		thread.State = ThreadStateError
		thread.Message = threadFailedMessage
		if errors.Is(detailErr, backend.ErrUnauthorized) {
			return thread, detailErr
		}
		return thread, nil
	}

	thread.Title = "💬 " + contactName(detail.ContactName)
	thread.Subtitle = "📱 " + detail.ContactNumber + " • Status: " + detail.Status
	if len(detail.Messages) == 0 {
		thread.State = ThreadStateEmpty
		thread.Message = noMessagesMessage
		return thread, nil
	}

	thread.State = ThreadStateMessages
	thread.Messages = make([]MessageBubble, 0, len(detail.Messages))
	for _, message := range detail.Messages {
		bubble := MessageBubble{
			FromBot:   message.IsBotReply(),
			RoleLabel: customerRoleLabel,
			Timestamp: browser.formatter.DateTime(message.CreatedAt),
			Content:   message.Content,
		}
		if bubble.FromBot {
			bubble.RoleLabel = botRoleLabel
		}
		thread.Messages = append(thread.Messages, bubble)
	}
	return thread, nil
}

func (browser *ConversationBrowser) failList(list ConversationList, state *ViewState, loadErr error) (ConversationList, error) {
	browser.logger.Warn(logEventLoadConversations, zap.Error(loadErr))
	state.SetConversations(nil)
	list.State = ListStateError
	list.Message = listFailedMessage
	list.RetryLabel = retryLabel
	if errors.Is(loadErr, backend.ErrUnauthorized) {
		return list, loadErr
	}
	return list, nil
}

func (browser *ConversationBrowser) rows(conversations []model.Conversation, activeID int64) []ConversationRow {
	rows := make([]ConversationRow, 0, len(conversations))
	for _, conversation := range conversations {
		row := ConversationRow{
			ID:           conversation.ID,
			Name:         contactName(conversation.ContactName),
			MessageCount: conversation.MessageCount,
			Status:       conversation.Status,
			StatusClass:  StatusClassPending,
			Number:       conversation.ContactNumber,
			CreatedAt:    browser.formatter.DateTime(conversation.CreatedAt),
			Active:       activeID != 0 && conversation.ID == activeID,
		}
		if conversation.IsActive() {
			row.StatusClass = StatusClassActive
		}
		rows = append(rows, row)
	}
	return rows
}

func (browser *ConversationBrowser) filterOf(dateRange backend.DateRange) DateFilter {
	if !dateRange.Complete() {
		return DateFilter{}
	}
	start := strings.TrimSpace(dateRange.Start)
	end := strings.TrimSpace(dateRange.End)
	return DateFilter{
		Start:   start,
		End:     end,
		Summary: browser.formatter.Date(start) + " a " + browser.formatter.Date(end),
	}
}

func contactName(name string) string {
	if strings.TrimSpace(name) == "" {
		return missingContactName
	}
	return name
}

// ParseConversationID reads a positive conversation id from a path segment.
func ParseConversationID(raw string) (int64, bool) {
	conversationID, parseErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if parseErr != nil || conversationID <= 0 {
		return 0, false
	}
	return conversationID, true
}
