package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

const (
	pathOrdersMe             = "/api/orders/me"
	pathBotConfig            = "/api/config/bot"
	pathClientMe             = "/api/clients/me"
	pathChangePassword       = "/api/clients/change-password"
	pathLogout               = "/api/clients/logout"
	pathConversationsByOrder = "/api/conversas/pedido/"
	pathConversationPrefix   = "/api/conversas/"
	pathConfigPrefix         = "/api/config/"
	pathAutoResponsesSuffix  = "/respostas"
	pathAttendantsSuffix     = "/atendentes"
	pathKnowledgeListPrefix  = "/api/knowledge/list/"
	queryParameterStartDate  = "data_inicio"
	queryParameterEndDate    = "data_fim"
)

// DateRange bounds a conversation listing. It applies only when both ends are set.
type DateRange struct {
	Start string
	End   string
}

// Complete reports whether both bounds are present.
func (dateRange DateRange) Complete() bool {
	return strings.TrimSpace(dateRange.Start) != "" && strings.TrimSpace(dateRange.End) != ""
}

// Orders fetches the authenticated customer's orders, most recent first.
func (session *Session) Orders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := session.exchangeJSON(ctx, Request{Path: pathOrdersMe, ForwardCookies: true}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// BotConfig fetches the bot configuration of the authenticated customer.
func (session *Session) BotConfig(ctx context.Context) (model.BotConfig, error) {
	var config model.BotConfig
	if err := session.exchangeJSON(ctx, Request{Path: pathBotConfig}, &config); err != nil {
		return nil, err
	}
	return config, nil
}

// Profile fetches the authenticated client's profile.
func (session *Session) Profile(ctx context.Context) (model.ClientProfile, error) {
	var profile model.ClientProfile
	if err := session.exchangeJSON(ctx, Request{Path: pathClientMe, ForwardCookies: true}, &profile); err != nil {
		return model.ClientProfile{}, err
	}
	return profile, nil
}

// UpdateProfile sends a profile update.
func (session *Session) UpdateProfile(ctx context.Context, update model.ProfileUpdate) error {
	return session.exchangeJSON(ctx, Request{
		Method:         http.MethodPut,
		Path:           pathClientMe,
		Body:           update,
		ForwardCookies: true,
	}, nil)
}

// ChangePassword submits a credential change.
func (session *Session) ChangePassword(ctx context.Context, change model.PasswordChange) error {
	return session.exchangeJSON(ctx, Request{
		Method:         http.MethodPost,
		Path:           pathChangePassword,
		Body:           change,
		ForwardCookies: true,
	}, nil)
}

// Logout terminates the backend cookie session.
func (session *Session) Logout(ctx context.Context) error {
	return session.exchangeJSON(ctx, Request{
		Method:         http.MethodPost,
		Path:           pathLogout,
		ForwardCookies: true,
	}, nil)
}

// Conversations lists the conversations of an order, optionally bounded by dateRange.
func (session *Session) Conversations(ctx context.Context, orderID int64, dateRange DateRange) ([]model.Conversation, error) {
	request := Request{
		Path:           pathConversationsByOrder + strconv.FormatInt(orderID, 10),
		ForwardCookies: true,
	}
	if dateRange.Complete() {
		request.Query = url.Values{
			queryParameterStartDate: []string{strings.TrimSpace(dateRange.Start)},
			queryParameterEndDate:   []string{strings.TrimSpace(dateRange.End)},
		}
	}
	var conversations []model.Conversation
	if err := session.exchangeJSON(ctx, request, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Conversation fetches one conversation with its messages.
func (session *Session) Conversation(ctx context.Context, conversationID int64) (model.ConversationDetail, error) {
	var detail model.ConversationDetail
	request := Request{
		Path:           pathConversationPrefix + strconv.FormatInt(conversationID, 10),
		ForwardCookies: true,
	}
	if err := session.exchangeJSON(ctx, request, &detail); err != nil {
		return model.ConversationDetail{}, err
	}
	return detail, nil
}

// AutoResponses lists the configured canned answers of an order.
func (session *Session) AutoResponses(ctx context.Context, orderID int64) ([]model.AutoResponse, error) {
	var responses []model.AutoResponse
	request := Request{
		Path:           pathConfigPrefix + strconv.FormatInt(orderID, 10) + pathAutoResponsesSuffix,
		ForwardCookies: true,
	}
	if err := session.exchangeJSON(ctx, request, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// KnowledgeDocuments lists the knowledge-base documents of an order.
func (session *Session) KnowledgeDocuments(ctx context.Context, orderID int64) (model.KnowledgeListing, error) {
	var listing model.KnowledgeListing
	request := Request{
		Path:           pathKnowledgeListPrefix + strconv.FormatInt(orderID, 10),
		ForwardCookies: true,
	}
	if err := session.exchangeJSON(ctx, request, &listing); err != nil {
		return model.KnowledgeListing{}, err
	}
	return listing, nil
}

// Attendants lists the attendant numbers configured for an order.
func (session *Session) Attendants(ctx context.Context, orderID int64) ([]model.Attendant, error) {
	var attendants []model.Attendant
	request := Request{
		Path:           pathConfigPrefix + strconv.FormatInt(orderID, 10) + pathAttendantsSuffix,
		ForwardCookies: true,
	}
	if err := session.exchangeJSON(ctx, request, &attendants); err != nil {
		return nil, err
	}
	return attendants, nil
}

func (session *Session) exchangeJSON(ctx context.Context, request Request, target any) error {
	response, doErr := session.Do(ctx, request)
	if doErr != nil {
		return doErr
	}
	return decodeJSON(response, target)
}
