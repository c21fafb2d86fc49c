package panel

import (
	"context"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

// API is the slice of the Kairix backend the panel controllers consume.
// *backend.Session satisfies it.
type API interface {
	HasCredential() bool
	Orders(ctx context.Context) ([]model.Order, error)
	BotConfig(ctx context.Context) (model.BotConfig, error)
	Profile(ctx context.Context) (model.ClientProfile, error)
	UpdateProfile(ctx context.Context, update model.ProfileUpdate) error
	ChangePassword(ctx context.Context, change model.PasswordChange) error
	Logout(ctx context.Context) error
	Conversations(ctx context.Context, orderID int64, dateRange backend.DateRange) ([]model.Conversation, error)
	Conversation(ctx context.Context, conversationID int64) (model.ConversationDetail, error)
	AutoResponses(ctx context.Context, orderID int64) ([]model.AutoResponse, error)
	KnowledgeDocuments(ctx context.Context, orderID int64) (model.KnowledgeListing, error)
	Attendants(ctx context.Context, orderID int64) ([]model.Attendant, error)
}

var _ API = (*backend.Session)(nil)
