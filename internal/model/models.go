package model

// Plan is the subscription plan embedded in an order.
type Plan struct {
	ID     int64  `json:"id"`
	Name   string `json:"nome"`
	Type   string `json:"tipo"`
	Period string `json:"periodo"`
}

// Order is a customer's subscription record. The first element returned by
// /api/orders/me is the current order.
type Order struct {
	ID        int64   `json:"id"`
	ClientID  int64   `json:"cliente_id"`
	PlanID    int64   `json:"plano_id"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
	CreatedAt string  `json:"criado_em"`
	Plan      *Plan   `json:"plano,omitempty"`
}

// BotConfig is the bot configuration returned by /api/config/bot. The panel only holds it.
type BotConfig map[string]any

// ClientProfile is the authenticated client's editable record.
type ClientProfile struct {
	ID          int64  `json:"id"`
	Name        string `json:"nome"`
	Email       string `json:"email"`
	Phone       string `json:"telefone"`
	CompanyName string `json:"nome_empresa"`
	TaxID       string `json:"cpf_cnpj"`
	WhatsApp    string `json:"whatsapp"`
	Street      string `json:"endereco"`
	City        string `json:"cidade"`
	State       string `json:"estado"`
	PostalCode  string `json:"cep"`
}

// ProfileUpdate is the PUT /api/clients/me payload. Nil fields are left out of the body.
type ProfileUpdate struct {
	Name        *string `json:"nome,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"telefone,omitempty"`
	CompanyName *string `json:"nome_empresa,omitempty"`
	TaxID       *string `json:"cpf_cnpj,omitempty"`
	WhatsApp    *string `json:"whatsapp,omitempty"`
	Street      *string `json:"endereco,omitempty"`
	City        *string `json:"cidade,omitempty"`
	State       *string `json:"estado,omitempty"`
	PostalCode  *string `json:"cep,omitempty"`
}

// PasswordChange is the POST /api/clients/change-password payload.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

const (
	// ConversationStatusActive marks a conversation still open on the bot side.
	ConversationStatusActive = "ativa"
	// MessageTypeBotReply marks a message authored by the bot.
	MessageTypeBotReply = "resposta"
)

// Conversation is a thread between a contact and the bot, owned by one order.
type Conversation struct {
	ID            int64  `json:"id"`
	OrderID       int64  `json:"pedido_id"`
	ContactName   string `json:"contato_nome"`
	ContactNumber string `json:"contato_numero"`
	Status        string `json:"status"`
	MessageCount  int    `json:"total_mensagens"`
	CreatedAt     string `json:"criado_em"`
}

// IsActive reports whether the conversation status is "ativa".
func (conversation Conversation) IsActive() bool {
	return conversation.Status == ConversationStatusActive
}

// ConversationDetail is a conversation together with its messages in server order.
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"mensagens"`
}

// Message is a single chat entry.
type Message struct {
	ID        int64  `json:"id"`
	Type      string `json:"tipo"`
	Content   string `json:"conteudo"`
	CreatedAt string `json:"criado_em"`
}

// IsBotReply reports whether the bot authored the message.
func (message Message) IsBotReply() bool {
	return message.Type == MessageTypeBotReply
}

// AutoResponse is a configured canned answer.
type AutoResponse struct {
	Question string   `json:"pergunta"`
	Answer   string   `json:"resposta"`
	Keywords []string `json:"palavras_chave"`
}

// KnowledgeDocument is one uploaded knowledge-base file.
type KnowledgeDocument struct {
	Filename   string  `json:"filename"`
	Size       int64   `json:"size"`
	UploadedAt float64 `json:"uploaded_at"`
}

// KnowledgeListing is the /api/knowledge/list/{orderId} response.
type KnowledgeListing struct {
	Documents []KnowledgeDocument `json:"documents"`
	Total     int                 `json:"total"`
}

// Attendant is a human attendant phone number configured for an order.
type Attendant struct {
	Number string `json:"numero"`
}
