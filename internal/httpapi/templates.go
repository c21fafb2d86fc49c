package httpapi

import (
	"embed"
	"html/template"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/panel"
)

const (
	templateNamePage                  = "page"
	templateNameSidebar               = "sidebar"
	templateNameBadges                = "badges"
	templateNameProfileModal          = "profile_modal"
	templateNamePasswordModal         = "password_modal"
	templateNameConversationList      = "conversation_list"
	templateNameConversationThread    = "conversation_thread"
	templateNameConversationSelection = "conversation_selection"
	templateNameConversationPrompt    = "conversation_prompt"
)

//go:embed templates/*.tmpl
var panelTemplateFiles embed.FS

var panelTemplateFuncs = template.FuncMap{
	"minimumPasswordLength": func() int {
		return panel.MinimumPasswordLength
	},
}

func parsePanelTemplates() (*template.Template, error) {
	return template.New(templateNamePage).Funcs(panelTemplateFuncs).ParseFS(panelTemplateFiles, "templates/*.tmpl")
}
