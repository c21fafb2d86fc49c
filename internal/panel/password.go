package panel

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

const (
	// MinimumPasswordLength is the shortest new password the form accepts.
	MinimumPasswordLength = 6

	passwordSubmitLabel       = "Alterar Senha"
	passwordBusyLabel         = "Alterando..."
	passwordChangeSucceeded   = "Senha alterada com sucesso!"
	passwordMismatch          = "As senhas não coincidem."
	passwordTooShort          = "A senha deve ter no mínimo 6 caracteres."
	passwordChangeFailed      = "Erro ao alterar senha."
	passwordChangeUnreachable = "Erro ao alterar senha. Tente novamente."
	logEventChangePassword    = "change_client_password"
)

// PasswordForm holds the submitted password inputs.
type PasswordForm struct {
	Current      string
	New          string
	Confirmation string
}

// PasswordModal is the view model of the password change modal. Field values are never
// echoed back into the rendered form.
type PasswordModal struct {
	Open             bool
	Banners          Banners
	Submit           SubmitControl
	CloseAfterMillis int
}

// PasswordController drives the password change modal.
type PasswordController struct {
	logger *zap.Logger
}

// NewPasswordController builds a PasswordController.
func NewPasswordController(logger *zap.Logger) *PasswordController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordController{logger: logger}
}

// Open returns the modal with an empty form.
func (controller *PasswordController) Open() PasswordModal {
	return PasswordModal{Open: true, Submit: passwordSubmit()}
}

// Close returns the closed modal.
func (controller *PasswordController) Close() PasswordModal {
	return PasswordModal{Submit: passwordSubmit()}
}

// Validate checks the form locally and returns the banner text of the first failure.
func (controller *PasswordController) Validate(form PasswordForm) (string, bool) {
	if form.New != form.Confirmation {
		return passwordMismatch, false
	}
	if utf8.RuneCountInString(form.New) < MinimumPasswordLength {
		return passwordTooShort, false
	}
	return "", true
}

// Submit validates form and, when it passes, sends the change to the backend. Validation
// failures make no request. A backend rejection shows its detail when one is provided.
func (controller *PasswordController) Submit(ctx context.Context, api API, form PasswordForm) (PasswordModal, error) {
	modal := controller.Open()
	if validationMessage, valid := controller.Validate(form); !valid {
		modal.Banners.Error = validationMessage
		return modal, nil
	}

	changeErr := api.ChangePassword(ctx, model.PasswordChange{
		CurrentPassword: form.Current,
		NewPassword:     form.New,
	})
	if changeErr == nil {
		modal.Banners.Success = passwordChangeSucceeded
		modal.CloseAfterMillis = CloseAfterSuccessMillis
		return modal, nil
	}

	controller.logger.Warn(logEventChangePassword, zap.Error(changeErr))
	var statusErr *backend.StatusError
	switch {
	case errors.As(changeErr, &statusErr):
		modal.Banners.Error = passwordChangeFailed
		if statusErr.Detail != "" {
			modal.Banners.Error = statusErr.Detail
		}
	case errors.Is(changeErr, backend.ErrUnauthorized):
		modal.Banners.Error = passwordChangeFailed
		return modal, changeErr
	default:
		modal.Banners.Error = passwordChangeUnreachable
	}
	return modal, nil
}

func passwordSubmit() SubmitControl {
	return SubmitControl{Label: passwordSubmitLabel, BusyLabel: passwordBusyLabel}
}
