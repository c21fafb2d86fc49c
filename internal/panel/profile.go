package panel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

const (
	profileSubmitLabel   = "Salvar Alterações"
	profileBusyLabel     = "Salvando..."
	profileSaveSucceeded = "Dados salvos com sucesso!"
	profileSaveFailed    = "Erro ao salvar dados. Tente novamente."
	logEventLoadProfile  = "load_client_profile"
	logEventSaveProfile  = "save_client_profile"
)

// ProfileModal is the view model of the "Meus Dados" modal.
type ProfileModal struct {
	Open             bool
	Fields           []ProfileFieldValue
	Banners          Banners
	Submit           SubmitControl
	CloseAfterMillis int
}

// ProfileController drives the client profile modal.
type ProfileController struct {
	schema ProfileFormSchema
	logger *zap.Logger
}

// NewProfileController builds a ProfileController over schema.
func NewProfileController(schema ProfileFormSchema, logger *zap.Logger) *ProfileController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileController{schema: schema, logger: logger}
}

// Schema returns the form schema the controller renders and submits.
func (controller *ProfileController) Schema() ProfileFormSchema {
	return controller.schema
}

// Open opens the modal and loads the profile into it. A failed load leaves the fields
// empty; only ErrUnauthorized is returned.
func (controller *ProfileController) Open(ctx context.Context, api API) (ProfileModal, error) {
	modal := controller.openModal()
	profile, loadErr := api.Profile(ctx)
	if loadErr != nil {
		controller.logger.Warn(logEventLoadProfile, zap.Error(loadErr))
		if errors.Is(loadErr, backend.ErrUnauthorized) {
			return modal, loadErr
		}
		return modal, nil
	}
	modal.Fields = controller.schema.Populate(profile)
	return modal, nil
}

// Save submits the declared fields read through lookup. On success the modal asks to be
// closed after CloseAfterSuccessMillis; on any failure it keeps the submitted values and
// shows the fixed error banner.
func (controller *ProfileController) Save(ctx context.Context, api API, lookup func(string) string) (ProfileModal, error) {
	modal := controller.openModal()
	modal.Fields = controller.schema.Submitted(lookup)

	saveErr := api.UpdateProfile(ctx, controller.schema.BuildUpdate(lookup))
	if saveErr != nil {
		controller.logger.Warn(logEventSaveProfile, zap.Error(saveErr))
		modal.Banners.Error = profileSaveFailed
		if errors.Is(saveErr, backend.ErrUnauthorized) {
			return modal, saveErr
		}
		return modal, nil
	}

	modal.Banners.Success = profileSaveSucceeded
	modal.CloseAfterMillis = CloseAfterSuccessMillis
	return modal, nil
}

// Close returns the closed modal.
func (controller *ProfileController) Close() ProfileModal {
	return ProfileModal{Submit: profileSubmit()}
}

func (controller *ProfileController) openModal() ProfileModal {
	return ProfileModal{
		Open:   true,
		Fields: controller.schema.Populate(model.ClientProfile{}),
		Submit: profileSubmit(),
	}
}

func profileSubmit() SubmitControl {
	return SubmitControl{Label: profileSubmitLabel, BusyLabel: profileBusyLabel}
}
