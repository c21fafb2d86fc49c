package panel

import (
	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

// Profile form field names. They double as backend payload keys.
const (
	FieldName        = "nome"
	FieldEmail       = "email"
	FieldPhone       = "telefone"
	FieldCompanyName = "nome_empresa"
	FieldTaxID       = "cpf_cnpj"
	FieldWhatsApp    = "whatsapp"
	FieldStreet      = "endereco"
	FieldCity        = "cidade"
	FieldState       = "estado"
	FieldPostalCode  = "cep"
)

// ProfileField describes one input of the profile form.
type ProfileField struct {
	Name      string
	ElementID string
	Label     string
	InputType string
	Address   bool
}

// ProfileFieldValue is a field paired with the value it renders with.
type ProfileFieldValue struct {
	ProfileField
	Value string
}

var profileContactFields = []ProfileField{
	{Name: FieldName, ElementID: "clientNome", Label: "Nome", InputType: "text"},
	{Name: FieldEmail, ElementID: "clientEmail", Label: "E-mail", InputType: "email"},
	{Name: FieldPhone, ElementID: "clientTelefone", Label: "Telefone", InputType: "tel"},
	{Name: FieldCompanyName, ElementID: "clientEmpresa", Label: "Nome da empresa", InputType: "text"},
	{Name: FieldTaxID, ElementID: "clientCpfCnpj", Label: "CPF/CNPJ", InputType: "text"},
	{Name: FieldWhatsApp, ElementID: "clientWhatsapp", Label: "WhatsApp", InputType: "tel"},
}

var profileAddressFields = []ProfileField{
	{Name: FieldStreet, ElementID: "clientEndereco", Label: "Endereço", InputType: "text", Address: true},
	{Name: FieldCity, ElementID: "clientCidade", Label: "Cidade", InputType: "text", Address: true},
	{Name: FieldState, ElementID: "clientEstado", Label: "Estado", InputType: "text", Address: true},
	{Name: FieldPostalCode, ElementID: "clientCep", Label: "CEP", InputType: "text", Address: true},
}

// ProfileFormSchema declares which profile inputs exist. Loading and saving only ever
// touch declared fields.
type ProfileFormSchema struct {
	fields []ProfileField
}

// NewProfileFormSchema builds the schema; address inputs are present only when includeAddress is set.
func NewProfileFormSchema(includeAddress bool) ProfileFormSchema {
	fields := append([]ProfileField(nil), profileContactFields...)
	if includeAddress {
		fields = append(fields, profileAddressFields...)
	}
	return ProfileFormSchema{fields: fields}
}

// Fields lists the declared inputs in render order.
func (schema ProfileFormSchema) Fields() []ProfileField {
	return append([]ProfileField(nil), schema.fields...)
}

// Has reports whether the named input is declared.
func (schema ProfileFormSchema) Has(name string) bool {
	for _, field := range schema.fields {
		if field.Name == name {
			return true
		}
	}
	return false
}

// Populate pairs each declared field with its profile value, or an empty string.
func (schema ProfileFormSchema) Populate(profile model.ClientProfile) []ProfileFieldValue {
	values := profileValues(profile)
	populated := make([]ProfileFieldValue, 0, len(schema.fields))
	for _, field := range schema.fields {
		populated = append(populated, ProfileFieldValue{ProfileField: field, Value: values[field.Name]})
	}
	return populated
}

// Submitted pairs each declared field with the submitted value, so a failed save
// re-renders what the user typed.
func (schema ProfileFormSchema) Submitted(lookup func(string) string) []ProfileFieldValue {
	populated := make([]ProfileFieldValue, 0, len(schema.fields))
	for _, field := range schema.fields {
		populated = append(populated, ProfileFieldValue{ProfileField: field, Value: lookup(field.Name)})
	}
	return populated
}

// BuildUpdate assembles the update payload from every declared field. Undeclared fields
// stay nil and are omitted from the request body.
func (schema ProfileFormSchema) BuildUpdate(lookup func(string) string) model.ProfileUpdate {
	var update model.ProfileUpdate
	targets := map[string]**string{
		FieldName:        &update.Name,
		FieldEmail:       &update.Email,
		FieldPhone:       &update.Phone,
		FieldCompanyName: &update.CompanyName,
		FieldTaxID:       &update.TaxID,
		FieldWhatsApp:    &update.WhatsApp,
		FieldStreet:      &update.Street,
		FieldCity:        &update.City,
		FieldState:       &update.State,
		FieldPostalCode:  &update.PostalCode,
	}
	for _, field := range schema.fields {
		target, known := targets[field.Name]
		if !known {
			continue
		}
		value := lookup(field.Name)
		*target = &value
	}
	return update
}

func profileValues(profile model.ClientProfile) map[string]string {
	return map[string]string{
		FieldName:        profile.Name,
		FieldEmail:       profile.Email,
		FieldPhone:       profile.Phone,
		FieldCompanyName: profile.CompanyName,
		FieldTaxID:       profile.TaxID,
		FieldWhatsApp:    profile.WhatsApp,
		FieldStreet:      profile.Street,
		FieldCity:        profile.City,
		FieldState:       profile.State,
		FieldPostalCode:  profile.PostalCode,
	}
}
