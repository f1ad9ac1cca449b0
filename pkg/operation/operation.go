// Package operation declares the operation registration form: its fields,
// choices, Portuguese labels and the validation schema applied on submit.
package operation

import (
	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/validation"
)

const (
	// Title is the heading shown above the form.
	Title = "Cadastrar Operação"
	// SubmitLabel labels the submit action.
	SubmitLabel = "Salvar"
	// AddressScope groups the address fields.
	AddressScope = "address"
)

// Status choices. The validator only checks presence, not membership.
const (
	StatusFinished   = "Finalizada"
	StatusInProgress = "Em andamento"
)

// Friendly forces choices.
const (
	FriendlyForcesPresent = "Tem forças amigas"
	FriendlyForcesAbsent  = "Não Tem forças amigas"
)

// Field paths.
var (
	Name           = form.NewPath("name")
	Status         = form.NewPath("status")
	FriendlyForces = form.NewPath("friendlyForces")
	Date           = form.NewPath("date")
	Hour           = form.NewPath("hour")

	Zipcode      = form.NewPath(AddressScope, "zipcode")
	State        = form.NewPath(AddressScope, "state")
	City         = form.NewPath(AddressScope, "city")
	Neighborhood = form.NewPath(AddressScope, "neighborhood")
	Street       = form.NewPath(AddressScope, "street")
	StreetNumber = form.NewPath(AddressScope, "streetNumber")
	Complement   = form.NewPath(AddressScope, "complement")
)

// ZipcodeMaxLength is the longest accepted CEP ("99999-999").
const ZipcodeMaxLength = 9

// Fields returns the declared controls in display order.
func Fields() []form.Field {
	return []form.Field{
		{Path: Name, Label: "Nome", Kind: form.KindText},
		{
			Path:  Status,
			Label: "Status",
			Kind:  form.KindSelect,
			Options: []form.Option{
				{Value: StatusFinished, Label: StatusFinished},
				{Value: StatusInProgress, Label: StatusInProgress},
			},
		},
		{
			Path:     FriendlyForces,
			Label:    "Forças amigas",
			Kind:     form.KindRadio,
			Nullable: true,
			Options: []form.Option{
				{Value: FriendlyForcesPresent, Label: FriendlyForcesPresent},
				{Value: FriendlyForcesAbsent, Label: FriendlyForcesAbsent},
			},
		},
		{Path: Date, Label: "Data", Kind: form.KindDate, Mask: "99/99/9999", Min: "2017-04-01"},
		{Path: Hour, Label: "Hora", Kind: form.KindTime, Mask: "99:99"},
		{Path: Zipcode, Label: "CEP", Kind: form.KindText, Mask: "99999-999", BlurLookup: true},
		{Path: State, Label: "Estado", Kind: form.KindText},
		{Path: City, Label: "Cidade", Kind: form.KindText},
		{Path: Neighborhood, Label: "Bairro", Kind: form.KindText},
		{Path: Street, Label: "Rua", Kind: form.KindText},
		{Path: StreetNumber, Label: "Número", Kind: form.KindText},
		{Path: Complement, Label: "Complemento", Kind: form.KindText},
	}
}

// NewRegistry builds an empty registry holding every operation field.
func NewRegistry() (*form.Registry, error) {
	return form.NewRegistry(Fields()...)
}

// Schema returns the submit-time rules. Issues come out in this order.
func Schema() validation.Schema {
	return validation.NewSchema(
		required(Name, "Nome", "O nome é obrigatório"),
		required(Date, "Data", "A data é obrigatório"),
		required(Hour, "Hora", "A hora é obrigatório"),
		required(Status, "Status", "O status é obrigatório"),
		required(FriendlyForces, "Forças amigas", "Informe uma opção"),
		validation.Field(Zipcode,
			validation.String("CEP deve ser um texto"),
			validation.Required("CEP é obrigatório"),
			validation.MaxLength(ZipcodeMaxLength, "CEP deve ter no máximo 9 caracteres"),
		),
		required(City, "Cidade", "Cidade é obrigatório"),
		required(State, "Estado", "Estado é obrigatório"),
		required(Street, "Rua", "Rua é obrigatório"),
		required(Neighborhood, "Bairro", "Bairro é obrigatório"),
		required(StreetNumber, "Número", "Número é obrigatório"),
		required(Complement, "Complemento", "Complemento é obrigatório"),
	)
}

func required(path form.Path, label, message string) validation.FieldRules {
	return validation.Field(path,
		validation.String(label+" deve ser um texto"),
		validation.Required(message),
	)
}
