package core

// User-facing messages (es).
const (
	msgCannotProcess      = "No se puede procesar la solicitud"
	msgLoginOK            = "Inicio de sesión exitoso"
	msgInvalidCredentials = "El correo electrónico o la contraseña son incorrectos"
	msgTooManyAttempts    = "Demasiados intentos fallidos. Inténtelo de nuevo más tarde"
	msgInternal           = "Error interno del servidor"
	msgRegistered         = "Usuario registrado correctamente"
	msgAccountExists      = "El correo electrónico ya está registrado"
	msgLoginRequired      = "Debe iniciar sesión"
	msgLoggedOut          = "Sesión cerrada correctamente"
	msgInvalidValue       = "El valor no es válido"
)

var fieldMessages = map[string]map[Reason]string{
	"email": {
		ReasonRequired:      "El correo electrónico es requerido",
		ReasonInvalidFormat: "El correo electrónico no es válido",
	},
	"password": {
		ReasonRequired: "La contraseña es requerida",
		ReasonTooShort: "La contraseña debe tener al menos 8 caracteres",
		ReasonTooLong:  "La contraseña debe tener máximo 20 caracteres",
	},
	"name": {
		ReasonRequired: "El nombre es requerido",
		ReasonTooLong:  "El nombre debe tener máximo 100 caracteres",
	},
}

// fieldErrorMessages maps each failed field to its localized message.
// The first failure of a field wins.
func fieldErrorMessages(verr *ValidationError) map[string]string {
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		if _, seen := out[f.Field]; seen {
			continue
		}
		msg, ok := fieldMessages[f.Field][f.Reason]
		if !ok {
			msg = msgInvalidValue
		}
		out[f.Field] = msg
	}
	return out
}
