package types

// MfaPreference es el canal preferido para recibir códigos MFA.
type MfaPreference string

const (
	MfaNone           MfaPreference = ""
	MfaEmail          MfaPreference = "EMAIL"
	MfaText           MfaPreference = "TEXT"
	MfaSecondaryEmail MfaPreference = "SECONDARY_EMAIL"
)

// ContactType tipifica los contactos secundarios de un usuario.
type ContactType string

const (
	ContactSecondaryEmail ContactType = "SECONDARY_EMAIL"
	ContactMobilePhone    ContactType = "MOBILE_PHONE"
)

// ClientMfa es la política MFA configurada en un cliente OAuth.
type ClientMfa string

const (
	ClientMfaNone      ClientMfa = "none"
	ClientMfaUntrusted ClientMfa = "untrusted"
	ClientMfaAll       ClientMfa = "all"
)
