package dto

// SettingsResponse reports the effective credential and model without exposing the credential.
type SettingsResponse struct {
	CredentialConfigured bool   `json:"credentialConfigured"`
	MaskedCredential     string `json:"maskedCredential,omitempty"`
	CredentialSource     string `json:"credentialSource"`
	Model                string `json:"model"`
	ModelSource          string `json:"modelSource"`
}

// SettingsUpdateRequest stores a user credential and/or model choice.
type SettingsUpdateRequest struct {
	APIKey *string `json:"apiKey" validate:"omitempty,min=8,max=512"`
	Model  *string `json:"model" validate:"omitempty,min=1,max=128"`
}

// ModelResponse describes one model reported by the remote endpoint.
type ModelResponse struct {
	ID      string `json:"id"`
	OwnedBy string `json:"ownedBy,omitempty"`
}
