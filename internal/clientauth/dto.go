package clientauth

// TokenRequestDTO exchanges a client id and API key for an access token.
type TokenRequestDTO struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d TokenRequestDTO) Validate() error {
	if d.ClientID == "" {
		return ValidationError{Msg: "client_id is required"}
	}
	if d.APIKey == "" {
		return ValidationError{Msg: "api_key is required"}
	}
	return nil
}
